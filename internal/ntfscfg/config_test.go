package ntfscfg

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScanConfigDefaults(t *testing.T) {
	cfg, err := LoadScanConfig("")
	require.NoError(t, err)

	assert.True(t, cfg.UseUsn)
	assert.True(t, cfg.UseMft)
	assert.True(t, cfg.IncludeHidden)
	assert.True(t, cfg.IncludeSystem)
	assert.True(t, cfg.CalculateSizes)
	assert.Equal(t, 1024, cfg.BatchSize)
	assert.True(t, cfg.ShowProgress)
	assert.Equal(t, runtime.NumCPU(), cfg.PoolSize)
	assert.NotNil(t, cfg.Logger)
}

func TestLoadScanConfigIgnoresMissingConfigFile(t *testing.T) {
	cfg, err := LoadScanConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.BatchSize)
}

func TestLoadScanConfigEnvVarOverride(t *testing.T) {
	t.Setenv("NTFS_SCAN_BATCH_SIZE", "256")
	t.Setenv("NTFS_SCAN_USE_USN", "false")

	cfg, err := LoadScanConfig("")
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.BatchSize)
	assert.False(t, cfg.UseUsn)
}

func TestLoadScanConfigYamlFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.yaml")
	yaml := []byte("batch_size: 4096\ninclude_hidden: false\npool_size: 2\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o644))

	cfg, err := LoadScanConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.BatchSize)
	assert.False(t, cfg.IncludeHidden)
	assert.Equal(t, 2, cfg.PoolSize)
}

func TestLoadScanConfigEnvOverridesYamlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 4096\n"), 0o644))
	t.Setenv("NTFS_SCAN_BATCH_SIZE", "8192")

	cfg, err := LoadScanConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8192, cfg.BatchSize, "environment variables take precedence over the config file")
}

func TestLoadScanConfigClampsNonPositiveBatchAndPoolSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 0\npool_size: -1\n"), 0o644))

	cfg, err := LoadScanConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.BatchSize)
	assert.Equal(t, runtime.NumCPU(), cfg.PoolSize)
}

func TestLoadScanConfigRejectsMalformedConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid yaml"), 0o644))

	_, err := LoadScanConfig(path)
	assert.Error(t, err)
}
