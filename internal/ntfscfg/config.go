// Package ntfscfg loads ScanConfig from defaults, an optional YAML file,
// and NTFS_SCAN_* environment variables, using Viper — the same loading
// strategy the teacher's device package used for DMG scan configuration.
package ntfscfg

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"

	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-ntfs/internal/ntfslog"
)

// ScanConfig is the full set of options recognized by the scanner
// orchestrator, matching spec.md §6's option list plus the ambient
// additions named in SPEC_FULL.md §4.G/§9.
type ScanConfig struct {
	DriveLetter string

	UseUsn         bool
	UseMft         bool
	IncludeHidden  bool
	IncludeSystem  bool
	CalculateSizes bool
	BatchSize      int
	ShowProgress   bool

	PoolSize int
	Logger   ntfslog.Logger
}

// LoadScanConfig reads defaults, overlays configFile (if non-empty and
// present), and overlays NTFS_SCAN_* environment variables, in that order
// of increasing precedence.
func LoadScanConfig(configFile string) (*ScanConfig, error) {
	v := viper.New()

	v.SetDefault("use_usn", true)
	v.SetDefault("use_mft", true)
	v.SetDefault("include_hidden", true)
	v.SetDefault("include_system", true)
	v.SetDefault("calculate_sizes", true)
	v.SetDefault("batch_size", 1024)
	v.SetDefault("show_progress", true)
	v.SetDefault("pool_size", runtime.NumCPU())

	v.SetEnvPrefix("NTFS_SCAN")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("ntfscfg: reading config file %s: %w", configFile, err)
			}
		}
	}

	cfg := &ScanConfig{
		UseUsn:         v.GetBool("use_usn"),
		UseMft:         v.GetBool("use_mft"),
		IncludeHidden:  v.GetBool("include_hidden"),
		IncludeSystem:  v.GetBool("include_system"),
		CalculateSizes: v.GetBool("calculate_sizes"),
		BatchSize:      v.GetInt("batch_size"),
		ShowProgress:   v.GetBool("show_progress"),
		PoolSize:       v.GetInt("pool_size"),
		Logger:         ntfslog.NopLogger{},
	}

	if cfg.PoolSize <= 0 {
		cfg.PoolSize = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1024
	}

	return cfg, nil
}
