package ntfsscan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deploymenttheory/go-ntfs/internal/filetree"
	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
)

// DescribeVolume and NewChangeMonitor both open a live device.LogicalVolume,
// which is a stub returning ErrUnsupportedPlatform off Windows; this is the
// only behavior exercisable without a real volume handle.
func TestDescribeVolumeUnsupportedOffWindows(t *testing.T) {
	_, err := DescribeVolume("C")
	assert.ErrorIs(t, err, scanerr.ErrUnsupportedPlatform)
}

func TestNewChangeMonitorUnsupportedOffWindows(t *testing.T) {
	tree := filetree.NewFileTree("C")
	_, err := NewChangeMonitor("C", 0, tree)
	assert.ErrorIs(t, err, scanerr.ErrUnsupportedPlatform)
}
