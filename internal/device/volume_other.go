//go:build !windows

package device

import (
	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
	"github.com/deploymenttheory/go-ntfs/internal/usn"
)

// LogicalVolume is a stub on non-Windows platforms: live NTFS volume access
// requires the Windows logical/physical volume API, which has no portable
// equivalent. Tests on any platform exercise the internal/ntfs decoders
// directly against synthetic buffers instead of going through this type.
type LogicalVolume struct{}

func OpenLogicalVolume(opts OpenOptions) (*LogicalVolume, error) {
	return nil, scanerr.ErrUnsupportedPlatform
}

func (v *LogicalVolume) ReadAt(p []byte, off int64) (int, error) {
	return 0, scanerr.ErrUnsupportedPlatform
}

func (v *LogicalVolume) Close() error { return nil }

func (v *LogicalVolume) VolumeLabel() string { return "" }

func (v *LogicalVolume) VolumeSerialNumber() uint64 { return 0 }

func (v *LogicalVolume) OpenJournal() (*usn.Journal, error) {
	return nil, scanerr.ErrUnsupportedPlatform
}

func (v *LogicalVolume) QueryFileRecordByID(fileReferenceNumber uint64) ([]byte, error) {
	return nil, scanerr.ErrUnsupportedPlatform
}

func (v *LogicalVolume) PhysicalDriveNumber() (int, error) {
	return 0, scanerr.ErrUnsupportedPlatform
}

// PhysicalVolume is likewise a stub off Windows.
type PhysicalVolume struct{}

func OpenPhysicalVolume(driveNumber int) (*PhysicalVolume, error) {
	return nil, scanerr.ErrUnsupportedPlatform
}

func (p *PhysicalVolume) ReadAt(buf []byte, off int64) (int, error) {
	return 0, scanerr.ErrUnsupportedPlatform
}

func (p *PhysicalVolume) Close() error { return nil }

func (p *PhysicalVolume) VolumeLabel() string { return "" }

func (p *PhysicalVolume) VolumeSerialNumber() uint64 { return 0 }

func (p *PhysicalVolume) QueryFileRecordByID(fileReferenceNumber uint64) ([]byte, error) {
	return nil, scanerr.ErrUnsupportedPlatform
}
