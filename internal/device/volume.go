// Package device opens raw access to an NTFS volume: the logical volume
// handle used for boot-sector and MFT reads, and (when available) the
// physical drive handle used to read clusters the logical volume API
// won't hand back directly (reads inside $MFT's own runs, for instance).
package device

import "io"

// VolumeReader is the minimal contract the rest of the scanner depends on:
// random-access reads over a volume's logical byte stream, plus its
// geometry. Both the Windows logical-volume backend and the physical-drive
// backend implement it.
type VolumeReader interface {
	io.ReaderAt
	io.Closer

	// VolumeLabel and VolumeSerialNumber report the volume's label and
	// serial number as captured by whatever opened the handle.
	VolumeLabel() string
	VolumeSerialNumber() uint64

	// QueryFileRecordByID fetches one MFT record's raw bytes given only its
	// file reference number, for callers that don't already know the
	// record's byte offset into $MFT.
	QueryFileRecordByID(fileReferenceNumber uint64) ([]byte, error)
}

// OpenOptions controls how a volume is opened.
type OpenOptions struct {
	// DriveLetter is a single letter, e.g. "C" (no colon, no trailing
	// backslash); required.
	DriveLetter string
}
