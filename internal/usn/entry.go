package usn

import "github.com/deploymenttheory/go-ntfs/internal/ntfs"

// Entry is one decoded USN journal record, whether read from bulk
// enumeration (FSCTL_ENUM_USN_DATA) or from journal tailing
// (FSCTL_READ_USN_JOURNAL).
type Entry struct {
	RecordNumber       uint64
	RecordSequence     uint16
	ParentRecordNumber uint64
	ParentSequence     uint16
	Usn                int64
	Timestamp          ntfs.FileTime
	Reason             ChangeReason
	FileAttributes     uint32
	Name               string
}

// splitFileReference breaks a 64-bit Windows FILE_ID/file reference number
// into its 48-bit record number and 16-bit sequence number.
func splitFileReference(ref uint64) (record uint64, sequence uint16) {
	return ref & ntfs.RecordNumberMask, uint16(ref >> 48)
}
