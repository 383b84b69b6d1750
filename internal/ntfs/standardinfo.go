package ntfs

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
)

// StandardInformation is the decoded $STANDARD_INFORMATION attribute
// value: the authoritative timestamps and DOS attribute flags for a
// record, kept accurate on every write (unlike the duplicated copies NTFS
// stores in FILE_NAME).
type StandardInformation struct {
	CreationTime      FileTime
	LastModifiedTime  FileTime
	LastMftChangeTime FileTime
	LastAccessTime    FileTime
	FileAttributes    uint32
	OwnerID           uint32 // 0 on volumes without quota tracking
	SecurityID        uint32
	UsnJournalSequence uint64 // "lowest" USN at the time this record was last touched; 0 if journal inactive at write time
}

// ParseStandardInformation decodes a resident $STANDARD_INFORMATION value.
// The attribute's pre-Windows-2000 form is 48 bytes (no owner/security/usn
// fields); both forms are accepted.
func ParseStandardInformation(value []byte) (*StandardInformation, error) {
	if len(value) < 48 {
		return nil, fmt.Errorf("%w: STANDARD_INFORMATION value too small (%d bytes)", scanerr.ErrInvalidAttribute, len(value))
	}

	si := &StandardInformation{
		CreationTime:      FileTime(binary.LittleEndian.Uint64(value[0:8])),
		LastModifiedTime:  FileTime(binary.LittleEndian.Uint64(value[8:16])),
		LastMftChangeTime: FileTime(binary.LittleEndian.Uint64(value[16:24])),
		LastAccessTime:    FileTime(binary.LittleEndian.Uint64(value[24:32])),
		FileAttributes:    binary.LittleEndian.Uint32(value[32:36]),
	}

	if len(value) >= 72 {
		si.OwnerID = binary.LittleEndian.Uint32(value[48:52])
		si.SecurityID = binary.LittleEndian.Uint32(value[52:56])
		si.UsnJournalSequence = binary.LittleEndian.Uint64(value[64:72])
	}

	return si, nil
}

// EncodeStandardInformation produces the 72-byte (modern) form, used by
// tests to build synthetic MFT records.
func EncodeStandardInformation(si *StandardInformation) []byte {
	value := make([]byte, 72)
	binary.LittleEndian.PutUint64(value[0:8], uint64(si.CreationTime))
	binary.LittleEndian.PutUint64(value[8:16], uint64(si.LastModifiedTime))
	binary.LittleEndian.PutUint64(value[16:24], uint64(si.LastMftChangeTime))
	binary.LittleEndian.PutUint64(value[24:32], uint64(si.LastAccessTime))
	binary.LittleEndian.PutUint32(value[32:36], si.FileAttributes)
	binary.LittleEndian.PutUint32(value[48:52], si.OwnerID)
	binary.LittleEndian.PutUint32(value[52:56], si.SecurityID)
	binary.LittleEndian.PutUint64(value[64:72], si.UsnJournalSequence)
	return value
}
