package ntfs

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
)

// MftRecordHeader is the decoded fixed portion of an MFT record, before
// fixup has been applied and before the attribute stream is walked.
type MftRecordHeader struct {
	Magic              uint32
	UpdateSeqOffset    uint16
	UpdateSeqCount     uint16
	LogSequenceNumber  uint64
	SequenceNumber     uint16
	LinkCount          uint16
	AttrOffset         uint16
	Flags              uint16
	UsedSize           uint32
	AllocatedSize      uint32
	BaseRecordRef      uint64
	NextAttrID         uint16
	RecordNumber       uint32 // present only in modern (post-XP) records; 0 otherwise
}

// InUse reports whether the MFT_RECORD_IN_USE flag is set.
func (h *MftRecordHeader) InUse() bool { return h.Flags&MftRecordInUse != 0 }

// IsDirectory reports whether the MFT_RECORD_IS_DIRECTORY flag is set.
func (h *MftRecordHeader) IsDirectory() bool { return h.Flags&MftRecordDirectory != 0 }

// IsBaseRecord reports whether this record is its own base (as opposed to
// an ATTRIBUTE_LIST extension record consumed to complete another record).
func (h *MftRecordHeader) IsBaseRecord() bool {
	return h.BaseRecordRef&RecordNumberMask == 0
}

// ParseMftRecordHeader decodes the fixed-size header at the start of data.
// data must already have fixup applied (see VerifyAndApplyFixup) if the
// caller intends to trust UsedSize/AllocatedSize against sector boundaries;
// the header fields themselves live entirely within the first sector and
// are safe to read either way.
func ParseMftRecordHeader(data []byte) (*MftRecordHeader, error) {
	if len(data) < 48 {
		return nil, fmt.Errorf("%w: record buffer too small (%d bytes)", scanerr.ErrInvalidMftRecord, len(data))
	}

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != MftRecordMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%08X", scanerr.ErrInvalidMftRecord, magic)
	}

	h := &MftRecordHeader{
		Magic:             magic,
		UpdateSeqOffset:   binary.LittleEndian.Uint16(data[4:6]),
		UpdateSeqCount:    binary.LittleEndian.Uint16(data[6:8]),
		LogSequenceNumber: binary.LittleEndian.Uint64(data[8:16]),
		SequenceNumber:    binary.LittleEndian.Uint16(data[16:18]),
		LinkCount:         binary.LittleEndian.Uint16(data[18:20]),
		AttrOffset:        binary.LittleEndian.Uint16(data[20:22]),
		Flags:             binary.LittleEndian.Uint16(data[22:24]),
		UsedSize:          binary.LittleEndian.Uint32(data[24:28]),
		AllocatedSize:     binary.LittleEndian.Uint32(data[28:32]),
		BaseRecordRef:     binary.LittleEndian.Uint64(data[32:40]),
		NextAttrID:        binary.LittleEndian.Uint16(data[40:42]),
	}
	if len(data) >= 48 {
		h.RecordNumber = binary.LittleEndian.Uint32(data[44:48])
	}
	return h, nil
}

// VerifyAndApplyFixup performs NTFS multi-sector transfer protection
// verification in place on data:
//
//  1. read the update sequence number (the first u16 of the USA) and the
//     (sectors) array that follows it,
//  2. verify the last two bytes of every 512-byte stride equal the USN,
//  3. overwrite those last two bytes with the corresponding USA entry.
//
// data is mutated in place. A torn write (sentinel mismatch at any sector
// boundary) returns scanerr.ErrFixupVerificationFailed and leaves data
// unmodified from that point on (earlier sectors may already have been
// repaired; the record as a whole must still be treated as unusable).
func VerifyAndApplyFixup(data []byte, usaOffset, usaCount uint16) error {
	if usaCount == 0 {
		return nil
	}
	usaEnd := int(usaOffset) + int(usaCount)*2
	if usaEnd > len(data) {
		return fmt.Errorf("%w: update sequence array out of bounds", scanerr.ErrFixupVerificationFailed)
	}

	updateSeq := binary.LittleEndian.Uint16(data[usaOffset : usaOffset+2])
	usaEntries := data[usaOffset+2 : usaEnd]

	sectorCount := int(usaCount) - 1
	for i := 0; i < sectorCount; i++ {
		tailOffset := (i+1)*FixupSectorSize - 2
		if tailOffset+2 > len(data) {
			break // record shorter than its declared sector count: nothing more to check
		}
		tail := data[tailOffset : tailOffset+2]
		if binary.LittleEndian.Uint16(tail) != updateSeq {
			return fmt.Errorf("%w: sector %d tail does not match update sequence number", scanerr.ErrFixupVerificationFailed, i)
		}
		copy(tail, usaEntries[i*2:i*2+2])
	}

	return nil
}

// SealFixup is the inverse of VerifyAndApplyFixup: given a record that has
// already had its sector tails restored to real data, it recomputes the
// update sequence array and writes the USN sentinel back into each sector
// tail. It exists for the fixup round-trip property test and is not used
// during scanning (the core never writes to the volume).
func SealFixup(data []byte, usaOffset, usaCount, usn uint16) ([]byte, error) {
	usaEnd := int(usaOffset) + int(usaCount)*2
	if usaEnd > len(data) {
		return nil, fmt.Errorf("update sequence array out of bounds")
	}
	sealed := make([]byte, len(data))
	copy(sealed, data)

	binary.LittleEndian.PutUint16(sealed[usaOffset:usaOffset+2], usn)
	sectorCount := int(usaCount) - 1
	for i := 0; i < sectorCount; i++ {
		tailOffset := (i+1)*FixupSectorSize - 2
		if tailOffset+2 > len(sealed) {
			break
		}
		tail := sealed[tailOffset : tailOffset+2]
		entry := int(usaOffset) + 2 + i*2
		binary.LittleEndian.PutUint16(sealed[entry:entry+2], binary.LittleEndian.Uint16(tail))
		copy(tail, []byte{byte(usn), byte(usn >> 8)})
	}
	return sealed, nil
}
