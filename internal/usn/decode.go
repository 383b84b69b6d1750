package usn

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/deploymenttheory/go-ntfs/internal/ntfs"
)

// DecodeRecords walks a buffer of variable-length USN_RECORD_V2 records, as
// returned by either FSCTL_ENUM_USN_DATA or FSCTL_READ_USN_JOURNAL with the
// V0 request structs this package issues. Fields are read at their V2
// offsets; V3/V4 records (128-bit file reference numbers) are not decoded
// by this layout. RecordLength is always trusted to find the next record.
// This is a pure function so it is unit-tested directly against synthetic
// buffers without a live volume.
func DecodeRecords(buf []byte) []Entry {
	var entries []Entry
	off := 0

	for off+8 <= len(buf) {
		recordLength := binary.LittleEndian.Uint32(buf[off : off+4])
		if recordLength == 0 || off+int(recordLength) > len(buf) {
			break
		}
		if off+60 > len(buf) {
			break
		}

		fileRef := binary.LittleEndian.Uint64(buf[off+8 : off+16])
		parentRef := binary.LittleEndian.Uint64(buf[off+16 : off+24])
		usnVal := int64(binary.LittleEndian.Uint64(buf[off+24 : off+32]))
		timestamp := binary.LittleEndian.Uint64(buf[off+32 : off+40])
		reason := binary.LittleEndian.Uint32(buf[off+40 : off+44])
		fileAttrs := binary.LittleEndian.Uint32(buf[off+52 : off+56])
		nameLength := binary.LittleEndian.Uint16(buf[off+56 : off+58])
		nameOffset := binary.LittleEndian.Uint16(buf[off+58 : off+60])

		nameStart := off + int(nameOffset)
		nameEnd := nameStart + int(nameLength)
		var name string
		if nameEnd <= len(buf) && nameStart >= off {
			name = decodeUTF16LE(buf[nameStart:nameEnd])
		}

		record, seq := splitFileReference(fileRef)
		parentRecord, parentSeq := splitFileReference(parentRef)

		entries = append(entries, Entry{
			RecordNumber:       record,
			RecordSequence:     seq,
			ParentRecordNumber: parentRecord,
			ParentSequence:     parentSeq,
			Usn:                usnVal,
			Timestamp:          ntfs.FileTime(timestamp),
			Reason:             ChangeReason(reason),
			FileAttributes:     fileAttrs,
			Name:               name,
		})

		off += int(recordLength)
	}

	return entries
}

// EncodeRecord builds one USN_RECORD_V2-shaped buffer from an Entry, used
// by tests to build synthetic FSCTL_ENUM_USN_DATA/FSCTL_READ_USN_JOURNAL
// reply buffers.
func EncodeRecord(e Entry) []byte {
	nameBytes := encodeUTF16LE(e.Name)
	const headerSize = 60
	recordLength := headerSize + len(nameBytes)
	// USN records are padded to an 8-byte boundary.
	if pad := recordLength % 8; pad != 0 {
		recordLength += 8 - pad
	}

	buf := make([]byte, recordLength)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(recordLength))
	binary.LittleEndian.PutUint16(buf[4:6], 2) // major version
	binary.LittleEndian.PutUint16(buf[6:8], 0) // minor version
	binary.LittleEndian.PutUint64(buf[8:16], e.RecordNumber|uint64(e.RecordSequence)<<48)
	binary.LittleEndian.PutUint64(buf[16:24], e.ParentRecordNumber|uint64(e.ParentSequence)<<48)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(e.Usn))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(e.Timestamp))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(e.Reason))
	binary.LittleEndian.PutUint32(buf[52:56], e.FileAttributes)
	binary.LittleEndian.PutUint16(buf[56:58], uint16(len(nameBytes)))
	binary.LittleEndian.PutUint16(buf[58:60], headerSize)
	copy(buf[headerSize:], nameBytes)

	return buf
}

func decodeUTF16LE(b []byte) string {
	u16 := make([]uint16, len(b)/2)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return string(utf16.Decode(u16))
}

func encodeUTF16LE(s string) []byte {
	u16 := utf16.Encode([]rune(s))
	b := make([]byte, len(u16)*2)
	for i, u := range u16 {
		binary.LittleEndian.PutUint16(b[i*2:i*2+2], u)
	}
	return b
}
