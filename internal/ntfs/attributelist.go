package ntfs

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
)

// AttributeListEntry points at one attribute instance that may live in an
// extension (non-base) MFT record. Records whose attributes overflow a
// single MFT record slot carry an $ATTRIBUTE_LIST enumerating every
// fragment, across every extension record, so the parser can assemble the
// full attribute set before building a FileEntry.
type AttributeListEntry struct {
	Type          uint32
	StartingVCN   uint64
	RecordNumber  uint64
	RecordSeq     uint16
	AttributeID   uint16
	Name          string
}

// ParseAttributeList decodes every entry in a resident or already-
// reassembled (if non-resident, the caller must first follow its data runs
// and concatenate the clusters) $ATTRIBUTE_LIST value.
func ParseAttributeList(value []byte) ([]AttributeListEntry, error) {
	var entries []AttributeListEntry
	off := 0

	for off < len(value) {
		if off+8 > len(value) {
			break
		}
		entryLength := binary.LittleEndian.Uint16(value[off+4 : off+6])
		if entryLength < 26 || off+int(entryLength) > len(value) {
			return nil, fmt.Errorf("%w: ATTRIBUTE_LIST entry length %d invalid at offset %d", scanerr.ErrInvalidAttribute, entryLength, off)
		}

		attrType := binary.LittleEndian.Uint32(value[off : off+4])
		nameLength := value[off+6]
		nameOffset := value[off+7]
		startVCN := binary.LittleEndian.Uint64(value[off+8 : off+16])
		fileRef := binary.LittleEndian.Uint64(value[off+16 : off+24])
		attrID := binary.LittleEndian.Uint16(value[off+24 : off+26])

		entry := AttributeListEntry{
			Type:         attrType,
			StartingVCN:  startVCN,
			RecordNumber: fileRef & RecordNumberMask,
			RecordSeq:    uint16(fileRef >> 48),
			AttributeID:  attrID,
		}

		if nameLength > 0 {
			nameStart := off + int(nameOffset)
			nameEnd := nameStart + int(nameLength)*2
			if nameEnd > len(value) {
				return nil, fmt.Errorf("%w: ATTRIBUTE_LIST entry name out of bounds", scanerr.ErrInvalidAttribute)
			}
			entry.Name = decodeUTF16LE(value[nameStart:nameEnd])
		}

		entries = append(entries, entry)
		off += int(entryLength)
	}

	return entries, nil
}
