package ntfs

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
)

// AttributeHeader is the common prefix shared by every attribute record,
// resident or non-resident.
type AttributeHeader struct {
	Type            uint32
	Length          uint32 // total size of this attribute record, including header
	NonResident     bool
	NameLength      uint8
	NameOffset      uint16
	Flags           uint16
	AttributeID     uint16
	Name            string

	// Resident-form fields (valid when !NonResident).
	ResidentValueLength uint32
	ResidentValueOffset uint16

	// Non-resident-form fields (valid when NonResident).
	StartingVCN       uint64
	LastVCN           uint64
	DataRunsOffset    uint16
	AllocatedSize     uint64
	DataSize          uint64
	InitializedSize   uint64
}

// Value returns the resident payload bytes of the attribute. It panics if
// called on a non-resident attribute; callers must check NonResident first.
func (a *AttributeHeader) Value(record []byte) []byte {
	if a.NonResident {
		panic("ntfs: Value called on non-resident attribute")
	}
	start := a.ResidentValueOffset
	end := int(start) + int(a.ResidentValueLength)
	return record[start:end]
}

// ParseAttributeHeader decodes one attribute record starting at offset off
// within record. Returns scanerr.ErrInvalidAttribute on a malformed header.
// The caller is responsible for stopping the walk when Type equals
// AttrTypeEndMarker (ParseAttributeHeader still decodes the 4-byte type in
// that case but does not attempt to read the rest of the fixed header).
func ParseAttributeHeader(record []byte, off int) (*AttributeHeader, error) {
	if off+4 > len(record) {
		return nil, fmt.Errorf("%w: attribute header truncated at offset %d", scanerr.ErrInvalidAttribute, off)
	}
	attrType := binary.LittleEndian.Uint32(record[off : off+4])
	if attrType == AttrTypeEndMarker {
		return &AttributeHeader{Type: attrType}, nil
	}

	if off+16 > len(record) {
		return nil, fmt.Errorf("%w: attribute header truncated at offset %d", scanerr.ErrInvalidAttribute, off)
	}

	length := binary.LittleEndian.Uint32(record[off+4 : off+8])
	if length < 16 || off+int(length) > len(record) {
		return nil, fmt.Errorf("%w: attribute length %d invalid at offset %d", scanerr.ErrInvalidAttribute, length, off)
	}

	nonResidentFlag := record[off+8]
	nameLength := record[off+9]
	nameOffset := binary.LittleEndian.Uint16(record[off+10 : off+12])
	flags := binary.LittleEndian.Uint16(record[off+12 : off+14])
	attrID := binary.LittleEndian.Uint16(record[off+14 : off+16])

	h := &AttributeHeader{
		Type:        attrType,
		Length:      length,
		NonResident: nonResidentFlag != 0,
		NameLength:  nameLength,
		NameOffset:  nameOffset,
		Flags:       flags,
		AttributeID: attrID,
	}

	if nameLength > 0 {
		nameStart := off + int(nameOffset)
		nameEnd := nameStart + int(nameLength)*2
		if nameEnd > len(record) {
			return nil, fmt.Errorf("%w: attribute name out of bounds", scanerr.ErrInvalidAttribute)
		}
		h.Name = decodeUTF16LE(record[nameStart:nameEnd])
	}

	if h.NonResident {
		if off+64 > len(record) {
			return nil, fmt.Errorf("%w: non-resident header truncated", scanerr.ErrInvalidAttribute)
		}
		h.StartingVCN = binary.LittleEndian.Uint64(record[off+16 : off+24])
		h.LastVCN = binary.LittleEndian.Uint64(record[off+24 : off+32])
		h.DataRunsOffset = binary.LittleEndian.Uint16(record[off+32 : off+34])
		h.AllocatedSize = binary.LittleEndian.Uint64(record[off+40 : off+48])
		h.DataSize = binary.LittleEndian.Uint64(record[off+48 : off+56])
		h.InitializedSize = binary.LittleEndian.Uint64(record[off+56 : off+64])
	} else {
		if off+24 > len(record) {
			return nil, fmt.Errorf("%w: resident header truncated", scanerr.ErrInvalidAttribute)
		}
		h.ResidentValueLength = binary.LittleEndian.Uint32(record[off+16 : off+20])
		h.ResidentValueOffset = binary.LittleEndian.Uint16(record[off+20 : off+22])
		if int(h.ResidentValueOffset)+int(h.ResidentValueLength) > len(record) {
			return nil, fmt.Errorf("%w: resident value out of bounds", scanerr.ErrInvalidAttribute)
		}
	}

	return h, nil
}

// WalkAttributes calls fn for every attribute header found starting at
// record[firstAttrOffset:], stopping at AttrTypeEndMarker or the first
// decode error. fn's offset argument is the attribute's start offset within
// record, needed by callers that must re-slice the resident value or the
// data run stream.
func WalkAttributes(record []byte, firstAttrOffset int, fn func(h *AttributeHeader, offset int) error) error {
	off := firstAttrOffset
	for {
		h, err := ParseAttributeHeader(record, off)
		if err != nil {
			return err
		}
		if h.Type == AttrTypeEndMarker {
			return nil
		}
		if err := fn(h, off); err != nil {
			return err
		}
		off += int(h.Length)
		if off >= len(record) {
			return nil
		}
	}
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
