package ntfs

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
)

// IndexEntry is one directory-index entry: a child FILE_NAME pointing at a
// record number, decoded from either $INDEX_ROOT (small directories,
// resident) or an $INDEX_ALLOCATION block (large directories, out of line).
// This reader only supports $FILE_NAME-collated entries, the only
// collation rule an MFT-only scan needs to walk.
type IndexEntry struct {
	RecordNumber uint64
	RecordSeq    uint16
	Flags        uint32
	FileName     *FileNameAttribute // nil for the synthetic last entry
}

// indexHeaderSize is the fixed 16-byte header common to $INDEX_ROOT's
// inner index block and every $INDEX_ALLOCATION node.
const indexHeaderSize = 16

// ParseIndexRoot decodes the entries in a resident $INDEX_ROOT value. It
// skips the 16-byte INDEX_ROOT preamble (attribute type, collation rule,
// bytes/clusters per index record) and parses the inner INDEX_HEADER plus
// entries that follow.
func ParseIndexRoot(value []byte) ([]IndexEntry, error) {
	const rootPreambleSize = 16
	if len(value) < rootPreambleSize+indexHeaderSize {
		return nil, fmt.Errorf("%w: INDEX_ROOT value too small", scanerr.ErrInvalidAttribute)
	}
	return parseIndexEntries(value[rootPreambleSize:])
}

// ParseIndexAllocationBlock decodes one 4KB-ish $INDEX_ALLOCATION node.
// block must already have had fixup verified/applied (INDEX_ALLOCATION
// blocks carry their own update sequence array, same mechanism as MFT
// records). The first 24 bytes are the INDX record header (magic "INDX",
// USA offset/count, LSN, VCN); entries start at byte 24 plus the inner
// INDEX_HEADER.
func ParseIndexAllocationBlock(block []byte) ([]IndexEntry, error) {
	const indxRecordHeaderSize = 24
	if len(block) < indxRecordHeaderSize+indexHeaderSize {
		return nil, fmt.Errorf("%w: INDEX_ALLOCATION block too small", scanerr.ErrInvalidAttribute)
	}
	magic := binary.LittleEndian.Uint32(block[0:4])
	if magic != indxMagic {
		return nil, fmt.Errorf("%w: bad INDX magic 0x%08X", scanerr.ErrInvalidAttribute, magic)
	}
	return parseIndexEntries(block[indxRecordHeaderSize:])
}

const indxMagic uint32 = 0x58444E49 // "INDX" little-endian

func parseIndexEntries(data []byte) ([]IndexEntry, error) {
	if len(data) < indexHeaderSize {
		return nil, fmt.Errorf("%w: index header truncated", scanerr.ErrInvalidAttribute)
	}
	entriesOffset := binary.LittleEndian.Uint32(data[0:4])
	indexSize := binary.LittleEndian.Uint32(data[4:8])
	if int(indexSize) > len(data) {
		indexSize = uint32(len(data))
	}

	var entries []IndexEntry
	off := int(entriesOffset)

	for off < int(indexSize) {
		if off+16 > len(data) {
			return nil, fmt.Errorf("%w: index entry header truncated", scanerr.ErrInvalidAttribute)
		}
		fileRef := binary.LittleEndian.Uint64(data[off : off+8])
		entryLength := binary.LittleEndian.Uint16(data[off+8 : off+10])
		keyLength := binary.LittleEndian.Uint16(data[off+10 : off+12])
		flags := binary.LittleEndian.Uint32(data[off+12 : off+16])

		if entryLength < 16 || off+int(entryLength) > len(data) {
			return nil, fmt.Errorf("%w: index entry length %d invalid at offset %d", scanerr.ErrInvalidAttribute, entryLength, off)
		}

		entry := IndexEntry{
			RecordNumber: fileRef & RecordNumberMask,
			RecordSeq:    uint16(fileRef >> 48),
			Flags:        flags,
		}

		if flags&IndexEntryLast == 0 && keyLength > 0 {
			keyStart := off + 16
			keyEnd := keyStart + int(keyLength)
			if keyEnd > len(data) {
				return nil, fmt.Errorf("%w: index entry key out of bounds", scanerr.ErrInvalidAttribute)
			}
			fn, err := ParseFileNameAttribute(data[keyStart:keyEnd])
			if err != nil {
				return nil, err
			}
			entry.FileName = fn
		}

		entries = append(entries, entry)

		if flags&IndexEntryLast != 0 {
			break
		}
		off += int(entryLength)
	}

	return entries, nil
}
