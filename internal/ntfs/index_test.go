package ntfs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildIndexBlock writes an inner INDEX_HEADER plus the given entries (each
// a file-name key entry, flags 0) followed by a synthetic last entry.
func buildIndexBlock(names []string, recordNumbers []uint64) []byte {
	const headerSize = 16
	var entries []byte
	for i, name := range names {
		fn := &FileNameAttribute{ParentRecordNumber: RootRecordNumberForTest, Name: name, Namespace: NamespaceWin32}
		key := EncodeFileNameAttribute(fn)
		fileRef := recordNumbers[i]
		entryHeader := make([]byte, 16)
		binary.LittleEndian.PutUint64(entryHeader[0:8], fileRef)
		entryLength := uint16(16 + len(key))
		if pad := entryLength % 8; pad != 0 {
			entryLength += 8 - pad
		}
		binary.LittleEndian.PutUint16(entryHeader[8:10], entryLength)
		binary.LittleEndian.PutUint16(entryHeader[10:12], uint16(len(key)))
		entry := make([]byte, entryLength)
		copy(entry, entryHeader)
		copy(entry[16:], key)
		entries = append(entries, entry...)
	}

	// synthetic last entry: no key, IndexEntryLast set
	lastEntry := make([]byte, 16)
	binary.LittleEndian.PutUint16(lastEntry[8:10], 16) // entry length
	binary.LittleEndian.PutUint32(lastEntry[12:16], IndexEntryLast)
	entries = append(entries, lastEntry...)

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], headerSize)
	binary.LittleEndian.PutUint32(header[4:8], uint32(headerSize+len(entries)))
	binary.LittleEndian.PutUint32(header[8:12], uint32(headerSize+len(entries)))

	return append(header, entries...)
}

const RootRecordNumberForTest = 5

func TestParseIndexRoot(t *testing.T) {
	block := buildIndexBlock([]string{"alpha.txt", "beta.txt"}, []uint64{100, 101})
	root := append(make([]byte, 16), block...)

	entries, err := ParseIndexRoot(root)
	require.NoError(t, err)
	require.Len(t, entries, 3) // 2 real + synthetic last

	assert.Equal(t, uint64(100), entries[0].RecordNumber)
	require.NotNil(t, entries[0].FileName)
	assert.Equal(t, "alpha.txt", entries[0].FileName.Name)

	assert.Equal(t, uint64(101), entries[1].RecordNumber)
	assert.Nil(t, entries[2].FileName)
}

func TestParseIndexAllocationBlockRejectsBadMagic(t *testing.T) {
	block := make([]byte, 64)
	_, err := ParseIndexAllocationBlock(block)
	assert.Error(t, err)
}

func TestParseIndexAllocationBlockValidMagic(t *testing.T) {
	inner := buildIndexBlock([]string{"file.txt"}, []uint64{42})
	block := make([]byte, 24+len(inner))
	binary.LittleEndian.PutUint32(block[0:4], indxMagic)
	copy(block[24:], inner)

	entries, err := ParseIndexAllocationBlock(block)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(entries), 1)
	assert.Equal(t, uint64(42), entries[0].RecordNumber)
}

func TestParseAttributeListEntries(t *testing.T) {
	value := make([]byte, 0, 64)
	entry := make([]byte, 26)
	binary.LittleEndian.PutUint32(entry[0:4], AttrTypeData)
	binary.LittleEndian.PutUint16(entry[4:6], 26)
	binary.LittleEndian.PutUint64(entry[16:24], 200) // file reference (record 200, seq 0)
	binary.LittleEndian.PutUint16(entry[24:26], 3)   // attribute id
	value = append(value, entry...)

	entries, err := ParseAttributeList(value)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, AttrTypeData, entries[0].Type)
	assert.Equal(t, uint64(200), entries[0].RecordNumber)
	assert.Equal(t, uint16(3), entries[0].AttributeID)
}

func TestParseAttributeListRejectsBadLength(t *testing.T) {
	entry := make([]byte, 10)
	binary.LittleEndian.PutUint16(entry[4:6], 5) // below 26-byte minimum
	_, err := ParseAttributeList(entry)
	assert.Error(t, err)
}
