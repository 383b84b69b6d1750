package ntfs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestRecord(size int, usaOffset, usaCount uint16) []byte {
	data := make([]byte, size)
	binary.LittleEndian.PutUint32(data[0:4], MftRecordMagic)
	binary.LittleEndian.PutUint16(data[4:6], usaOffset)
	binary.LittleEndian.PutUint16(data[6:8], usaCount)
	binary.LittleEndian.PutUint16(data[22:24], MftRecordInUse)
	binary.LittleEndian.PutUint16(data[20:22], 56) // AttrOffset
	return data
}

func TestParseMftRecordHeaderRejectsBadMagic(t *testing.T) {
	data := make([]byte, 1024)
	_, err := ParseMftRecordHeader(data)
	assert.Error(t, err)
}

func TestParseMftRecordHeaderRejectsShortBuffer(t *testing.T) {
	_, err := ParseMftRecordHeader(make([]byte, 10))
	assert.Error(t, err)
}

func TestInUseAndIsDirectoryFlags(t *testing.T) {
	h := &MftRecordHeader{Flags: MftRecordInUse | MftRecordDirectory}
	assert.True(t, h.InUse())
	assert.True(t, h.IsDirectory())

	h2 := &MftRecordHeader{}
	assert.False(t, h2.InUse())
	assert.False(t, h2.IsDirectory())
}

// TestFixupRoundTrip verifies SealFixup followed by VerifyAndApplyFixup
// restores the original sector-tail bytes that sealing replaced with the
// update sequence number.
func TestFixupRoundTrip(t *testing.T) {
	const recordSize = 1024 // 2 sectors
	const usaOffset = 48
	const usaCount = 3 // 1 update-seq word + 2 sector entries

	original := makeTestRecord(recordSize, usaOffset, usaCount)
	// Put recognizable sentinel bytes at each sector tail before sealing.
	binary.LittleEndian.PutUint16(original[510:512], 0xAAAA)
	binary.LittleEndian.PutUint16(original[1022:1024], 0xBBBB)

	sealed, err := SealFixup(original, usaOffset, usaCount, 7)
	require.NoError(t, err)

	// After sealing, sector tails hold the USN sentinel, not the real bytes.
	assert.Equal(t, uint16(7), binary.LittleEndian.Uint16(sealed[510:512]))
	assert.Equal(t, uint16(7), binary.LittleEndian.Uint16(sealed[1022:1024]))

	restored := make([]byte, len(sealed))
	copy(restored, sealed)
	err = VerifyAndApplyFixup(restored, usaOffset, usaCount)
	require.NoError(t, err)

	assert.Equal(t, uint16(0xAAAA), binary.LittleEndian.Uint16(restored[510:512]))
	assert.Equal(t, uint16(0xBBBB), binary.LittleEndian.Uint16(restored[1022:1024]))
}

func TestVerifyAndApplyFixupDetectsTornWrite(t *testing.T) {
	const recordSize = 1024
	const usaOffset = 48
	const usaCount = 3

	original := makeTestRecord(recordSize, usaOffset, usaCount)
	sealed, err := SealFixup(original, usaOffset, usaCount, 7)
	require.NoError(t, err)

	// Corrupt one sector tail so it no longer matches the USN sentinel.
	binary.LittleEndian.PutUint16(sealed[1022:1024], 0x1234)

	err = VerifyAndApplyFixup(sealed, usaOffset, usaCount)
	assert.Error(t, err)
}

func TestVerifyAndApplyFixupNoOpWhenCountZero(t *testing.T) {
	data := makeTestRecord(1024, 48, 0)
	err := VerifyAndApplyFixup(data, 48, 0)
	assert.NoError(t, err)
}
