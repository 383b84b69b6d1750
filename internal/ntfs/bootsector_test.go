package ntfs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBootSector() []byte {
	data := make([]byte, 512)
	copy(data[3:11], bootSectorSignature)
	binary.LittleEndian.PutUint16(data[0x0B:0x0D], 512)
	data[0x0D] = 8 // sectors per cluster -> 4096-byte clusters
	binary.LittleEndian.PutUint64(data[0x28:0x30], 1000000)
	binary.LittleEndian.PutUint64(data[0x30:0x38], 786432)
	binary.LittleEndian.PutUint64(data[0x38:0x40], 2)
	data[0x40] = 0xF6 // -10 -> 1024-byte MFT records
	data[0x44] = 0xF4 // -12 -> 4096-byte index records
	binary.LittleEndian.PutUint64(data[0x48:0x50], 0xDEADBEEFCAFEBABE)
	return data
}

func TestParseBootSector(t *testing.T) {
	bs, err := ParseBootSector(makeBootSector())
	require.NoError(t, err)

	assert.Equal(t, uint16(512), bs.BytesPerSector)
	assert.Equal(t, uint8(8), bs.SectorsPerCluster)
	assert.Equal(t, uint64(1000000), bs.TotalSectors)
	assert.Equal(t, uint64(786432), bs.MftStartCluster)
	assert.Equal(t, uint32(4096), bs.ClusterSize())
	assert.Equal(t, uint32(1024), bs.MftRecordSize())
	assert.Equal(t, uint32(4096), bs.IndexRecordSize())
}

func TestParseBootSectorRejectsBadSignature(t *testing.T) {
	data := makeBootSector()
	copy(data[3:11], []byte("FAT32   "))
	_, err := ParseBootSector(data)
	assert.Error(t, err)
}

func TestParseBootSectorRejectsShortBuffer(t *testing.T) {
	_, err := ParseBootSector(make([]byte, 100))
	assert.Error(t, err)
}

func TestParseBootSectorRejectsZeroGeometry(t *testing.T) {
	data := makeBootSector()
	data[0x0D] = 0
	_, err := ParseBootSector(data)
	assert.Error(t, err)
}

func TestMftRecordSizePositiveEncoding(t *testing.T) {
	bs := &BootSector{BytesPerSector: 512, SectorsPerCluster: 8, ClustersPerMftRecord: 2}
	assert.Equal(t, uint32(8192), bs.MftRecordSize())
}
