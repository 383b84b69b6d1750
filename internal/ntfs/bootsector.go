package ntfs

import (
	"encoding/binary"
	"fmt"
)

// bootSectorSignature is the "NTFS    " (8 bytes, padded) OEM ID at offset
// 0x03 of every NTFS boot sector.
var bootSectorSignature = []byte("NTFS    ")

// BootSector is the decoded subset of the NTFS boot sector needed to
// locate the MFT and compute cluster geometry. Field names follow the
// on-disk layout (offsets in comments), not the BIOS Parameter Block's
// historical FAT naming.
type BootSector struct {
	BytesPerSector      uint16 // offset 0x0B
	SectorsPerCluster   uint8  // offset 0x0D
	TotalSectors        uint64 // offset 0x28
	MftStartCluster     uint64 // offset 0x30
	MftMirrStartCluster uint64 // offset 0x38
	ClustersPerMftRecord   int8 // offset 0x40, signed: negative means 2^-n bytes
	ClustersPerIndexRecord int8 // offset 0x44, same encoding
	VolumeSerialNumber  uint64 // offset 0x48
}

// ParseBootSector decodes a 512-byte NTFS boot sector. Returns
// scanerr.ErrNotNtfsVolume (via a plain error here; the orchestrator layer
// wraps it) if the OEM ID does not match "NTFS    ".
func ParseBootSector(data []byte) (*BootSector, error) {
	if len(data) < 512 {
		return nil, fmt.Errorf("boot sector buffer too small: %d bytes", len(data))
	}
	if string(data[3:11]) != string(bootSectorSignature) {
		return nil, fmt.Errorf("not an NTFS boot sector: OEM ID %q", data[3:11])
	}

	bs := &BootSector{
		BytesPerSector:         binary.LittleEndian.Uint16(data[0x0B:0x0D]),
		SectorsPerCluster:      data[0x0D],
		TotalSectors:           binary.LittleEndian.Uint64(data[0x28:0x30]),
		MftStartCluster:        binary.LittleEndian.Uint64(data[0x30:0x38]),
		MftMirrStartCluster:    binary.LittleEndian.Uint64(data[0x38:0x40]),
		ClustersPerMftRecord:   int8(data[0x40]),
		ClustersPerIndexRecord: int8(data[0x44]),
		VolumeSerialNumber:     binary.LittleEndian.Uint64(data[0x48:0x50]),
	}

	if bs.BytesPerSector == 0 || bs.SectorsPerCluster == 0 {
		return nil, fmt.Errorf("invalid boot sector geometry: bytes/sector=%d sectors/cluster=%d",
			bs.BytesPerSector, bs.SectorsPerCluster)
	}

	return bs, nil
}

// ClusterSize returns the size of one cluster in bytes.
func (bs *BootSector) ClusterSize() uint32 {
	return uint32(bs.BytesPerSector) * uint32(bs.SectorsPerCluster)
}

// MftRecordSize returns the size of one MFT record in bytes. When the
// encoded value is negative, the record size is 2^(-n) bytes regardless of
// cluster size (the common case: -10 => 1024 bytes).
func (bs *BootSector) MftRecordSize() uint32 {
	return recordSizeFromEncodedValue(bs.ClustersPerMftRecord, bs.ClusterSize())
}

// IndexRecordSize returns the size of one index allocation block in bytes,
// using the same encoding as MftRecordSize.
func (bs *BootSector) IndexRecordSize() uint32 {
	return recordSizeFromEncodedValue(bs.ClustersPerIndexRecord, bs.ClusterSize())
}

func recordSizeFromEncodedValue(encoded int8, clusterSize uint32) uint32 {
	if encoded > 0 {
		return uint32(encoded) * clusterSize
	}
	return 1 << uint(-encoded)
}
