package ntfs

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
)

// FileNameAttribute is a decoded $FILE_NAME attribute value: one of
// possibly several hard-link names a record carries, each tagged with the
// parent directory it lives in and the namespace it was created under.
type FileNameAttribute struct {
	ParentRecordNumber uint64
	ParentSequence     uint16
	CreationTime       FileTime
	LastModifiedTime   FileTime
	LastMftChangeTime  FileTime
	LastAccessTime     FileTime
	AllocatedSize      uint64
	RealSize           uint64
	Flags              uint32
	Namespace          FilenameNamespace
	Name               string
}

// ParseFileNameAttribute decodes a resident $FILE_NAME value (value is the
// attribute's resident payload, i.e. AttributeHeader.Value(record)).
func ParseFileNameAttribute(value []byte) (*FileNameAttribute, error) {
	if len(value) < 66 {
		return nil, fmt.Errorf("%w: FILE_NAME value too small (%d bytes)", scanerr.ErrInvalidAttribute, len(value))
	}

	parentRef := binary.LittleEndian.Uint64(value[0:8])
	nameLength := value[64]
	namespace := value[65]

	nameStart := 66
	nameEnd := nameStart + int(nameLength)*2
	if nameEnd > len(value) {
		return nil, fmt.Errorf("%w: FILE_NAME name out of bounds", scanerr.ErrInvalidAttribute)
	}

	return &FileNameAttribute{
		ParentRecordNumber: parentRef & RecordNumberMask,
		ParentSequence:     uint16(parentRef >> 48),
		CreationTime:       FileTime(binary.LittleEndian.Uint64(value[8:16])),
		LastModifiedTime:   FileTime(binary.LittleEndian.Uint64(value[16:24])),
		LastMftChangeTime:  FileTime(binary.LittleEndian.Uint64(value[24:32])),
		LastAccessTime:     FileTime(binary.LittleEndian.Uint64(value[32:40])),
		AllocatedSize:      binary.LittleEndian.Uint64(value[40:48]),
		RealSize:           binary.LittleEndian.Uint64(value[48:56]),
		Flags:              binary.LittleEndian.Uint32(value[56:60]),
		Namespace:           FilenameNamespace(namespace),
		Name:               decodeUTF16LE(value[nameStart:nameEnd]),
	}, nil
}

// EncodeFileNameAttribute is the inverse of ParseFileNameAttribute, used by
// tests to build synthetic MFT records.
func EncodeFileNameAttribute(f *FileNameAttribute) []byte {
	nameBytes := encodeUTF16LE(f.Name)
	value := make([]byte, 66+len(nameBytes))

	parentRef := (f.ParentRecordNumber & RecordNumberMask) | uint64(f.ParentSequence)<<48
	binary.LittleEndian.PutUint64(value[0:8], parentRef)
	binary.LittleEndian.PutUint64(value[8:16], uint64(f.CreationTime))
	binary.LittleEndian.PutUint64(value[16:24], uint64(f.LastModifiedTime))
	binary.LittleEndian.PutUint64(value[24:32], uint64(f.LastMftChangeTime))
	binary.LittleEndian.PutUint64(value[32:40], uint64(f.LastAccessTime))
	binary.LittleEndian.PutUint64(value[40:48], f.AllocatedSize)
	binary.LittleEndian.PutUint64(value[48:56], f.RealSize)
	binary.LittleEndian.PutUint32(value[56:60], f.Flags)
	value[64] = byte(len([]rune(f.Name)))
	value[65] = byte(f.Namespace)
	copy(value[66:], nameBytes)

	return value
}

// IsDirectory reports whether the FILE_ATTRIBUTE_DIRECTORY bit is set in
// Flags (only meaningful on the FILE_NAME copied into a directory's index;
// the duplicated-information fields lag the real STANDARD_INFORMATION).
func (f *FileNameAttribute) IsDirectory() bool {
	return f.Flags&FileAttrDirectoryFlag != 0 || f.Flags&FileAttrDirectory != 0
}
