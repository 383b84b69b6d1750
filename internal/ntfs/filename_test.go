package ntfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileNameAttributeRoundTrip(t *testing.T) {
	want := &FileNameAttribute{
		ParentRecordNumber: 5,
		ParentSequence:     2,
		CreationTime:       NewFileTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		LastModifiedTime:   NewFileTime(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		AllocatedSize:      4096,
		RealSize:           4000,
		Namespace:          NamespaceWin32,
		Name:               "document.docx",
	}

	encoded := EncodeFileNameAttribute(want)
	got, err := ParseFileNameAttribute(encoded)
	require.NoError(t, err)

	assert.Equal(t, want.ParentRecordNumber, got.ParentRecordNumber)
	assert.Equal(t, want.ParentSequence, got.ParentSequence)
	assert.Equal(t, want.CreationTime, got.CreationTime)
	assert.Equal(t, want.AllocatedSize, got.AllocatedSize)
	assert.Equal(t, want.RealSize, got.RealSize)
	assert.Equal(t, want.Namespace, got.Namespace)
	assert.Equal(t, want.Name, got.Name)
}

func TestParseFileNameAttributeRejectsShortValue(t *testing.T) {
	_, err := ParseFileNameAttribute(make([]byte, 10))
	assert.Error(t, err)
}

func TestFileNameAttributeIsDirectory(t *testing.T) {
	f := &FileNameAttribute{Flags: FileAttrDirectory}
	assert.True(t, f.IsDirectory())

	f2 := &FileNameAttribute{Flags: FileAttrArchive}
	assert.False(t, f2.IsDirectory())
}

func TestStandardInformationRoundTrip(t *testing.T) {
	want := &StandardInformation{
		CreationTime:       NewFileTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		LastModifiedTime:   NewFileTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		FileAttributes:     FileAttrArchive,
		OwnerID:            7,
		SecurityID:         42,
		UsnJournalSequence: 123456,
	}

	encoded := EncodeStandardInformation(want)
	got, err := ParseStandardInformation(encoded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseStandardInformationAcceptsPreWin2kForm(t *testing.T) {
	value := EncodeStandardInformation(&StandardInformation{FileAttributes: FileAttrReadOnly})
	got, err := ParseStandardInformation(value[:48])
	require.NoError(t, err)
	assert.Equal(t, uint32(FileAttrReadOnly), got.FileAttributes)
	assert.Equal(t, uint32(0), got.OwnerID)
}

func TestParseStandardInformationRejectsShortValue(t *testing.T) {
	_, err := ParseStandardInformation(make([]byte, 10))
	assert.Error(t, err)
}

func TestFileTimeRoundTrip(t *testing.T) {
	want := time.Date(2023, 11, 15, 10, 30, 0, 0, time.UTC)
	ft := NewFileTime(want)
	got := ft.Time()
	assert.True(t, want.Equal(got), "want %v, got %v", want, got)
}

func TestFileTimeZeroMapsToZeroTime(t *testing.T) {
	var ft FileTime
	assert.True(t, ft.Time().IsZero())
}
