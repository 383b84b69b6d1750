package mft

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-ntfs/internal/ntfs"
	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
)

// fakeVolume is an in-memory device.VolumeReader backed by a single byte
// slice addressed by absolute offset, sized to hold every record a test
// writes into it.
type fakeVolume struct {
	data []byte
}

func newFakeVolume(size int) *fakeVolume { return &fakeVolume{data: make([]byte, size)} }

func (f *fakeVolume) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, f.data[off:])
	return n, nil
}
func (f *fakeVolume) Close() error              { return nil }
func (f *fakeVolume) VolumeLabel() string       { return "TEST" }
func (f *fakeVolume) VolumeSerialNumber() uint64 { return 0 }

// QueryFileRecordByID treats the file reference number's low 48 bits as a
// record index into the fixed-size synthetic record layout writeAttribute
// et al. assume, mirroring how the record's own FileReferenceNumber field
// is constructed elsewhere in this package.
func (f *fakeVolume) QueryFileRecordByID(frn uint64) ([]byte, error) {
	off := int64(frn&0x0000FFFFFFFFFFFF) * testRecordSize
	buf := make([]byte, testRecordSize)
	n := copy(buf, f.data[off:])
	return buf[:n], nil
}

// accessDeniedVolume fails every ReadAt with scanerr.ErrAccessDenied, used
// to exercise Parser's fallback-volume retry path.
type accessDeniedVolume struct{}

func (accessDeniedVolume) ReadAt(p []byte, off int64) (int, error) {
	return 0, scanerr.ErrAccessDenied
}
func (accessDeniedVolume) Close() error              { return nil }
func (accessDeniedVolume) VolumeLabel() string       { return "" }
func (accessDeniedVolume) VolumeSerialNumber() uint64 { return 0 }
func (accessDeniedVolume) QueryFileRecordByID(frn uint64) ([]byte, error) {
	return nil, scanerr.ErrAccessDenied
}

const testRecordSize = 1024
const testAttrOffset = 56

func testVolumeData() NtfsVolumeData {
	return NtfsVolumeData{BytesPerSector: 512, SectorsPerCluster: 1, MftStartCluster: 0, MftRecordSize: testRecordSize}
}

// writeAttribute writes one resident attribute at off in buf (mirroring
// internal/ntfs's own attribute_test.go helper) and returns the offset
// just past it.
func writeAttribute(buf []byte, off int, attrType uint32, value []byte) int {
	headerLen := 24 + len(value)
	if pad := headerLen % 8; pad != 0 {
		headerLen += 8 - pad
	}
	binary.LittleEndian.PutUint32(buf[off:off+4], attrType)
	binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(headerLen))
	buf[off+8] = 0
	buf[off+9] = 0
	binary.LittleEndian.PutUint16(buf[off+10:off+12], 24)
	binary.LittleEndian.PutUint32(buf[off+16:off+20], uint32(len(value)))
	binary.LittleEndian.PutUint16(buf[off+20:off+22], 24)
	copy(buf[off+24:off+24+len(value)], value)
	return off + headerLen
}

// buildMftRecord writes a complete record header (no fixup, usaCount=0)
// followed by the given attribute bytes and an end marker.
func buildMftRecord(buf []byte, flags uint16, attrsFn func(buf []byte, off int) int) {
	binary.LittleEndian.PutUint32(buf[0:4], ntfs.MftRecordMagic)
	binary.LittleEndian.PutUint16(buf[4:6], 0) // usaOffset
	binary.LittleEndian.PutUint16(buf[6:8], 0) // usaCount: fixup is a no-op
	binary.LittleEndian.PutUint16(buf[16:18], 1) // sequence number
	binary.LittleEndian.PutUint16(buf[20:22], testAttrOffset)
	binary.LittleEndian.PutUint16(buf[22:24], flags)

	off := attrsFn(buf, testAttrOffset)
	binary.LittleEndian.PutUint32(buf[off:off+4], ntfs.AttrTypeEndMarker)
}

func TestFetchRecordReturnsNilForUnusedRecordByDefault(t *testing.T) {
	vol := newFakeVolume(testRecordSize)
	buildMftRecord(vol.data, 0, func(buf []byte, off int) int { return off }) // no in-use flag

	p := NewParser(vol, testVolumeData(), false)
	entry, err := p.FetchRecord(0)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestFetchRecordReturnsEntryForUnusedWhenIncludeUnlinkedTrue(t *testing.T) {
	vol := newFakeVolume(testRecordSize)
	buildMftRecord(vol.data, 0, func(buf []byte, off int) int {
		fn := &ntfs.FileNameAttribute{ParentRecordNumber: ntfs.RecordRoot, Name: "deleted.txt", Namespace: ntfs.NamespaceWin32}
		return writeAttribute(buf, off, ntfs.AttrTypeFileName, ntfs.EncodeFileNameAttribute(fn))
	})

	p := NewParser(vol, testVolumeData(), true)
	entry, err := p.FetchRecord(0)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.IsDeleted)
}

func TestFetchRecordParsesStandardInfoAndFileName(t *testing.T) {
	vol := newFakeVolume(testRecordSize)
	buildMftRecord(vol.data, ntfs.MftRecordInUse|ntfs.MftRecordDirectory, func(buf []byte, off int) int {
		off = writeAttribute(buf, off, ntfs.AttrTypeStandardInformation,
			ntfs.EncodeStandardInformation(&ntfs.StandardInformation{FileAttributes: uint32(ntfs.FileAttrDirectory)}))
		fn := &ntfs.FileNameAttribute{ParentRecordNumber: ntfs.RecordRoot, Name: "Documents", Namespace: ntfs.NamespaceWin32}
		off = writeAttribute(buf, off, ntfs.AttrTypeFileName, ntfs.EncodeFileNameAttribute(fn))
		return off
	})

	p := NewParser(vol, testVolumeData(), false)
	entry, err := p.FetchRecord(0)
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.True(t, entry.IsDirectory)
	require.Len(t, entry.Links, 1)
	assert.Equal(t, "Documents", entry.Links[0].Name)
	assert.Equal(t, ntfs.RecordRoot, entry.Links[0].ParentRecordNumber)
}

func TestFetchRecordMergesFileNameFromAttributeListExtensionRecord(t *testing.T) {
	const baseIndex = 20
	const extIndex = 21
	vol := newFakeVolume(testRecordSize * (extIndex + 1))

	// extension record holds a second FILE_NAME under a different parent,
	// with BaseRecordRef pointing back at baseIndex.
	extBuf := vol.data[testRecordSize*extIndex : testRecordSize*(extIndex+1)]
	binary.LittleEndian.PutUint32(extBuf[0:4], ntfs.MftRecordMagic)
	binary.LittleEndian.PutUint16(extBuf[20:22], testAttrOffset)
	binary.LittleEndian.PutUint16(extBuf[22:24], ntfs.MftRecordInUse)
	binary.LittleEndian.PutUint64(extBuf[32:40], baseIndex) // BaseRecordRef -> base record
	fn2 := &ntfs.FileNameAttribute{ParentRecordNumber: 77, Name: "linked-from-ext.txt", Namespace: ntfs.NamespacePOSIX}
	off := writeAttribute(extBuf, testAttrOffset, ntfs.AttrTypeFileName, ntfs.EncodeFileNameAttribute(fn2))
	binary.LittleEndian.PutUint32(extBuf[off:off+4], ntfs.AttrTypeEndMarker)

	baseBuf := vol.data[testRecordSize*baseIndex : testRecordSize*(baseIndex+1)]
	buildMftRecord(baseBuf, ntfs.MftRecordInUse, func(buf []byte, off int) int {
		fn1 := &ntfs.FileNameAttribute{ParentRecordNumber: ntfs.RecordRoot, Name: "primary.txt", Namespace: ntfs.NamespaceWin32}
		off = writeAttribute(buf, off, ntfs.AttrTypeFileName, ntfs.EncodeFileNameAttribute(fn1))

		entry := make([]byte, 26)
		binary.LittleEndian.PutUint32(entry[0:4], ntfs.AttrTypeFileName)
		binary.LittleEndian.PutUint16(entry[4:6], 26)
		binary.LittleEndian.PutUint64(entry[16:24], extIndex) // file reference: extension record, sequence 0
		off = writeAttribute(buf, off, ntfs.AttrTypeAttributeList, entry)
		return off
	})

	p := NewParser(vol, testVolumeData(), false)
	entry, err := p.FetchRecord(baseIndex)
	require.NoError(t, err)
	require.NotNil(t, entry)

	require.Len(t, entry.Links, 2, "both the primary FILE_NAME and the extension record's FILE_NAME must survive")
	names := []string{entry.Links[0].Name, entry.Links[1].Name}
	assert.Contains(t, names, "primary.txt")
	assert.Contains(t, names, "linked-from-ext.txt")
}

func TestFilterNamespacesPrefersWin32OverPosixAndDos(t *testing.T) {
	links := []FileNameLink{
		{ParentRecordNumber: 1, Name: "FILENA~1.TXT", Namespace: ntfs.NamespaceDOS},
		{ParentRecordNumber: 1, Name: "filename-posix", Namespace: ntfs.NamespacePOSIX},
		{ParentRecordNumber: 1, Name: "filename.txt", Namespace: ntfs.NamespaceWin32},
	}
	result := filterNamespaces(links)
	require.Len(t, result, 1)
	assert.Equal(t, "filename.txt", result[0].Name)
}

func TestFilterNamespacesFallsBackToPosixThenDos(t *testing.T) {
	posixOnly := filterNamespaces([]FileNameLink{{ParentRecordNumber: 1, Name: "posix-name", Namespace: ntfs.NamespacePOSIX}})
	require.Len(t, posixOnly, 1)
	assert.Equal(t, "posix-name", posixOnly[0].Name)

	dosOnly := filterNamespaces([]FileNameLink{{ParentRecordNumber: 1, Name: "DOSNAME.TXT", Namespace: ntfs.NamespaceDOS}})
	require.Len(t, dosOnly, 1)
	assert.Equal(t, "DOSNAME.TXT", dosOnly[0].Name)
}

func TestFilterNamespacesKeepsOneLinkPerDistinctParent(t *testing.T) {
	links := []FileNameLink{
		{ParentRecordNumber: 1, Name: "in-dir-a", Namespace: ntfs.NamespaceWin32},
		{ParentRecordNumber: 2, Name: "in-dir-b", Namespace: ntfs.NamespaceWin32},
	}
	result := filterNamespaces(links)
	require.Len(t, result, 2)
}

func TestFetchRecordRetriesViaFallbackOnAccessDenied(t *testing.T) {
	vol := newFakeVolume(testRecordSize)
	buildMftRecord(vol.data, ntfs.MftRecordInUse, func(buf []byte, off int) int {
		fn := &ntfs.FileNameAttribute{ParentRecordNumber: ntfs.RecordRoot, Name: "protected.txt", Namespace: ntfs.NamespaceWin32}
		return writeAttribute(buf, off, ntfs.AttrTypeFileName, ntfs.EncodeFileNameAttribute(fn))
	})

	p := NewParser(accessDeniedVolume{}, testVolumeData(), false)

	_, err := p.FetchRecord(0)
	require.Error(t, err, "with no fallback installed, access denial must surface as an error")

	p.SetFallback(vol)
	entry, err := p.FetchRecord(0)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Len(t, entry.Links, 1)
	assert.Equal(t, "protected.txt", entry.Links[0].Name)
}

func TestFetchRecordErrorsOnInvalidMagic(t *testing.T) {
	vol := newFakeVolume(testRecordSize)
	p := NewParser(vol, testVolumeData(), false)
	_, err := p.FetchRecord(0)
	assert.Error(t, err)
}
