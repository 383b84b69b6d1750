// Package ntfs decodes NTFS on-disk structures from raw byte slices: the
// boot sector, MFT record headers, attribute headers, FILE_NAME and
// STANDARD_INFORMATION payloads, ATTRIBUTE_LIST entries, data runs, and a
// minimal INDEX_ROOT/INDEX_ALLOCATION reader. Every decoder here is a pure
// function of its input bytes; none of them perform I/O.
package ntfs

// Well-known MFT record numbers (page references: NTFS on-disk format).
const (
	RecordMFT      uint64 = 0 // $MFT itself
	RecordMFTMirr  uint64 = 1 // $MFTMirr
	RecordLogFile  uint64 = 2 // $LogFile
	RecordVolume   uint64 = 3 // $Volume
	RecordAttrDef  uint64 = 4 // $AttrDef
	RecordRoot     uint64 = 5 // volume root directory
	RecordBitmap   uint64 = 6 // $Bitmap
	RecordBoot     uint64 = 7 // $Boot
	RecordBadClus  uint64 = 8 // $BadClus
	RecordSecure   uint64 = 9 // $Secure
	RecordUpCase   uint64 = 10
	RecordExtend   uint64 = 11

	// OrphanContainerRecord is the synthetic record number the tree builder
	// attaches unresolvable orphans under: a real node at record
	// math.MaxUint64, parent = root. Record numbers are 48 bits wide on
	// disk, so this sentinel can never collide with a real record.
	OrphanContainerRecord uint64 = 1<<64 - 1
)

// RecordNumberMask extracts the 48-bit record number from a 64-bit file
// reference number; the top 16 bits are the sequence number.
const RecordNumberMask uint64 = 0x0000FFFFFFFFFFFF

// MftRecordMagic is the 4-byte signature at the start of every in-use MFT
// record ("FILE"). A record whose magic does not match this is either
// unused, corrupt, or ("BAAD") a record NTFS itself has already flagged bad.
const MftRecordMagic uint32 = 0x454C4946 // "FILE" little-endian

// MFT record header flags.
const (
	MftRecordInUse      uint16 = 0x0001
	MftRecordDirectory  uint16 = 0x0002
)

// Attribute type codes (subset needed by this scanner).
const (
	AttrTypeStandardInformation uint32 = 0x10
	AttrTypeAttributeList      uint32 = 0x20
	AttrTypeFileName           uint32 = 0x30
	AttrTypeObjectID           uint32 = 0x40
	AttrTypeSecurityDescriptor uint32 = 0x50
	AttrTypeVolumeName         uint32 = 0x60
	AttrTypeVolumeInformation  uint32 = 0x70
	AttrTypeData               uint32 = 0x80
	AttrTypeIndexRoot          uint32 = 0x90
	AttrTypeIndexAllocation    uint32 = 0xA0
	AttrTypeBitmap             uint32 = 0xB0
	AttrTypeReparsePoint       uint32 = 0xC0
	AttrTypeEAInformation      uint32 = 0xD0
	AttrTypeEA                 uint32 = 0xE0
	AttrTypeLoggedUtilityStream uint32 = 0x100
	AttrTypeEndMarker          uint32 = 0xFFFFFFFF
)

// FilenameNamespace identifies which naming convention a FILE_NAME
// attribute was recorded under.
type FilenameNamespace uint8

const (
	NamespacePOSIX       FilenameNamespace = 0
	NamespaceWin32       FilenameNamespace = 1
	NamespaceDOS         FilenameNamespace = 2
	NamespaceWin32AndDOS FilenameNamespace = 3
)

func (n FilenameNamespace) String() string {
	switch n {
	case NamespacePOSIX:
		return "POSIX"
	case NamespaceWin32:
		return "WIN32"
	case NamespaceDOS:
		return "DOS"
	case NamespaceWin32AndDOS:
		return "WIN32_AND_DOS"
	default:
		return "UNKNOWN"
	}
}

// FILE_NAME attribute flags (subset: file_attributes field mirrors the
// Win32 FILE_ATTRIBUTE_* bits, plus the two directory/index-view bits NTFS
// defines on top of them).
const (
	FileAttrReadOnly            uint32 = 0x00000001
	FileAttrHidden              uint32 = 0x00000002
	FileAttrSystem              uint32 = 0x00000004
	FileAttrDirectory           uint32 = 0x00000010
	FileAttrArchive             uint32 = 0x00000020
	FileAttrSparseFile          uint32 = 0x00000200
	FileAttrReparsePoint        uint32 = 0x00000400
	FileAttrCompressed          uint32 = 0x00000800
	FileAttrEncrypted           uint32 = 0x00004000
	FileAttrDirectoryFlag       uint32 = 0x10000000 // set in a directory's FILE_NAME flags; see FileNameAttribute.IsDirectory
)

// FixupSectorSize is the fixed 512-byte stride fixup verification operates over,
// independent of the volume's physical sector size.
const FixupSectorSize = 512

// IndexEntryFlags bits for $INDEX_ALLOCATION / $INDEX_ROOT entries.
const (
	IndexEntrySubNode uint32 = 0x0001 // entry has a child index block
	IndexEntryLast    uint32 = 0x0002 // last entry in node (no key/data)
)
