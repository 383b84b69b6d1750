//go:build windows

package device

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/deploymenttheory/go-ntfs/internal/ntfs"
	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
	"github.com/deploymenttheory/go-ntfs/internal/usn"
)

// fsctlGetNtfsFileRecord is FSCTL_GET_NTFS_FILE_RECORD, the OS-assisted
// single-record fetch named in spec.md §4.A's query_file_record_by_id.
const fsctlGetNtfsFileRecord = 0x00090068

// ntfsFileRecordInputBuffer mirrors NTFS_FILE_RECORD_INPUT_BUFFER.
type ntfsFileRecordInputBuffer struct {
	FileReferenceNumber uint64
}

// ntfsFileRecordOutputHeader mirrors the fixed-size head of
// NTFS_FILE_RECORD_OUTPUT_BUFFER; Go has no flexible-array-member
// equivalent, so the record bytes that follow are sliced out of the raw
// reply buffer instead of being modeled as a field.
type ntfsFileRecordOutputHeader struct {
	FileReferenceNumber uint64
	FileRecordLength    uint32
}

// maxFileRecordReplySize bounds the DeviceIoControl reply buffer. NTFS MFT
// record sizes top out at 4KB (spec.md §4.A), so this leaves headroom for
// the output header.
const maxFileRecordReplySize = 8192

// LogicalVolume reads an NTFS volume through its logical drive handle
// (\\.\C:), the same access mode FSCTL_ENUM_USN_DATA and FSCTL_READ_USN_JOURNAL
// require.
type LogicalVolume struct {
	handle windows.Handle
	label  string
	serial uint64
}

// OpenLogicalVolume opens a drive letter for raw sequential/random-access
// reads. The caller must hold SeBackupPrivilege (or run elevated) for the
// open to succeed on a system volume.
func OpenLogicalVolume(opts OpenOptions) (*LogicalVolume, error) {
	path := fmt.Sprintf(`\\.\%s:`, opts.DriveLetter)
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scanerr.ErrVolumeOpen, err)
	}

	handle, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		if err == windows.ERROR_ACCESS_DENIED {
			return nil, fmt.Errorf("%w: %s", scanerr.ErrAccessDenied, path)
		}
		return nil, fmt.Errorf("%w: %v", scanerr.ErrVolumeOpen, err)
	}

	v := &LogicalVolume{handle: handle}
	v.label, v.serial = queryVolumeInfo(opts.DriveLetter)
	return v, nil
}

// ReadAt performs a volume-relative read. Windows requires volume I/O to be
// sector-aligned; callers issue aligned, sector-multiple reads (the MFT and
// USN layers size their buffers accordingly).
func (v *LogicalVolume) ReadAt(p []byte, off int64) (int, error) {
	var bytesRead uint32
	var overlapped windows.Overlapped
	overlapped.Offset = uint32(off)
	overlapped.OffsetHigh = uint32(off >> 32)

	err := windows.ReadFile(v.handle, p, &bytesRead, &overlapped)
	if err != nil {
		if err == windows.ERROR_ACCESS_DENIED {
			return int(bytesRead), fmt.Errorf("%w: %v", scanerr.ErrAccessDenied, err)
		}
		return int(bytesRead), fmt.Errorf("%w: %v", scanerr.ErrVolumeData, err)
	}
	return int(bytesRead), nil
}

func (v *LogicalVolume) Close() error {
	return windows.CloseHandle(v.handle)
}

func (v *LogicalVolume) VolumeLabel() string { return v.label }

func (v *LogicalVolume) VolumeSerialNumber() uint64 { return v.serial }

// Handle exposes the raw Windows handle for callers (the USN layer) that
// need to issue DeviceIoControl themselves rather than go through ReadAt.
func (v *LogicalVolume) Handle() windows.Handle { return v.handle }

// OpenJournal queries this volume's USN journal. Returns
// scanerr.ErrUsnJournalNotActive if the journal is not enabled.
func (v *LogicalVolume) OpenJournal() (*usn.Journal, error) {
	return usn.OpenJournal(v.handle)
}

// QueryFileRecordByID fetches one MFT record's raw bytes via
// FSCTL_GET_NTFS_FILE_RECORD, for a caller that has only a file reference
// number rather than a record index it can turn into an $MFT byte offset.
func (v *LogicalVolume) QueryFileRecordByID(fileReferenceNumber uint64) ([]byte, error) {
	input := ntfsFileRecordInputBuffer{FileReferenceNumber: fileReferenceNumber}
	reply := make([]byte, maxFileRecordReplySize)
	var bytesReturned uint32

	err := windows.DeviceIoControl(
		v.handle, fsctlGetNtfsFileRecord,
		(*byte)(unsafe.Pointer(&input)), uint32(unsafe.Sizeof(input)),
		&reply[0], uint32(len(reply)),
		&bytesReturned, nil,
	)
	if err != nil {
		if err == windows.ERROR_ACCESS_DENIED {
			return nil, fmt.Errorf("%w: file record %#x", scanerr.ErrAccessDenied, fileReferenceNumber)
		}
		return nil, fmt.Errorf("%w: file record %#x: %v", scanerr.ErrMftRead, fileReferenceNumber, err)
	}

	header := (*ntfsFileRecordOutputHeader)(unsafe.Pointer(&reply[0]))
	headerSize := int(unsafe.Sizeof(*header))
	recordLen := int(header.FileRecordLength)
	if headerSize+recordLen > len(reply) {
		recordLen = len(reply) - headerSize
	}
	return reply[headerSize : headerSize+recordLen], nil
}

// ioctlStorageGetDeviceNumber is IOCTL_STORAGE_GET_DEVICE_NUMBER.
const ioctlStorageGetDeviceNumber = 0x2D1080

// storageDeviceNumber mirrors STORAGE_DEVICE_NUMBER.
type storageDeviceNumber struct {
	DeviceType      uint32
	DeviceNumber    uint32
	PartitionNumber uint32
}

// PhysicalDriveNumber resolves the 0-based physical disk index backing
// this logical volume, for opening a PhysicalVolume fallback against the
// same disk.
func (v *LogicalVolume) PhysicalDriveNumber() (int, error) {
	var sdn storageDeviceNumber
	var bytesReturned uint32

	err := windows.DeviceIoControl(
		v.handle, ioctlStorageGetDeviceNumber,
		nil, 0,
		(*byte)(unsafe.Pointer(&sdn)), uint32(unsafe.Sizeof(sdn)),
		&bytesReturned, nil,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: device number: %v", scanerr.ErrVolumeData, err)
	}
	return int(sdn.DeviceNumber), nil
}

func queryVolumeInfo(driveLetter string) (label string, serial uint64) {
	root := driveLetter + `:\`
	rootPtr, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return "", 0
	}

	var volumeNameBuf [windows.MAX_PATH + 1]uint16
	var serialNumber uint32
	var maxComponentLen, fsFlags uint32

	err = windows.GetVolumeInformation(
		rootPtr,
		&volumeNameBuf[0],
		uint32(len(volumeNameBuf)),
		&serialNumber,
		&maxComponentLen,
		&fsFlags,
		nil,
		0,
	)
	if err != nil {
		return "", 0
	}
	return windows.UTF16ToString(volumeNameBuf[:]), uint64(serialNumber)
}

// sectorSize is the disk sector size assumed when walking the MBR/GPT
// partition tables below (512-byte logical sectors; 4Kn Advanced Format
// disks still expose a 512-byte emulated sector for the partition table).
const sectorSize = 512

// PhysicalVolume reads raw bytes from \\.\PhysicalDriveN, bypassing the
// filesystem driver entirely. It locates the target NTFS partition itself
// by walking the disk's MBR (or GPT, behind a protective MBR) and reading
// candidate boot sectors until one parses as NTFS, then serves ReadAt
// relative to that partition's first byte -- the same volume-relative
// offsets LogicalVolume uses. Used as the AccessDenied fallback for
// protected records ($MFT, $LogFile, $Secure) a logical-volume handle may
// refuse to hand back.
type PhysicalVolume struct {
	handle          windows.Handle
	serial          uint64
	partitionOffset int64
}

// OpenPhysicalVolume opens \\.\PhysicalDriveN directly and locates its
// first NTFS partition. driveNumber is the 0-based physical disk index,
// not a drive letter.
func OpenPhysicalVolume(driveNumber int) (*PhysicalVolume, error) {
	path := fmt.Sprintf(`\\.\PhysicalDrive%d`, driveNumber)
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scanerr.ErrVolumeOpen, err)
	}

	handle, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		if err == windows.ERROR_ACCESS_DENIED {
			return nil, fmt.Errorf("%w: %s", scanerr.ErrAccessDenied, path)
		}
		return nil, fmt.Errorf("%w: %v", scanerr.ErrVolumeOpen, err)
	}

	offset, err := locatePartitionOffset(func(off int64, n int) ([]byte, error) {
		buf := make([]byte, n)
		if _, err := rawReadAt(handle, buf, off); err != nil {
			return nil, err
		}
		return buf, nil
	})
	if err != nil {
		windows.CloseHandle(handle)
		return nil, err
	}

	p := &PhysicalVolume{handle: handle, partitionOffset: offset}
	bootBuf := make([]byte, 512)
	if _, err := rawReadAt(handle, bootBuf, offset); err == nil {
		if bs, err := ntfs.ParseBootSector(bootBuf); err == nil {
			p.serial = bs.VolumeSerialNumber
		}
	}

	return p, nil
}

// rawReadAt performs a raw positioned read against handle into buf.
func rawReadAt(handle windows.Handle, buf []byte, off int64) (int, error) {
	var bytesRead uint32
	var overlapped windows.Overlapped
	overlapped.Offset = uint32(off)
	overlapped.OffsetHigh = uint32(off >> 32)

	err := windows.ReadFile(handle, buf, &bytesRead, &overlapped)
	if err != nil {
		return int(bytesRead), fmt.Errorf("%w: %v", scanerr.ErrVolumeData, err)
	}
	return int(bytesRead), nil
}

// locatePartitionOffset walks the MBR's four primary partition entries; if
// it finds a GPT protective entry (type 0xEE) it defers to
// locateGptPartitionOffset instead. readSector(off, n) must return n bytes
// starting at disk-relative byte offset off.
func locatePartitionOffset(readSector func(off int64, n int) ([]byte, error)) (int64, error) {
	mbr, err := readSector(0, sectorSize)
	if err != nil {
		return 0, fmt.Errorf("%w: reading MBR: %v", scanerr.ErrVolumeData, err)
	}
	if len(mbr) < sectorSize || mbr[510] != 0x55 || mbr[511] != 0xAA {
		return 0, fmt.Errorf("%w: no MBR boot signature", scanerr.ErrNotNtfsVolume)
	}

	for i := 0; i < 4; i++ {
		entry := mbr[0x1BE+i*16 : 0x1BE+(i+1)*16]
		partType := entry[4]
		if partType == 0 {
			continue
		}
		if partType == 0xEE {
			return locateGptPartitionOffset(readSector)
		}
		startLBA := binary.LittleEndian.Uint32(entry[8:12])
		candidate := int64(startLBA) * sectorSize
		if boot, err := readSector(candidate, sectorSize); err == nil {
			if _, err := ntfs.ParseBootSector(boot); err == nil {
				return candidate, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: no NTFS partition found in MBR", scanerr.ErrNotNtfsVolume)
}

// locateGptPartitionOffset reads the GPT header at LBA1 and walks its
// partition entry array, returning the first entry whose boot sector
// parses as NTFS.
func locateGptPartitionOffset(readSector func(off int64, n int) ([]byte, error)) (int64, error) {
	header, err := readSector(sectorSize, sectorSize)
	if err != nil {
		return 0, fmt.Errorf("%w: reading GPT header: %v", scanerr.ErrVolumeData, err)
	}
	if string(header[0:8]) != "EFI PART" {
		return 0, fmt.Errorf("%w: missing GPT signature", scanerr.ErrNotNtfsVolume)
	}

	partitionEntryLBA := binary.LittleEndian.Uint64(header[72:80])
	numEntries := binary.LittleEndian.Uint32(header[80:84])
	entrySize := binary.LittleEndian.Uint32(header[84:88])
	entriesStart := int64(partitionEntryLBA) * sectorSize

	for i := uint32(0); i < numEntries; i++ {
		entryOff := entriesStart + int64(i)*int64(entrySize)
		entry, err := readSector(entryOff, int(entrySize))
		if err != nil {
			break
		}
		if allZero(entry[0:16]) {
			continue // unused partition entry
		}
		startLBA := binary.LittleEndian.Uint64(entry[32:40])
		candidate := int64(startLBA) * sectorSize
		if boot, err := readSector(candidate, sectorSize); err == nil {
			if _, err := ntfs.ParseBootSector(boot); err == nil {
				return candidate, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: no NTFS partition found in GPT", scanerr.ErrNotNtfsVolume)
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func (p *PhysicalVolume) ReadAt(buf []byte, off int64) (int, error) {
	return rawReadAt(p.handle, buf, p.partitionOffset+off)
}

func (p *PhysicalVolume) Close() error { return windows.CloseHandle(p.handle) }

func (p *PhysicalVolume) VolumeLabel() string { return "" }

func (p *PhysicalVolume) VolumeSerialNumber() uint64 { return p.serial }

// QueryFileRecordByID is not available on a raw physical-disk handle:
// FSCTL_GET_NTFS_FILE_RECORD requires a filesystem-mounted volume handle,
// which PhysicalVolume deliberately bypasses.
func (p *PhysicalVolume) QueryFileRecordByID(fileReferenceNumber uint64) ([]byte, error) {
	return nil, scanerr.ErrFileRecordQuery
}
