//go:build windows

package usn

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
)

// Win32 USN ioctl codes and request/reply structure layouts, grounded on
// the fsnotify Windows USN backend and the Microsoft winioctl.h reference.
const (
	fsctlQueryUsnJournal = 0x000900F4
	fsctlEnumUsnData     = 0x000900B3
	fsctlReadUsnJournal  = 0x000900BB

	enumBufferSize = 1 << 16
)

// queryUsnJournalData mirrors QUERY_USN_JOURNAL_DATA (the V0 form, which
// is what FSCTL_QUERY_USN_JOURNAL always returns).
type queryUsnJournalData struct {
	UsnJournalID    uint64
	FirstUsn        int64
	NextUsn         int64
	LowestValidUsn  int64
	MaxUsn          int64
	MaximumSize     uint64
	AllocationDelta uint64
}

// mftEnumDataV0 mirrors MFT_ENUM_DATA_V0, the request struct for
// FSCTL_ENUM_USN_DATA.
type mftEnumDataV0 struct {
	StartFileReferenceNumber uint64
	LowUsn                   int64
	HighUsn                  int64
}

// readUsnJournalData mirrors READ_USN_JOURNAL_DATA_V0, the request struct
// for FSCTL_READ_USN_JOURNAL.
type readUsnJournalData struct {
	StartUsn          int64
	ReasonMask        uint32
	ReturnOnlyOnClose uint32
	Timeout           uint64
	BytesToWaitFor    uint64
	UsnJournalID       uint64
}

// Journal wraps a volume handle for USN journal operations.
type Journal struct {
	handle windows.Handle
	id     uint64
	nextUsn int64
}

// OpenJournal queries the journal on an already-open logical volume
// handle. Returns scanerr.ErrUsnJournalNotActive if the volume has no
// active journal (the orchestrator falls back to MFT-only scanning).
func OpenJournal(handle windows.Handle) (*Journal, error) {
	var data queryUsnJournalData
	var bytesReturned uint32

	err := windows.DeviceIoControl(
		handle, fsctlQueryUsnJournal,
		nil, 0,
		(*byte)(unsafe.Pointer(&data)), uint32(unsafe.Sizeof(data)),
		&bytesReturned, nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scanerr.ErrUsnJournalNotActive, err)
	}

	return &Journal{handle: handle, id: data.UsnJournalID, nextUsn: data.NextUsn}, nil
}

// EnumerateAll walks the entire volume via FSCTL_ENUM_USN_DATA starting
// from file reference number 0, invoking batch with up to batchSize entries
// at a time (all entries of one reply at once when batchSize <= 0) until
// the enumeration is exhausted.
func (j *Journal) EnumerateAll(batchSize int, batch func([]Entry) error) error {
	req := mftEnumDataV0{StartFileReferenceNumber: 0, LowUsn: 0, HighUsn: 1<<63 - 1}
	buf := make([]byte, enumBufferSize)

	for {
		var bytesReturned uint32
		err := windows.DeviceIoControl(
			j.handle, fsctlEnumUsnData,
			(*byte)(unsafe.Pointer(&req)), uint32(unsafe.Sizeof(req)),
			&buf[0], uint32(len(buf)),
			&bytesReturned, nil,
		)
		if err != nil {
			if err == windows.ERROR_HANDLE_EOF {
				return nil
			}
			return fmt.Errorf("%w: enum usn data: %v", scanerr.ErrUsnJournalError, err)
		}
		if bytesReturned <= 8 {
			return nil
		}

		nextStart := binary.LittleEndian.Uint64(buf[0:8])
		entries := DecodeRecords(buf[8:bytesReturned])

		pending := entries
		for len(pending) > 0 {
			n := batchSize
			if n <= 0 || n > len(pending) {
				n = len(pending)
			}
			if err := batch(pending[:n]); err != nil {
				return err
			}
			pending = pending[n:]
		}

		req.StartFileReferenceNumber = nextStart
	}
}

// ReadFromUsn tails the journal starting at startUsn, returning the
// decoded entries read in one pass and the cursor to resume from.
func (j *Journal) ReadFromUsn(startUsn int64) ([]Entry, int64, error) {
	req := readUsnJournalData{
		StartUsn:     startUsn,
		ReasonMask:   0xFFFFFFFF,
		UsnJournalID: j.id,
	}
	buf := make([]byte, enumBufferSize)
	var bytesReturned uint32

	err := windows.DeviceIoControl(
		j.handle, fsctlReadUsnJournal,
		(*byte)(unsafe.Pointer(&req)), uint32(unsafe.Sizeof(req)),
		&buf[0], uint32(len(buf)),
		&bytesReturned, nil,
	)
	if err != nil {
		if err == windows.ERROR_HANDLE_EOF {
			return nil, startUsn, nil
		}
		return nil, startUsn, fmt.Errorf("%w: read usn journal: %v", scanerr.ErrUsnJournalError, err)
	}
	if bytesReturned <= 8 {
		return nil, startUsn, nil
	}

	nextUsn := int64(binary.LittleEndian.Uint64(buf[0:8]))
	entries := DecodeRecords(buf[8:bytesReturned])
	return entries, nextUsn, nil
}
