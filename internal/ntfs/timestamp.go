package ntfs

import "time"

// windowsEpochOffset100ns is the number of 100-ns ticks between the
// Windows FILETIME epoch (1601-01-01 UTC) and the Unix epoch
// (1970-01-01 UTC).
const windowsEpochOffset100ns = 116444736000000000

// FileTime is an NTFS timestamp: 100-nanosecond ticks since 1601-01-01 UTC,
// exactly as stored in STANDARD_INFORMATION and FILE_NAME attributes.
type FileTime uint64

// Time converts a FileTime to a Go time.Time in UTC. A zero FileTime (or
// one that predates the Unix epoch, which never happens on a real volume
// but can appear in corrupt records) maps to the zero time.Time.
func (f FileTime) Time() time.Time {
	if uint64(f) < windowsEpochOffset100ns {
		return time.Time{}
	}
	ticks := uint64(f) - windowsEpochOffset100ns
	return time.Unix(0, int64(ticks)*100).UTC()
}

// NewFileTime converts a Go time.Time to NTFS 100-ns-tick FileTime.
func NewFileTime(t time.Time) FileTime {
	unixNanos := t.UTC().UnixNano()
	ticks := unixNanos/100 + windowsEpochOffset100ns
	if ticks < 0 {
		return 0
	}
	return FileTime(ticks)
}
