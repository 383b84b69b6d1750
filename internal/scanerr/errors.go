// Package scanerr defines the error taxonomy shared by every layer of the
// scanner: which failures are fatal to a scan and which are per-record or
// per-journal-call recoverable.
package scanerr

import (
	"errors"
	"fmt"
)

// Fatal errors abort scan() entirely.
var (
	ErrVolumeOpen          = errors.New("failed to open volume")
	ErrNotNtfsVolume       = errors.New("volume is not an NTFS filesystem")
	ErrVolumeData          = errors.New("failed to read volume data")
	ErrMftRead             = errors.New("failed to read $MFT")
	ErrAccessDenied        = errors.New("access denied")
	ErrUnsupportedPlatform = errors.New("live volume access is not supported on this platform")
	ErrFileRecordQuery     = errors.New("file record query is not supported on this volume backend")
)

// Per-record errors are recoverable: the orchestrator counts them and moves
// on to the next record.
var (
	ErrInvalidMftRecord         = errors.New("invalid MFT record")
	ErrFixupVerificationFailed = errors.New("MFT fixup verification failed")
	ErrInvalidAttribute        = errors.New("invalid attribute")
	ErrOrphanedRecord          = errors.New("record references a non-existent parent")
	ErrDataRunError            = errors.New("data run decode error")
)

// Journal-level errors trigger a fallback or a single retry, never a scan abort.
var (
	ErrUsnJournalNotActive = errors.New("USN journal is not active on this volume")
	ErrUsnJournalError     = errors.New("USN journal error")
)

// Caller errors reject a request before any I/O happens.
var (
	ErrInvalidPath     = errors.New("invalid path")
	ErrBufferTooSmall  = errors.New("buffer too small")
)

// RecordError wraps a per-record error with the MFT record number it
// occurred at, so callers can log "record 1234: fixup verification failed"
// without every call site formatting that string itself.
type RecordError struct {
	Record uint64
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Record, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// NewRecordError wraps err with the record number it was encountered at.
func NewRecordError(record uint64, err error) *RecordError {
	return &RecordError{Record: record, Err: err}
}

// IsRecoverable reports whether the orchestrator may count err and continue
// scanning rather than aborting scan() outright.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInvalidMftRecord) ||
		errors.Is(err, ErrFixupVerificationFailed) ||
		errors.Is(err, ErrInvalidAttribute) ||
		errors.Is(err, ErrOrphanedRecord) ||
		errors.Is(err, ErrDataRunError)
}

// IsJournalRecoverable reports whether a USN-journal-level error should
// trigger a single retry with a fresh cursor rather than aborting the scan.
func IsJournalRecoverable(err error) bool {
	return errors.Is(err, ErrUsnJournalError)
}
