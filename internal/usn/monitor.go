package usn

import (
	"sync/atomic"
	"time"
)

// JournalTailer is the subset of *Journal the change monitor depends on,
// narrowed to an interface so the polling loop can be unit-tested against
// a fake journal.
type JournalTailer interface {
	ReadFromUsn(startUsn int64) ([]Entry, int64, error)
}

// ChangeEvent is one tree mutation derived from a journal entry, matching
// the frontend contract's {node_key, reason, timestamp} shape. NodeKey
// fields are left as plain record numbers here; internal/treebuilder's
// Builder.ApplyChange resolves the full composite key when it applies the
// event.
type ChangeEvent struct {
	RecordNumber       uint64
	ParentRecordNumber uint64
	Name               string
	Reason             ChangeReason
	Timestamp          time.Time
	FileAttributes     uint32
}

// Monitor polls a journal from the last-seen USN and emits ChangeEvents.
// It performs no tree mutation itself; a caller (pkg/ntfsscan's
// ChangeMonitor) consumes the Events channel and applies each event through
// internal/treebuilder, the writer-discipline mutation spec.md §4.H
// describes.
type Monitor struct {
	journal   JournalTailer
	pollEvery time.Duration

	Events chan ChangeEvent
	Errors chan error

	stopped atomic.Bool
	done    chan struct{}
}

// NewMonitor starts no goroutine by itself; call Run to begin polling.
func NewMonitor(journal JournalTailer, pollEvery time.Duration) *Monitor {
	if pollEvery <= 0 {
		pollEvery = time.Second
	}
	return &Monitor{
		journal:   journal,
		pollEvery: pollEvery,
		Events:    make(chan ChangeEvent, 256),
		Errors:    make(chan error, 16),
		done:      make(chan struct{}),
	}
}

// Run polls from startUsn until Stop is called, sending decoded entries as
// ChangeEvents. It blocks the calling goroutine; callers run it in its own
// goroutine. The stop flag is checked between journal reads, never
// mid-batch, matching spec.md §5's cancellation discipline.
func (m *Monitor) Run(startUsn int64) {
	defer close(m.done)
	cursor := startUsn

	for !m.stopped.Load() {
		entries, next, err := m.journal.ReadFromUsn(cursor)
		if err != nil {
			select {
			case m.Errors <- err:
			default:
			}
			time.Sleep(m.pollEvery)
			continue
		}

		for _, e := range entries {
			m.Events <- toChangeEvent(e)
		}

		if next == cursor {
			time.Sleep(m.pollEvery)
		}
		cursor = next
	}
}

// Stop signals the polling loop to exit after its current journal read.
func (m *Monitor) Stop() {
	m.stopped.Store(true)
}

// Done returns a channel closed once Run has returned, letting a consumer
// of Events know when no further events will arrive.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

func toChangeEvent(e Entry) ChangeEvent {
	return ChangeEvent{
		RecordNumber:       e.RecordNumber,
		ParentRecordNumber: e.ParentRecordNumber,
		Name:               e.Name,
		Reason:             e.Reason,
		Timestamp:          e.Timestamp.Time(),
		FileAttributes:     e.FileAttributes,
	}
}
