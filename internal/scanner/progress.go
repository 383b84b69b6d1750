package scanner

import (
	"sync/atomic"
	"time"
)

// Progress is an atomically-updated counter block a UI thread can sample
// without locking. It is shared (by pointer) between the orchestrator and
// every worker.
type Progress struct {
	phase           atomic.Int32
	recordsProcessed atomic.Int64
	recordsTotal     atomic.Int64
	errorsRecovered  atomic.Int64
	startedAt        time.Time
}

// NewProgress returns a Progress with its clock started now.
func NewProgress(now time.Time) *Progress {
	p := &Progress{startedAt: now}
	p.phase.Store(int32(PhaseInitializing))
	return p
}

func (p *Progress) SetPhase(phase Phase) { p.phase.Store(int32(phase)) }

func (p *Progress) AddProcessed(n int64) { p.recordsProcessed.Add(n) }

func (p *Progress) SetTotal(n int64) { p.recordsTotal.Store(n) }

func (p *Progress) AddErrorsRecovered(n int64) { p.errorsRecovered.Add(n) }

// ScanProgress is a point-in-time snapshot, matching the frontend contract
// in spec.md §6: {phase, records_processed, records_total,
// errors_recovered, elapsed}.
type ScanProgress struct {
	Phase            Phase
	RecordsProcessed int64
	RecordsTotal     int64
	ErrorsRecovered  int64
	Elapsed          time.Duration
}

// Snapshot samples the counters without locking.
func (p *Progress) Snapshot(now time.Time) ScanProgress {
	return ScanProgress{
		Phase:            Phase(p.phase.Load()),
		RecordsProcessed: p.recordsProcessed.Load(),
		RecordsTotal:     p.recordsTotal.Load(),
		ErrorsRecovered:  p.errorsRecovered.Load(),
		Elapsed:          now.Sub(p.startedAt),
	}
}
