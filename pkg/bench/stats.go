package bench

import (
	"math"
	"sync/atomic"

	"github.com/cuemby/osbench/pkg/obs"
)

// ThreadStats is one worker's outcome counters. The owning worker is the only
// writer; the monitor reads concurrently without any lock, so every field is
// accessed through relaxed atomic loads and stores. Torn or slightly stale
// snapshots are acceptable because the counters feed progress display and the
// final report, never control flow.
//
// Latencies are tracked in microseconds to keep sub-millisecond operations
// visible; reporting converts to milliseconds.
type ThreadStats struct {
	Success        atomic.Int64
	Fail403        atomic.Int64
	Fail404        atomic.Int64
	Fail409        atomic.Int64
	Fail4xxOther   atomic.Int64
	Fail5xx        atomic.Int64
	FailOther      atomic.Int64
	FailValidation atomic.Int64

	SuccessBytes   atomic.Int64
	TotalLatencyUs atomic.Int64
	MinLatencyUs   atomic.Int64
	MaxLatencyUs   atomic.Int64
}

// NewThreadStats returns zeroed counters with the min-latency sentinel set.
func NewThreadStats() *ThreadStats {
	ts := &ThreadStats{}
	ts.MinLatencyUs.Store(math.MaxInt64)
	return ts
}

// CountClass increments the one counter the HTTP class maps to. Validation
// failures never come through here; the adapter owns that counter.
func (ts *ThreadStats) CountClass(class int) {
	switch class {
	case obs.ClassOK, obs.ClassNoContent, obs.ClassPartial:
		ts.Success.Add(1)
	case obs.ClassForbidden:
		ts.Fail403.Add(1)
	case obs.ClassNotFound:
		ts.Fail404.Add(1)
	case obs.ClassConflict:
		ts.Fail409.Add(1)
	case obs.ClassBadReq:
		ts.Fail4xxOther.Add(1)
	case obs.ClassServerErr:
		ts.Fail5xx.Add(1)
	default:
		ts.FailOther.Add(1)
	}
}

// ObserveLatency folds one operation's latency into the totals. Only the
// owning worker calls this, so the min/max updates need no CAS loop.
func (ts *ThreadStats) ObserveLatency(us int64) {
	ts.TotalLatencyUs.Add(us)
	if us < ts.MinLatencyUs.Load() {
		ts.MinLatencyUs.Store(us)
	}
	if us > ts.MaxLatencyUs.Load() {
		ts.MaxLatencyUs.Store(us)
	}
}

// Completed returns the number of terminal outcomes so far. The worker uses
// it against the per-thread quota; it reads only its own counters, so the
// value is exact.
func (ts *ThreadStats) Completed() int64 {
	return ts.Success.Load() +
		ts.Fail403.Load() +
		ts.Fail404.Load() +
		ts.Fail409.Load() +
		ts.Fail4xxOther.Load() +
		ts.Fail5xx.Load() +
		ts.FailOther.Load() +
		ts.FailValidation.Load()
}

// Snapshot is one point-in-time copy of a worker's counters.
type Snapshot struct {
	Success        int64
	Fail403        int64
	Fail404        int64
	Fail409        int64
	Fail4xxOther   int64
	Fail5xx        int64
	FailOther      int64
	FailValidation int64

	SuccessBytes   int64
	TotalLatencyUs int64
	MinLatencyUs   int64
	MaxLatencyUs   int64
}

// Snapshot reads the counters without synchronization.
func (ts *ThreadStats) Snapshot() Snapshot {
	return Snapshot{
		Success:        ts.Success.Load(),
		Fail403:        ts.Fail403.Load(),
		Fail404:        ts.Fail404.Load(),
		Fail409:        ts.Fail409.Load(),
		Fail4xxOther:   ts.Fail4xxOther.Load(),
		Fail5xx:        ts.Fail5xx.Load(),
		FailOther:      ts.FailOther.Load(),
		FailValidation: ts.FailValidation.Load(),
		SuccessBytes:   ts.SuccessBytes.Load(),
		TotalLatencyUs: ts.TotalLatencyUs.Load(),
		MinLatencyUs:   ts.MinLatencyUs.Load(),
		MaxLatencyUs:   ts.MaxLatencyUs.Load(),
	}
}

// Total returns the sum of all terminal outcomes in the snapshot.
func (s Snapshot) Total() int64 {
	return s.Success + s.Fail403 + s.Fail404 + s.Fail409 +
		s.Fail4xxOther + s.Fail5xx + s.FailOther + s.FailValidation
}

// Merge folds another snapshot into this one. Min/max latencies combine with
// the usual sentinel handling.
func (s *Snapshot) Merge(o Snapshot) {
	s.Success += o.Success
	s.Fail403 += o.Fail403
	s.Fail404 += o.Fail404
	s.Fail409 += o.Fail409
	s.Fail4xxOther += o.Fail4xxOther
	s.Fail5xx += o.Fail5xx
	s.FailOther += o.FailOther
	s.FailValidation += o.FailValidation
	s.SuccessBytes += o.SuccessBytes
	s.TotalLatencyUs += o.TotalLatencyUs
	if o.MinLatencyUs < s.MinLatencyUs {
		s.MinLatencyUs = o.MinLatencyUs
	}
	if o.MaxLatencyUs > s.MaxLatencyUs {
		s.MaxLatencyUs = o.MaxLatencyUs
	}
}

// Aggregate sums a set of workers' counters into one snapshot.
func Aggregate(workers []*Worker) Snapshot {
	total := Snapshot{MinLatencyUs: math.MaxInt64}
	for _, w := range workers {
		if w == nil {
			continue
		}
		total.Merge(w.Stats.Snapshot())
	}
	return total
}
