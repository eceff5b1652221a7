package bench

// Schedule maps the mixed-mode nested loop (loop, op, within-op) onto a
// single linear index k. All selections are pure functions of k, which makes
// the schedule testable and lets a worker resume at any point.
type Schedule struct {
	ops               []int
	requestsPerThread int64
}

// NewSchedule builds a mixed-mode schedule. requestsPerThread is the number
// of consecutive operations of one type before the schedule advances to the
// next type.
func NewSchedule(ops []int, requestsPerThread int64) *Schedule {
	if requestsPerThread <= 0 {
		requestsPerThread = 1
	}
	return &Schedule{ops: ops, requestsPerThread: requestsPerThread}
}

// OpAt returns the operation code at linear index k.
func (s *Schedule) OpAt(k int64) int {
	return s.ops[(k/s.requestsPerThread)%int64(len(s.ops))]
}

// SequenceAt returns the per-object sequence at linear index k. Distinct
// operations within the same loop share sequences, so a GET at the same
// position as an earlier PUT targets the same key.
func (s *Schedule) SequenceAt(k int64) int64 {
	loop := k / (s.requestsPerThread * int64(len(s.ops)))
	within := k % s.requestsPerThread
	return loop*s.requestsPerThread + within
}

// Total returns the number of operations in loopCount full loops, or 0 when
// the loop count is unbounded.
func (s *Schedule) Total(loopCount int64) int64 {
	if loopCount <= 0 {
		return 0
	}
	return loopCount * int64(len(s.ops)) * s.requestsPerThread
}

// OpCount returns the number of distinct operations in the mix.
func (s *Schedule) OpCount() int {
	return len(s.ops)
}
