package bench

import "fmt"

// glibc rand() constants, reused as a cheap deterministic disperser.
const (
	hashMulA = 1103515245
	hashAddC = 12345
)

// hashBucket maps a seed to a 4-digit bucket with a glibc-style LCG step.
func hashBucket(seed int64) int {
	return int(((seed*hashMulA + hashAddC) & 0x7FFFFFFF) % 10000)
}

// ObjectKey synthesizes the key for one (worker, sequence) pair. The plain
// form is {username}-{prefix}-{workerID}-{sequence}; with hashing enabled a
// 4-digit bucket derived from the same inputs is prepended to disperse the
// keyspace across a flat namespace. Keys are a pure function of their inputs
// so any worker can re-derive another worker's keys.
func ObjectKey(username, prefix string, workerID int, seq int64, hashed bool) string {
	base := fmt.Sprintf("%s-%s-%d-%d", username, prefix, workerID, seq)
	if !hashed {
		return base
	}
	return fmt.Sprintf("%04d-%s", hashBucket(int64(workerID)*1000003+seq), base)
}
