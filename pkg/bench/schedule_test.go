package bench

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/osbench/pkg/types"
)

func TestScheduleOpOrder(t *testing.T) {
	s := NewSchedule([]int{types.CasePut, types.CaseGet, types.CaseDelete}, 3)

	var ops []int
	for k := int64(0); k < 18; k++ {
		ops = append(ops, s.OpAt(k))
	}
	assert.Equal(t, []int{
		201, 201, 201, 202, 202, 202, 204, 204, 204,
		201, 201, 201, 202, 202, 202, 204, 204, 204,
	}, ops)
}

func TestScheduleSequenceSharedAcrossOps(t *testing.T) {
	s := NewSchedule([]int{types.CasePut, types.CaseGet, types.CaseDelete}, 3)

	// Within one loop, the i-th PUT, GET and DELETE all target sequence i.
	for loop := int64(0); loop < 2; loop++ {
		base := loop * 9
		for i := int64(0); i < 3; i++ {
			put := s.SequenceAt(base + i)
			get := s.SequenceAt(base + 3 + i)
			del := s.SequenceAt(base + 6 + i)
			assert.Equal(t, put, get)
			assert.Equal(t, put, del)
			assert.Equal(t, loop*3+i, put)
		}
	}
}

func TestScheduleTotal(t *testing.T) {
	s := NewSchedule([]int{201, 202, 204}, 3)
	assert.Equal(t, int64(18), s.Total(2))
	assert.Equal(t, int64(0), s.Total(0), "unbounded loop count")
}

func TestObjectKeyDeterministic(t *testing.T) {
	a := ObjectKey("alice", "bench", 7, 42, false)
	b := ObjectKey("alice", "bench", 7, 42, false)
	assert.Equal(t, a, b)
	assert.Equal(t, "alice-bench-7-42", a)
}

func TestObjectKeyHashedPrefix(t *testing.T) {
	key := ObjectKey("alice", "bench", 7, 42, true)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-alice-bench-7-42$`), key)

	// The hashed form stays deterministic too.
	assert.Equal(t, key, ObjectKey("alice", "bench", 7, 42, true))
}

func TestHashBucketRange(t *testing.T) {
	for seed := int64(0); seed < 10000; seed++ {
		b := hashBucket(seed)
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 10000)
	}
}
