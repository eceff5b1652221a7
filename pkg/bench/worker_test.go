package bench

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/osbench/pkg/config"
	"github.com/cuemby/osbench/pkg/log"
	"github.com/cuemby/osbench/pkg/obs/memobs"
	"github.com/cuemby/osbench/pkg/pattern"
	"github.com/cuemby/osbench/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.OffLevel})
	os.Exit(m.Run())
}

func testConfig() *types.Config {
	return &types.Config{
		Endpoint:             "memory",
		Protocol:             "http",
		Users:                1,
		ThreadsPerUser:       1,
		RequestsPerThread:    1,
		PartSize:             5 * 1024 * 1024,
		ObjectSizeMin:        65536,
		ObjectSizeMax:        65536,
		EnableDataValidation: true,
	}
}

func testCred() *types.UserCredential {
	return &types.UserCredential{Username: "alice", AK: "ak", SK: "sk", OriginalAK: "ak"}
}

func never() bool { return false }

func newTestWorker(t *testing.T, cfg *types.Config, client *memobs.Client, id int) *Worker {
	t.Helper()
	w, err := NewWorker(WorkerParams{
		ID:         id,
		Config:     cfg,
		Client:     client,
		Credential: testCred(),
		Bucket:     "bench-bucket",
		Stopping:   never,
	})
	require.NoError(t, err)
	return w
}

func TestWorkerFixedSizeRoundTrip(t *testing.T) {
	client := memobs.New()

	cfg := testConfig()
	cfg.TestCase = types.CasePut
	cfg.RequestsPerThread = 10

	putter := newTestWorker(t, cfg, client, 0)
	putter.Run(context.Background())

	assert.Equal(t, int64(10), putter.Stats.Success.Load())
	assert.Equal(t, int64(0), putter.Stats.FailValidation.Load())
	assert.Equal(t, int64(10*65536), putter.Stats.SuccessBytes.Load())
	assert.Equal(t, int64(10), putter.Stats.Completed())

	getCfg := testConfig()
	getCfg.TestCase = types.CaseGet
	getCfg.RequestsPerThread = 10

	getter := newTestWorker(t, getCfg, client, 0)
	getter.Run(context.Background())

	assert.Equal(t, int64(10), getter.Stats.Success.Load())
	assert.Equal(t, int64(0), getter.Stats.FailValidation.Load())
	assert.Equal(t, int64(10*65536), getter.Stats.SuccessBytes.Load())
}

func TestWorkerCorruptionDetection(t *testing.T) {
	client := memobs.New()

	cfg := testConfig()
	cfg.TestCase = types.CasePut
	putter := newTestWorker(t, cfg, client, 0)
	putter.Run(context.Background())
	require.Equal(t, int64(1), putter.Stats.Success.Load())

	key := ObjectKey("alice", "", 0, 0, false)
	require.NoError(t, client.FlipByte("bench-bucket", key, 12345))

	getCfg := testConfig()
	getCfg.TestCase = types.CaseGet
	getter := newTestWorker(t, getCfg, client, 0)
	getter.Run(context.Background())

	assert.Equal(t, int64(1), getter.Stats.FailValidation.Load())
	assert.Equal(t, int64(0), getter.Stats.Success.Load())
	assert.Equal(t, int64(0), getter.Stats.FailOther.Load())
	assert.Equal(t, int64(0), getter.Stats.SuccessBytes.Load())
	assert.Equal(t, int64(1), getter.Stats.Completed())
}

func TestWorkerShortReadCountsValidation(t *testing.T) {
	client := memobs.New()
	client.ServeVirtual = true

	// A whole-object GET of the 100 MiB virtual object would take a while;
	// range-limit it and drop the anchor so only the length check applies.
	cfg := testConfig()
	cfg.TestCase = types.CaseGet
	cfg.Ranges = []types.RangeSpec{{Raw: "0-65535", Start: 0, Count: 65536, Anchor: 0}}

	getter := newTestWorker(t, cfg, client, 0)
	getter.Run(context.Background())

	// Virtual serving returns pattern bytes, so this succeeds end to end.
	assert.Equal(t, int64(1), getter.Stats.Success.Load())
	assert.Equal(t, int64(0), getter.Stats.FailValidation.Load())
}

func TestWorkerRangedReadAnchoring(t *testing.T) {
	client := memobs.New()

	cfg := testConfig()
	cfg.TestCase = types.CasePut
	cfg.ObjectSizeMin = 1 << 20
	cfg.ObjectSizeMax = 1 << 20
	putter := newTestWorker(t, cfg, client, 0)
	putter.Run(context.Background())
	require.Equal(t, int64(1), putter.Stats.Success.Load())

	// One GET per range against the single uploaded object; each chunk is
	// verified against the pattern at its own anchor.
	for _, tok := range []string{"0-1023", "1024-2047", "-1023"} {
		spec, err := config.ParseRange(tok, false)
		require.NoError(t, err)

		getCfg := testConfig()
		getCfg.TestCase = types.CaseGet
		getCfg.Ranges = []types.RangeSpec{spec}

		getter := newTestWorker(t, getCfg, client, 0)
		getter.Run(context.Background())

		assert.Equal(t, int64(1), getter.Stats.Success.Load(), tok)
		assert.Equal(t, int64(0), getter.Stats.FailValidation.Load(), tok)
		assert.Equal(t, spec.Count, getter.Stats.SuccessBytes.Load(), tok)
	}
}

func TestWorkerMixedSchedule(t *testing.T) {
	client := memobs.New()

	var workers []*Worker
	for i := 0; i < 4; i++ {
		cfg := testConfig()
		cfg.TestCase = types.CaseMix
		cfg.MixOps = []int{types.CasePut, types.CaseGet, types.CaseDelete}
		cfg.MixLoopCount = 2
		cfg.RequestsPerThread = 3
		cfg.UseMixMode = true
		cfg.ObjectSizeMin = 4096
		cfg.ObjectSizeMax = 4096
		workers = append(workers, newTestWorker(t, cfg, client, i))
	}

	done := make(chan struct{})
	for _, w := range workers {
		go func(w *Worker) {
			w.Run(context.Background())
			done <- struct{}{}
		}(w)
	}
	for range workers {
		<-done
	}

	total := Aggregate(workers)
	assert.Equal(t, int64(72), total.Total())
	assert.Equal(t, int64(72), total.Success, "every GET and DELETE follows a PUT of the same key")
	assert.Equal(t, int64(0), total.FailValidation)
}

func TestWorkerMultipartRoundTrip(t *testing.T) {
	client := memobs.New()

	cfg := testConfig()
	cfg.TestCase = types.CaseMultipart
	cfg.PartSize = 1024
	cfg.ObjectSizeMin = 2560
	cfg.ObjectSizeMax = 2560

	up := newTestWorker(t, cfg, client, 0)
	up.Run(context.Background())

	require.Equal(t, int64(1), up.Stats.Success.Load())
	assert.Equal(t, int64(2560), up.Stats.SuccessBytes.Load())

	key := ObjectKey("alice", "", 0, 0, false)
	assert.Equal(t, int64(2560), client.ObjectSize("bench-bucket", key))

	// Pattern continuity across parts: a validated GET succeeds.
	getCfg := testConfig()
	getCfg.TestCase = types.CaseGet
	getter := newTestWorker(t, getCfg, client, 0)
	getter.Run(context.Background())
	assert.Equal(t, int64(1), getter.Stats.Success.Load())
	assert.Equal(t, int64(0), getter.Stats.FailValidation.Load())
}

func TestWorkerResumableUpload(t *testing.T) {
	client := memobs.New()

	src := filepath.Join(t.TempDir(), "upload.bin")
	require.NoError(t, pattern.Default().Materialize(src, 4096))

	cfg := testConfig()
	cfg.TestCase = types.CaseResumable
	cfg.UploadFilePath = src

	up := newTestWorker(t, cfg, client, 0)
	up.Run(context.Background())
	require.Equal(t, int64(1), up.Stats.Success.Load())

	getCfg := testConfig()
	getCfg.TestCase = types.CaseGet
	getter := newTestWorker(t, getCfg, client, 0)
	getter.Run(context.Background())
	assert.Equal(t, int64(1), getter.Stats.Success.Load())
	assert.Equal(t, int64(0), getter.Stats.FailValidation.Load())
}

func TestWorkerMissingKeyCounts404(t *testing.T) {
	client := memobs.New()

	cfg := testConfig()
	cfg.TestCase = types.CaseGet
	getter := newTestWorker(t, cfg, client, 0)
	getter.Run(context.Background())

	assert.Equal(t, int64(1), getter.Stats.Fail404.Load())
	assert.Equal(t, int64(0), getter.Stats.Success.Load())
	assert.Equal(t, int64(1), getter.Stats.Completed())
}

func TestWorkerStopsOnShutdownFlag(t *testing.T) {
	client := memobs.New()

	cfg := testConfig()
	cfg.TestCase = types.CasePut
	cfg.RequestsPerThread = 1 << 40

	var stopped atomic.Bool
	w, err := NewWorker(WorkerParams{
		ID:         0,
		Config:     cfg,
		Client:     client,
		Credential: testCred(),
		Bucket:     "bench-bucket",
		Stopping:   stopped.Load,
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	stopped.Store(true)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after shutdown flag")
	}
	assert.Greater(t, w.Stats.Completed(), int64(0))
}

func TestWorkerHonorsRunDeadline(t *testing.T) {
	client := memobs.New()
	client.ServeVirtual = true

	cfg := testConfig()
	cfg.TestCase = types.CaseGet
	cfg.RequestsPerThread = 1 << 40
	cfg.RunSeconds = 1
	cfg.EnableDataValidation = false
	cfg.Ranges = []types.RangeSpec{{Start: 0, Count: 4096, Anchor: 0}}

	w := newTestWorker(t, cfg, client, 0)

	began := time.Now()
	w.Run(context.Background())
	elapsed := time.Since(began)

	assert.Greater(t, w.Stats.Completed(), int64(0))
	assert.Less(t, elapsed, 3*time.Second)
}

func TestWorkerWritesDetailTrace(t *testing.T) {
	client := memobs.New()
	dir := t.TempDir()

	cfg := testConfig()
	cfg.TestCase = types.CasePut
	cfg.RequestsPerThread = 2
	cfg.EnableDetailLog = true

	w, err := NewWorker(WorkerParams{
		ID:         5,
		Config:     cfg,
		Client:     client,
		Credential: testCred(),
		Bucket:     "bench-bucket",
		Stopping:   never,
		TraceDir:   dir,
	})
	require.NoError(t, err)
	w.Run(context.Background())

	data, err := os.ReadFile(filepath.Join(dir, "detail_5_part0.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "PUT")
	assert.Contains(t, lines[1], "alice--5-0")
	assert.Contains(t, lines[1], ",200,")
}

func TestWorkerKeySequenceIsDeterministic(t *testing.T) {
	var first, second []string
	for k := int64(0); k < 5; k++ {
		first = append(first, ObjectKey("bob", "load", 3, k, true))
		second = append(second, ObjectKey("bob", "load", 3, k, true))
	}
	assert.Equal(t, first, second)
}
