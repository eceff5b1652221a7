package monitor

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/osbench/pkg/bench"
	"github.com/cuemby/osbench/pkg/log"
	"github.com/cuemby/osbench/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.OffLevel})
	os.Exit(m.Run())
}

func never() bool { return false }

func statWorker(success, f404, bytes int64) *bench.Worker {
	w := &bench.Worker{Stats: bench.NewThreadStats()}
	w.Stats.Success.Store(success)
	w.Stats.Fail404.Store(f404)
	w.Stats.SuccessBytes.Store(bytes)
	return w
}

func TestExpectedTotal(t *testing.T) {
	single := &types.Config{Threads: 4, RequestsPerThread: 100}
	assert.Equal(t, int64(400), ExpectedTotal(single))

	mixed := &types.Config{
		Threads:           4,
		RequestsPerThread: 3,
		UseMixMode:        true,
		MixOps:            []int{201, 202, 204},
		MixLoopCount:      2,
	}
	assert.Equal(t, int64(72), ExpectedTotal(mixed))

	unbounded := &types.Config{
		Threads:           4,
		RequestsPerThread: 3,
		UseMixMode:        true,
		MixOps:            []int{201, 202},
	}
	assert.Equal(t, int64(0), ExpectedTotal(unbounded))
}

func TestSampleAggregatesWorkers(t *testing.T) {
	cfg := &types.Config{Threads: 2, RequestsPerThread: 100}
	workers := []*bench.Worker{
		statWorker(30, 10, 30*1024*1024),
		statWorker(50, 10, 50*1024*1024),
	}

	m := New(cfg, workers, "", never)
	m.start = time.Now().Add(-10 * time.Second)

	s := m.Sample()
	assert.Equal(t, int64(100), s.TotalReqs)
	assert.InDelta(t, 80.0, s.SuccessRate, 0.01)
	assert.InDelta(t, 10.0, s.TPS, 0.5)
	assert.InDelta(t, 8.0, s.BandwidthMBps, 0.5)
	assert.InDelta(t, 50.0, s.Progress, 0.5, "100 of 200 expected")
}

func TestSampleIntervalThroughput(t *testing.T) {
	cfg := &types.Config{Threads: 1, RequestsPerThread: 1000}
	w := statWorker(100, 0, 100*1024*1024)
	m := New(cfg, []*bench.Worker{w}, "", never)
	m.start = time.Now().Add(-20 * time.Second)

	// First sample has no previous window, so the interval view equals the
	// cumulative one.
	first := m.Sample()
	assert.InDelta(t, first.TPS, first.IntervalTPS, 0.5)
	assert.InDelta(t, first.BandwidthMBps, first.IntervalBandwidthMBps, 0.5)

	w.Stats.Success.Store(150)
	w.Stats.SuccessBytes.Store(150 * 1024 * 1024)
	m.lastAt = time.Now().Add(-5 * time.Second)

	s := m.Sample()
	assert.InDelta(t, 10.0, s.IntervalTPS, 0.5, "50 requests over the last 5s")
	assert.InDelta(t, 10.0, s.IntervalBandwidthMBps, 0.5)
	assert.InDelta(t, 7.5, s.TPS, 0.5, "cumulative averages over the whole run")
}

func TestSampleTimeBasedProgress(t *testing.T) {
	cfg := &types.Config{Threads: 1, RequestsPerThread: 1, RunSeconds: 20}
	m := New(cfg, nil, "", never)
	m.start = time.Now().Add(-5 * time.Second)

	s := m.Sample()
	assert.InDelta(t, 25.0, s.Progress, 1.0)
}

func TestSampleProgressUnavailable(t *testing.T) {
	cfg := &types.Config{Threads: 1, RequestsPerThread: 5, UseMixMode: true, MixOps: []int{201}}
	m := New(cfg, nil, "", never)
	m.start = time.Now()

	s := m.Sample()
	assert.Less(t, s.Progress, 0.0)
}

func TestMonitorWritesRealtimeRows(t *testing.T) {
	dir := t.TempDir()
	cfg := &types.Config{Threads: 1, RequestsPerThread: 10}
	workers := []*bench.Worker{statWorker(5, 0, 1024)}

	var out bytes.Buffer
	m := New(cfg, workers, dir, never)
	m.out = &out
	m.interval = 50 * time.Millisecond

	m.Start()
	time.Sleep(200 * time.Millisecond)
	m.Stop()

	data, err := os.ReadFile(filepath.Join(dir, "realtime.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.GreaterOrEqual(t, len(lines), 3, "header, periodic rows, final row")
	assert.Equal(t, "RunTime(s),Process(%),Cumul_TPS,Cumul_BW(MB/s),Success_Rate(%),Total_Reqs", lines[0])

	fields := strings.Split(lines[len(lines)-1], ",")
	require.Len(t, fields, 6)
	assert.Equal(t, "5", fields[5])

	assert.Contains(t, out.String(), "[Monitor]")
}

func TestMonitorStopsOnShutdownFlag(t *testing.T) {
	cfg := &types.Config{Threads: 1, RequestsPerThread: 1}
	m := New(cfg, nil, "", func() bool { return true })
	m.Start()

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop while shutdown flag was set")
	}
}
