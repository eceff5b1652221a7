// Package monitor samples every worker's counters at a fixed cadence and
// publishes a realtime progress series. Reads are unsynchronized by design;
// the numbers drive display and the realtime CSV, never control flow.
package monitor

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/osbench/pkg/bench"
	"github.com/cuemby/osbench/pkg/log"
	"github.com/cuemby/osbench/pkg/metrics"
	"github.com/cuemby/osbench/pkg/types"
)

const (
	// DefaultInterval is the sampling cadence.
	DefaultInterval = 3 * time.Second

	// pollStep bounds how long a pending shutdown goes unnoticed.
	pollStep = 100 * time.Millisecond

	realtimeHeader = "RunTime(s),Process(%),Cumul_TPS,Cumul_BW(MB/s),Success_Rate(%),Total_Reqs\n"
)

// Sample is one snapshot of the run. TPS and BandwidthMBps are cumulative
// over the whole run; the Interval pair covers only the window since the
// previous sample.
type Sample struct {
	RunSeconds            float64
	Progress              float64 // negative when no expected total exists
	TPS                   float64
	BandwidthMBps         float64
	IntervalTPS           float64
	IntervalBandwidthMBps float64
	SuccessRate           float64
	TotalReqs             int64
}

// Monitor is the single sampling task that runs beside the workers.
type Monitor struct {
	cfg      *types.Config
	workers  []*bench.Worker
	interval time.Duration
	stopping func() bool

	out   io.Writer
	file  *os.File
	start time.Time

	// previous sample, for the interval view
	lastAt    time.Time
	lastTotal int64
	lastBytes int64

	stop chan struct{}
	done chan struct{}
}

// New builds a monitor over the worker set. The realtime CSV goes to
// {taskDir}/realtime.txt; a failed open disables that stream and the monitor
// keeps printing to out.
func New(cfg *types.Config, workers []*bench.Worker, taskDir string, stopping func() bool) *Monitor {
	m := &Monitor{
		cfg:      cfg,
		workers:  workers,
		interval: DefaultInterval,
		stopping: stopping,
		out:      os.Stdout,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if taskDir != "" {
		path := filepath.Join(taskDir, "realtime.txt")
		logger := log.WithComponent("monitor")
		f, err := os.Create(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("disabling realtime log")
		} else if _, err := f.WriteString(realtimeHeader); err != nil {
			logger.Warn().Err(err).Msg("disabling realtime log")
			_ = f.Close()
		} else {
			m.file = f
		}
	}
	return m
}

// Start launches the sampling loop. Call Stop to end it and flush the final
// row.
func (m *Monitor) Start() {
	m.start = time.Now()
	go m.loop()
}

// Stop ends the loop, emits one final sample, and closes the realtime file.
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
	m.emit(m.Sample())
	if m.file != nil {
		_ = m.file.Close()
		m.file = nil
	}
}

func (m *Monitor) loop() {
	defer close(m.done)
	for {
		// Sleep the interval in short steps so shutdown is noticed fast.
		deadline := time.Now().Add(m.interval)
		for time.Now().Before(deadline) {
			select {
			case <-m.stop:
				return
			case <-time.After(pollStep):
			}
			if m.stopping() {
				return
			}
		}
		m.emit(m.Sample())
	}
}

// Sample reads all workers' counters and computes both the cumulative view
// and the delta since the previous call.
func (m *Monitor) Sample() Sample {
	agg := bench.Aggregate(m.workers)
	now := time.Now()
	elapsed := now.Sub(m.start).Seconds()
	if elapsed <= 0 {
		elapsed = math.SmallestNonzeroFloat64
	}

	total := agg.Total()
	s := Sample{
		RunSeconds: elapsed,
		Progress:   m.progress(total, elapsed),
		TPS:        float64(total) / elapsed,
		TotalReqs:  total,
	}
	s.BandwidthMBps = float64(agg.SuccessBytes) / (1024 * 1024) / elapsed
	if total > 0 {
		s.SuccessRate = float64(agg.Success) / float64(total) * 100
	}

	since := m.lastAt
	if since.IsZero() {
		since = m.start
	}
	window := now.Sub(since).Seconds()
	if window <= 0 {
		window = math.SmallestNonzeroFloat64
	}
	s.IntervalTPS = float64(total-m.lastTotal) / window
	s.IntervalBandwidthMBps = float64(agg.SuccessBytes-m.lastBytes) / (1024 * 1024) / window
	m.lastAt = now
	m.lastTotal = total
	m.lastBytes = agg.SuccessBytes

	metrics.SetClassCounts(agg.Success, agg.Fail403, agg.Fail404, agg.Fail409,
		agg.Fail4xxOther, agg.Fail5xx, agg.FailOther, agg.FailValidation)
	metrics.SuccessBytesTotal.Set(float64(agg.SuccessBytes))
	metrics.CumulativeTPS.Set(s.TPS)
	metrics.CumulativeBandwidthMBps.Set(s.BandwidthMBps)
	metrics.SuccessRate.Set(s.SuccessRate)

	return s
}

// progress is time-based when the run is time-limited, quota-based when an
// expected total is computable, otherwise unavailable.
func (m *Monitor) progress(total int64, elapsed float64) float64 {
	if m.cfg.RunSeconds > 0 {
		p := elapsed / float64(m.cfg.RunSeconds) * 100
		if p > 100 {
			p = 100
		}
		return p
	}
	expected := ExpectedTotal(m.cfg)
	if expected <= 0 {
		return -1
	}
	p := float64(total) / float64(expected) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// ExpectedTotal returns the run's total operation quota, or 0 when the mode
// has no computable bound.
func ExpectedTotal(cfg *types.Config) int64 {
	if cfg.UseMixMode {
		if cfg.MixLoopCount <= 0 {
			return 0
		}
		return int64(cfg.Threads) * int64(len(cfg.MixOps)) * cfg.MixLoopCount * cfg.RequestsPerThread
	}
	return int64(cfg.Threads) * cfg.RequestsPerThread
}

func (m *Monitor) emit(s Sample) {
	progress := "N/A"
	if s.Progress >= 0 {
		progress = fmt.Sprintf("%.1f", s.Progress)
	}

	// Console shows the current interval's throughput; the realtime file
	// keeps the cumulative series.
	fmt.Fprintf(m.out, "[Monitor] runtime=%.1fs progress=%s%% tps=%.2f bw=%.2fMB/s success=%.2f%% total=%d\n",
		s.RunSeconds, progress, s.IntervalTPS, s.IntervalBandwidthMBps, s.SuccessRate, s.TotalReqs)

	if m.file != nil {
		row := fmt.Sprintf("%.1f,%s,%.2f,%.2f,%.2f,%d\n",
			s.RunSeconds, progress, s.TPS, s.BandwidthMBps, s.SuccessRate, s.TotalReqs)
		if _, err := m.file.WriteString(row); err != nil {
			_ = m.file.Close()
			m.file = nil
		}
	}
}
