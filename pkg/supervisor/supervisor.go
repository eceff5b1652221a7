// Package supervisor wires a run together: it builds the storage client,
// constructs one worker per (user, slot), starts the monitor beside them,
// handles the two-stage interrupt protocol, and writes the final report.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/osbench/pkg/bench"
	"github.com/cuemby/osbench/pkg/checkpoint"
	"github.com/cuemby/osbench/pkg/log"
	"github.com/cuemby/osbench/pkg/metrics"
	"github.com/cuemby/osbench/pkg/monitor"
	"github.com/cuemby/osbench/pkg/obs"
	"github.com/cuemby/osbench/pkg/obs/memobs"
	"github.com/cuemby/osbench/pkg/obs/s3obs"
	"github.com/cuemby/osbench/pkg/pattern"
	"github.com/cuemby/osbench/pkg/report"
	"github.com/cuemby/osbench/pkg/types"
)

// defaultUploadFileSize is used when a resumable run needs a source file and
// the configuration gives no usable object size.
const defaultUploadFileSize = 10 * 1024 * 1024

// Supervisor owns one benchmark run end to end.
type Supervisor struct {
	cfg     *types.Config
	client  obs.Client
	store   *checkpoint.Store
	taskDir string

	shutdown atomic.Bool
	workers  []*bench.Worker
	log      zerolog.Logger
}

// New prepares a run: creates the task log directory under logs/ and builds
// the storage client the endpoint selects. The mock endpoint ("mock" or a
// mock:// URL) runs against the in-memory client with virtual reads enabled,
// so the tool can be exercised without a service.
func New(cfg *types.Config) (*Supervisor, error) {
	taskDir := filepath.Join("logs", time.Now().Format("task_20060102_150405"))
	if err := os.MkdirAll(taskDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create task log directory: %w", err)
	}

	s := NewWithClient(cfg, nil, taskDir)
	if err := s.buildClient(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithClient prepares a run against a caller-supplied client and task
// directory. Tests use it to run against the in-memory store.
func NewWithClient(cfg *types.Config, client obs.Client, taskDir string) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		client:  client,
		taskDir: taskDir,
		log:     log.WithComponent("supervisor"),
	}
}

func (s *Supervisor) buildClient() error {
	if s.cfg.Endpoint == "mock" || strings.HasPrefix(s.cfg.Endpoint, "mock://") {
		mc := memobs.New()
		mc.ServeVirtual = true
		s.client = mc
		return nil
	}

	sc := s3obs.New()
	if s.cfg.EnableCheckpoint && s.cfg.NeedsUploadFile() {
		st, err := checkpoint.Open(filepath.Join(s.taskDir, "checkpoint.db"))
		if err != nil {
			return fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		s.store = st
		sc.Checkpoints = st
	}
	s.client = sc
	return nil
}

// TaskDir returns the run's log directory.
func (s *Supervisor) TaskDir() string { return s.taskDir }

// Shutdown flips the process-wide stop flag, as the first interrupt does.
func (s *Supervisor) Shutdown() { s.shutdown.Store(true) }

// Run executes the whole benchmark: start workers, start the monitor, join
// workers, stop the monitor, aggregate, and write brief.txt. It returns only
// setup errors; operation failures are counted, not propagated.
func (s *Supervisor) Run(ctx context.Context) error {
	if init, ok := s.client.(obs.Initializer); ok {
		if err := init.Initialize(); err != nil {
			return fmt.Errorf("client initialization failed: %w", err)
		}
		defer init.Deinitialize()
	}
	if s.store != nil {
		defer s.store.Close()
	}

	if s.cfg.NeedsUploadFile() {
		if err := s.materializeUploadFile(); err != nil {
			return err
		}
	}
	if s.cfg.MetricsListen != "" {
		metrics.Serve(s.cfg.MetricsListen)
	}

	release := s.installSignals()
	defer release()

	workers, err := s.buildWorkers()
	if err != nil {
		return err
	}
	s.workers = workers

	s.log.Info().
		Int("workers", len(workers)).
		Str("case", types.CaseName(s.cfg.TestCase)).
		Str("task_dir", s.taskDir).
		Msg("starting run")

	began := time.Now()
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *bench.Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}

	mon := monitor.New(s.cfg, workers, s.taskDir, s.shutdown.Load)
	mon.Start()

	wg.Wait()
	mon.Stop()
	elapsed := time.Since(began)

	agg := bench.Aggregate(workers)
	briefPath := filepath.Join(s.taskDir, "brief.txt")
	if err := report.WriteBrief(briefPath, s.cfg, agg, elapsed); err != nil {
		s.log.Warn().Err(err).Msg("failed to write brief report")
	}

	s.log.Info().
		Int64("total", agg.Total()).
		Int64("success", agg.Success).
		Int64("validation_failures", agg.FailValidation).
		Float64("elapsed_s", elapsed.Seconds()).
		Msg("run complete")
	return nil
}

// buildWorkers constructs one worker per (user, slot) with the bucket the
// policy resolves for that user.
func (s *Supervisor) buildWorkers() ([]*bench.Worker, error) {
	workers := make([]*bench.Worker, 0, s.cfg.Threads)
	for ui := range s.cfg.UserList {
		cred := &s.cfg.UserList[ui]
		bucket := s.cfg.BucketFor(cred)
		for slot := 0; slot < s.cfg.ThreadsPerUser; slot++ {
			id := ui*s.cfg.ThreadsPerUser + slot
			w, err := bench.NewWorker(bench.WorkerParams{
				ID:         id,
				Config:     s.cfg,
				Client:     s.client,
				Credential: cred,
				Bucket:     bucket,
				Stopping:   s.shutdown.Load,
				TraceDir:   s.taskDir,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to build worker %d: %w", id, err)
			}
			workers = append(workers, w)
		}
	}
	return workers, nil
}

// materializeUploadFile ensures the resumable source file exists with
// deterministic pattern content, so downloads of the uploaded object can be
// verified like any other.
func (s *Supervisor) materializeUploadFile() error {
	size := s.cfg.ObjectSize()
	if size <= 0 {
		size = defaultUploadFileSize
	}
	if err := pattern.Default().Materialize(s.cfg.UploadFilePath, size); err != nil {
		return fmt.Errorf("failed to materialize upload file: %w", err)
	}
	return nil
}

// installSignals arms the two-stage interrupt protocol: the first interrupt
// requests a graceful stop, the second terminates the process immediately.
func (s *Supervisor) installSignals() func() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range ch {
			if s.shutdown.CompareAndSwap(false, true) {
				s.log.Warn().Msg("graceful shutdown requested, interrupt again to force quit")
				continue
			}
			fmt.Fprintln(os.Stderr, "forced shutdown")
			os.Exit(130)
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}
