package bench

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/osbench/pkg/log"
	"github.com/cuemby/osbench/pkg/obs"
	"github.com/cuemby/osbench/pkg/pattern"
	"github.com/cuemby/osbench/pkg/trace"
	"github.com/cuemby/osbench/pkg/types"
)

// errDampDelay spaces out iterations after a failed operation so an
// unreachable endpoint does not spin the loop at full speed.
const errDampDelay = 50 * time.Millisecond

// Worker is one request-generation loop bound to a (user, slot, bucket)
// tuple. Everything it owns is written only from its own goroutine; the
// monitor reads Stats concurrently without locks.
type Worker struct {
	ID     int
	Bucket string
	Stats  *ThreadStats

	cfg      *types.Config
	cred     *types.UserCredential
	adapter  *Adapter
	schedule *Schedule
	stopping func() bool
	trace    *trace.Writer
	rng      *rand.Rand
	log      zerolog.Logger
}

// WorkerParams collects the inputs to NewWorker.
type WorkerParams struct {
	ID         int
	Config     *types.Config
	Client     obs.Client
	Credential *types.UserCredential
	Bucket     string

	// Stopping reports the process-wide shutdown flag. It is consulted at
	// the top of every iteration and at every data-callback entry.
	Stopping func() bool

	// TraceDir is the task log directory for detail CSVs. Empty disables
	// detail tracing regardless of the configuration flag.
	TraceDir string
}

// NewWorker builds one worker. The pattern buffer allocation is the only
// fatal path; a worker without its buffer cannot run.
func NewWorker(p WorkerParams) (*Worker, error) {
	pat, err := pattern.New(pattern.DefaultSize, pattern.DefaultSeed)
	if err != nil {
		return nil, err
	}
	stats := NewThreadStats()
	logger := log.WithWorker(p.ID, p.Credential.Username)

	w := &Worker{
		ID:       p.ID,
		Bucket:   p.Bucket,
		Stats:    stats,
		cfg:      p.Config,
		cred:     p.Credential,
		adapter:  NewAdapter(p.Config, p.Client, pat, stats, p.Stopping, logger),
		stopping: p.Stopping,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(p.ID)<<17)),
		log:      logger,
	}
	if p.Config.UseMixMode {
		w.schedule = NewSchedule(p.Config.MixOps, p.Config.RequestsPerThread)
	}
	if p.Config.EnableDetailLog && p.TraceDir != "" {
		w.trace = trace.NewWriter(p.TraceDir, p.ID)
	}
	return w, nil
}

// Run executes the generation loop until a termination condition holds:
// shutdown flag, context cancellation, run deadline, per-thread quota, or the
// mixed-mode total. It always flushes and closes the trace stream on exit.
func (w *Worker) Run(ctx context.Context) {
	defer func() {
		if w.trace != nil {
			w.trace.Close()
		}
		w.log.Debug().Int64("completed", w.Stats.Completed()).Msg("worker done")
	}()

	var deadline time.Time
	if w.cfg.RunSeconds > 0 {
		deadline = time.Now().Add(time.Duration(w.cfg.RunSeconds) * time.Second)
	}

	quota := w.cfg.RequestsPerThread
	if w.schedule != nil {
		// Mixed mode bounds the run by complete loops over the mix;
		// RequestsPerThread becomes the per-operation stride.
		quota = w.schedule.Total(w.cfg.MixLoopCount)
	}

	for k := int64(0); ; k++ {
		if w.stopping() || ctx.Err() != nil {
			return
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return
		}
		if quota > 0 && w.Stats.Completed() >= quota {
			return
		}

		op := w.cfg.TestCase
		seq := k
		if w.schedule != nil {
			op = w.schedule.OpAt(k)
			seq = w.schedule.SequenceAt(k)
		}

		size := w.pickSize()
		key := ObjectKey(w.cred.Username, w.cfg.KeyPrefix, w.ID, seq, w.cfg.ObjNamePatternHash)

		preValidation := w.Stats.FailValidation.Load()
		wallTS := float64(time.Now().UnixNano()) / 1e9
		began := time.Now()

		res := w.invoke(ctx, op, key, size)

		elapsed := time.Since(began)
		w.Stats.ObserveLatency(elapsed.Microseconds())

		validated := w.Stats.FailValidation.Load() > preValidation
		switch {
		case validated:
			// Already counted by the adapter.
		case res.Status == obs.StatusInternalError:
			// Synthetic kind without a validation delta: the client never
			// produced a real outcome, count as a transport failure.
			w.Stats.FailOther.Add(1)
			res.Class = obs.ClassNone
		default:
			w.Stats.CountClass(res.Class)
			if isSuccessClass(res.Class) && isUploadCase(op) {
				w.Stats.SuccessBytes.Add(size)
			}
		}

		if w.trace != nil {
			w.trace.Add(trace.Record{
				Timestamp: wallTS,
				OpType:    types.CaseName(op),
				Key:       key,
				LatencyMs: float64(elapsed.Microseconds()) / 1000.0,
				SDKStatus: res.Status.String(),
				HTTPCode:  res.Class,
				Bytes:     res.Bytes,
				RequestID: res.RequestID,
			})
		}

		if res.Status != obs.StatusOK {
			w.log.Debug().
				Str("op", types.CaseName(op)).
				Str("key", key).
				Str("status", res.Status.String()).
				Int("class", res.Class).
				Str("request_id", res.RequestID).
				Msg("operation failed")
			time.Sleep(errDampDelay)
		}
	}
}

func isSuccessClass(class int) bool {
	return class == obs.ClassOK || class == obs.ClassNoContent || class == obs.ClassPartial
}

func isUploadCase(op int) bool {
	return op == types.CasePut || op == types.CaseMultipart
}

func (w *Worker) pickSize() int64 {
	if !w.cfg.DynamicSize {
		return w.cfg.ObjectSize()
	}
	span := w.cfg.ObjectSizeMax - w.cfg.ObjectSizeMin + 1
	return w.cfg.ObjectSizeMin + w.rng.Int63n(span)
}

func (w *Worker) invoke(ctx context.Context, op int, key string, size int64) Result {
	opts := w.adapter.Options(w.cred, w.Bucket)
	switch op {
	case types.CasePut:
		return w.adapter.Put(ctx, opts, key, size)
	case types.CaseGet:
		var rng *types.RangeSpec
		if n := len(w.cfg.Ranges); n > 0 {
			rng = &w.cfg.Ranges[w.rng.Intn(n)]
		}
		return w.adapter.Get(ctx, opts, key, rng)
	case types.CaseDelete:
		return w.adapter.Delete(ctx, opts, key)
	case types.CaseList:
		return w.adapter.List(ctx, opts, w.listPrefix())
	case types.CaseMultipart:
		return w.adapter.Multipart(ctx, opts, key, size)
	case types.CaseResumable:
		return w.adapter.Resumable(ctx, opts, key)
	default:
		w.log.Warn().Int("test_case", op).Msg("unknown test case")
		return Result{Status: obs.StatusInvalidParameter, Class: obs.ClassBadReq}
	}
}

func (w *Worker) listPrefix() string {
	return w.cred.Username + "-" + w.cfg.KeyPrefix + "-"
}
