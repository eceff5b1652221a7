// Package report renders the end-of-run summary written to brief.txt.
package report

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/cuemby/osbench/pkg/bench"
	"github.com/cuemby/osbench/pkg/types"
)

// WriteBrief writes the human-readable run summary: a configuration echo
// followed by the aggregate outcome counts and throughput figures.
func WriteBrief(path string, cfg *types.Config, agg bench.Snapshot, elapsed time.Duration) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create brief report: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(Render(cfg, agg, elapsed)); err != nil {
		return fmt.Errorf("failed to write brief report: %w", err)
	}
	return nil
}

// Render builds the report text.
func Render(cfg *types.Config, agg bench.Snapshot, elapsed time.Duration) string {
	var b strings.Builder

	sizeDesc := fmt.Sprintf("%d bytes", cfg.ObjectSize())
	if cfg.DynamicSize {
		sizeDesc = fmt.Sprintf("%d~%d bytes", cfg.ObjectSizeMin, cfg.ObjectSizeMax)
	}
	caseDesc := fmt.Sprintf("%s (%d)", types.CaseName(cfg.TestCase), cfg.TestCase)
	if cfg.UseMixMode {
		ops := make([]string, len(cfg.MixOps))
		for i, op := range cfg.MixOps {
			ops[i] = types.CaseName(op)
		}
		caseDesc = fmt.Sprintf("MIX [%s] x %d loops", strings.Join(ops, ","), cfg.MixLoopCount)
	}

	fmt.Fprintln(&b, "=============== Object Storage Benchmark Report ===============")
	fmt.Fprintf(&b, "Generated        : %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Endpoint         : %s (%s, keep-alive=%v)\n", cfg.Endpoint, cfg.Protocol, cfg.KeepAlive)
	fmt.Fprintf(&b, "Test Case        : %s\n", caseDesc)
	fmt.Fprintf(&b, "Concurrency      : %d users x %d threads = %d workers\n", len(cfg.UserList), cfg.ThreadsPerUser, cfg.Threads)
	fmt.Fprintf(&b, "Requests/Thread  : %d\n", cfg.RequestsPerThread)
	fmt.Fprintf(&b, "Object Size      : %s\n", sizeDesc)
	fmt.Fprintf(&b, "Part Size        : %d bytes\n", cfg.PartSize)
	if cfg.RunSeconds > 0 {
		fmt.Fprintf(&b, "Run Limit        : %d s\n", cfg.RunSeconds)
	}
	fmt.Fprintf(&b, "Data Validation  : %v\n", cfg.EnableDataValidation)

	total := agg.Total()
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		seconds = math.SmallestNonzeroFloat64
	}
	successRate := 0.0
	avgUs := int64(0)
	if total > 0 {
		successRate = float64(agg.Success) / float64(total) * 100
		avgUs = agg.TotalLatencyUs / total
	}
	minUs := agg.MinLatencyUs
	if minUs == math.MaxInt64 {
		minUs = 0
	}

	fmt.Fprintln(&b, "--------------------------- Results ---------------------------")
	fmt.Fprintf(&b, "Elapsed          : %.2f s\n", seconds)
	fmt.Fprintf(&b, "Total Requests   : %d\n", total)
	fmt.Fprintf(&b, "  Success        : %d\n", agg.Success)
	fmt.Fprintf(&b, "  Fail 403       : %d\n", agg.Fail403)
	fmt.Fprintf(&b, "  Fail 404       : %d\n", agg.Fail404)
	fmt.Fprintf(&b, "  Fail 409       : %d\n", agg.Fail409)
	fmt.Fprintf(&b, "  Fail 4xx other : %d\n", agg.Fail4xxOther)
	fmt.Fprintf(&b, "  Fail 5xx       : %d\n", agg.Fail5xx)
	fmt.Fprintf(&b, "  Fail transport : %d\n", agg.FailOther)
	fmt.Fprintf(&b, "  Fail validation: %d\n", agg.FailValidation)
	fmt.Fprintf(&b, "Success Rate     : %.2f %%\n", successRate)
	fmt.Fprintf(&b, "Cumulative TPS   : %.2f\n", float64(total)/seconds)
	fmt.Fprintf(&b, "Bandwidth        : %.2f MB/s\n", float64(agg.SuccessBytes)/(1024*1024)/seconds)
	fmt.Fprintf(&b, "Latency (ms)     : min %.2f / avg %.2f / max %.2f\n",
		float64(minUs)/1000, float64(avgUs)/1000, float64(agg.MaxLatencyUs)/1000)
	fmt.Fprintln(&b, "===============================================================")

	return b.String()
}
