// Package trace writes per-request detail records to rotating CSV files.
//
// Each worker owns one Writer, so appends never contend on a lock. Records
// are buffered and written out in batches; a file rotates to the next part
// once it reaches maxRowsPerFile rows so a long run never produces a single
// unmanageable CSV.
package trace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/osbench/pkg/log"
)

const (
	batchSize      = 1000
	maxRowsPerFile = 1000000

	header = "Timestamp(s),OpType,Key,Latency(ms),SDKStatus,HTTPCode,Bytes,RequestID\n"
)

// Record is one completed request.
type Record struct {
	Timestamp float64 // fractional unix seconds
	OpType    string
	Key       string
	LatencyMs float64
	SDKStatus string
	HTTPCode  int
	Bytes     int64
	RequestID string
}

func (r *Record) appendCSV(b []byte) []byte {
	b = append(b, fmt.Sprintf("%.3f,%s,%s,%.2f,%s,%d,%d,%s\n",
		r.Timestamp, r.OpType, csvField(r.Key), r.LatencyMs,
		r.SDKStatus, r.HTTPCode, r.Bytes, csvField(r.RequestID))...)
	return b
}

func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// Writer buffers records for one worker and flushes them in batches. A
// Writer that fails to open its file disables itself and drops records
// rather than failing the run.
type Writer struct {
	dir      string
	workerID int

	file     *os.File
	part     int
	rows     int
	pending  []Record
	disabled bool
}

// NewWriter creates a detail writer for one worker. The first part file is
// opened lazily on the first flush.
func NewWriter(dir string, workerID int) *Writer {
	return &Writer{dir: dir, workerID: workerID, pending: make([]Record, 0, batchSize)}
}

// Add queues one record, flushing when the batch fills.
func (w *Writer) Add(rec Record) {
	if w.disabled {
		return
	}
	w.pending = append(w.pending, rec)
	if len(w.pending) >= batchSize {
		w.Flush()
	}
}

// Flush writes all queued records out.
func (w *Writer) Flush() {
	if w.disabled || len(w.pending) == 0 {
		return
	}
	buf := make([]byte, 0, len(w.pending)*96)
	for i := range w.pending {
		if w.rows >= maxRowsPerFile {
			w.write(buf)
			buf = buf[:0]
			w.rotate()
			if w.disabled {
				return
			}
		}
		if w.file == nil {
			if !w.open() {
				return
			}
		}
		buf = w.pending[i].appendCSV(buf)
		w.rows++
	}
	w.write(buf)
	w.pending = w.pending[:0]
}

// Close flushes and closes the current part file.
func (w *Writer) Close() {
	w.Flush()
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
}

func (w *Writer) open() bool {
	path := filepath.Join(w.dir, fmt.Sprintf("detail_%d_part%d.csv", w.workerID, w.part))
	logger := log.WithComponent("trace")
	f, err := os.Create(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).
			Msg("disabling detail log, failed to create file")
		w.disabled = true
		w.pending = nil
		return false
	}
	if _, err := f.WriteString(header); err != nil {
		logger.Warn().Err(err).Str("path", path).
			Msg("disabling detail log, failed to write header")
		_ = f.Close()
		w.disabled = true
		w.pending = nil
		return false
	}
	w.file = f
	w.rows = 0
	return true
}

func (w *Writer) rotate() {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	w.part++
}

func (w *Writer) write(buf []byte) {
	if len(buf) == 0 || w.file == nil {
		return
	}
	if _, err := w.file.Write(buf); err != nil {
		logger := log.WithComponent("trace")
		logger.Warn().Err(err).Int("worker", w.workerID).
			Msg("disabling detail log, write failed")
		_ = w.file.Close()
		w.file = nil
		w.disabled = true
		w.pending = nil
	}
}
