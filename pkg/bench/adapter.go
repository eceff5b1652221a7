package bench

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cuemby/osbench/pkg/obs"
	"github.com/cuemby/osbench/pkg/pattern"
	"github.com/cuemby/osbench/pkg/types"
)

// Result is the adapter's view of one finished operation.
//
// Bytes carries the payload bytes that moved through the data callbacks. For
// downloads the adapter already credits them to the worker's success bytes;
// for uploads the worker credits the planned size itself, so size accounting
// stays coherent when the worker picks dynamic sizes.
type Result struct {
	Status    obs.Status
	Class     int
	Bytes     int64
	RequestID string
	ETag      string
}

// Adapter wraps the storage client for one worker. It builds per-operation
// request options, installs the streaming callbacks, verifies downloaded
// bytes against the shared pattern on the fly, and converts each outcome.
// It never retries.
//
// Validation failures are counted here, not in the worker: a corrupted or
// short transfer increments FailValidation exactly once and surfaces as a
// synthetic StatusInternalError so the worker knows not to classify it again.
type Adapter struct {
	cfg      *types.Config
	client   obs.Client
	pat      *pattern.Buffer
	stats    *ThreadStats
	stopping func() bool
	log      zerolog.Logger
}

// NewAdapter builds the adapter for one worker. stopping is consulted at
// every data-callback entry so an interrupt aborts in-flight transfers.
func NewAdapter(cfg *types.Config, client obs.Client, pat *pattern.Buffer, stats *ThreadStats, stopping func() bool, logger zerolog.Logger) *Adapter {
	return &Adapter{
		cfg:      cfg,
		client:   client,
		pat:      pat,
		stats:    stats,
		stopping: stopping,
		log:      logger,
	}
}

// Options composes the run configuration with one worker's bound credentials.
func (a *Adapter) Options(cred *types.UserCredential, bucket string) *obs.RequestOptions {
	opts := &obs.RequestOptions{
		Endpoint:          a.cfg.Endpoint,
		Bucket:            bucket,
		AccessKey:         cred.AK,
		SecretKey:         cred.SK,
		Token:             cred.Token,
		UseHTTPS:          a.cfg.Protocol == "https",
		KeepAlive:         a.cfg.KeepAlive,
		ConnectTimeoutSec: a.cfg.ConnectTimeoutSec,
		RequestTimeoutSec: a.cfg.RequestTimeoutSec,
	}
	if a.cfg.GmModeSwitch || a.cfg.MutualSslSwitch || a.cfg.ServerCertPath != "" {
		opts.Security = &obs.SecurityOptions{
			GmMode:                a.cfg.GmModeSwitch,
			MutualSSL:             a.cfg.MutualSslSwitch,
			SslMinVersion:         a.cfg.SslMinVersion,
			SslMaxVersion:         a.cfg.SslMaxVersion,
			ServerCertPath:        a.cfg.ServerCertPath,
			ClientSignCertPath:    a.cfg.ClientSignCertPath,
			ClientSignKeyPath:     a.cfg.ClientSignKeyPath,
			ClientSignKeyPassword: a.cfg.ClientSignKeyPassword,
			ClientEncCertPath:     a.cfg.ClientEncCertPath,
			ClientEncKeyPath:      a.cfg.ClientEncKeyPath,
		}
	}
	return opts
}

// transfer is the per-call context threaded through one operation's
// callbacks.
type transfer struct {
	processed   int64
	expected    int64
	expectedSet bool

	validationFailed bool
	skipValidation   bool
	anchor           int64

	requestID string
	etag      string
}

func (t *transfer) captureProperties(p *obs.ResponseProperties) obs.Status {
	t.requestID = p.RequestID
	t.etag = p.ETag
	if p.ContentLength > 0 {
		t.expected = p.ContentLength
		t.expectedSet = true
	}
	return obs.StatusOK
}

func (a *Adapter) responseHandler(t *transfer) obs.ResponseHandler {
	return obs.ResponseHandler{
		Properties: t.captureProperties,
		Complete:   func(obs.Status, *obs.ErrorDetails) {},
	}
}

// producer returns a PutDataCallback streaming pattern bytes for [offset,
// offset+size). Multipart parts pass their absolute offset so pattern
// continuity holds across part boundaries.
func (a *Adapter) producer(t *transfer, offset, size int64) obs.PutDataCallback {
	return func(buf []byte) int {
		if a.stopping() {
			return -1
		}
		remaining := size - t.processed
		if remaining <= 0 {
			return 0
		}
		n := int64(len(buf))
		if n > remaining {
			n = remaining
		}
		a.pat.Fill(buf[:n], offset+t.processed)
		t.processed += n
		return int(n)
	}
}

// consumer returns a GetDataCallback that verifies each chunk against the
// pattern at its absolute stream offset, unless validation is off or skipped
// for this call.
func (a *Adapter) consumer(t *transfer) obs.GetDataCallback {
	return func(chunk []byte) obs.Status {
		if a.stopping() {
			return obs.StatusAbortedByCallback
		}
		if !t.skipValidation {
			off := t.anchor + t.processed
			if mismatch, ok := a.pat.Verify(chunk, off); !ok {
				t.validationFailed = true
				a.log.Warn().
					Str("request_id", t.requestID).
					Int64("offset", mismatch).
					Msg("data validation failed: byte mismatch")
				return obs.StatusAbortedByCallback
			}
		}
		t.processed += int64(len(chunk))
		return obs.StatusOK
	}
}

func (a *Adapter) result(t *transfer, s obs.Status, okClass int) Result {
	r := Result{Status: s, Bytes: t.processed, RequestID: t.requestID, ETag: t.etag}
	if s == obs.StatusOK {
		r.Class = okClass
	} else {
		r.Class = obs.Classify(s)
	}
	return r
}

// Put uploads size pattern bytes under key. The worker credits success bytes
// for uploads, so the adapter only reports.
func (a *Adapter) Put(ctx context.Context, opts *obs.RequestOptions, key string, size int64) Result {
	t := &transfer{}
	h := &obs.PutObjectHandler{
		ResponseHandler: a.responseHandler(t),
		Data:            a.producer(t, 0, size),
	}
	s := a.client.PutObject(ctx, opts, key, size, h)
	return a.result(t, s, obs.ClassOK)
}

// Get downloads key, verifying the body against the pattern. A nil rng reads
// the whole object anchored at 0; otherwise the range's anchor is used and
// the success class is 206.
func (a *Adapter) Get(ctx context.Context, opts *obs.RequestOptions, key string, rng *types.RangeSpec) Result {
	t := &transfer{skipValidation: !a.cfg.EnableDataValidation}

	var cond *obs.GetConditions
	okClass := obs.ClassOK
	if rng != nil {
		cond = &obs.GetConditions{StartByte: rng.Start, ByteCount: rng.Count}
		t.anchor = rng.Anchor
		if rng.SkipValidation {
			t.skipValidation = true
		}
		okClass = obs.ClassPartial
	}

	h := &obs.GetObjectHandler{
		ResponseHandler: a.responseHandler(t),
		Data:            a.consumer(t),
	}
	s := a.client.GetObject(ctx, opts, key, cond, h)

	if s == obs.StatusOK {
		if t.expectedSet && t.processed != t.expected {
			a.stats.FailValidation.Add(1)
			a.log.Warn().
				Str("request_id", t.requestID).
				Int64("processed", t.processed).
				Int64("expected", t.expected).
				Msg("DATA_INCOMPLETE: short read")
			return a.result(t, obs.StatusInternalError, okClass)
		}
		a.stats.SuccessBytes.Add(t.processed)
		return a.result(t, s, okClass)
	}
	if t.validationFailed {
		a.stats.FailValidation.Add(1)
		return a.result(t, obs.StatusInternalError, okClass)
	}
	return a.result(t, s, okClass)
}

// Delete removes key. Success maps to the 204 class.
func (a *Adapter) Delete(ctx context.Context, opts *obs.RequestOptions, key string) Result {
	t := &transfer{}
	h := a.responseHandler(t)
	s := a.client.DeleteObject(ctx, opts, key, &h)
	return a.result(t, s, obs.ClassNoContent)
}

// List fetches one page of the bucket under prefix.
func (a *Adapter) List(ctx context.Context, opts *obs.RequestOptions, prefix string) Result {
	t := &transfer{}
	h := &obs.ListObjectsHandler{
		ResponseHandler: a.responseHandler(t),
		List: func(truncated bool, next string, contents []obs.ObjectSummary) obs.Status {
			t.processed += int64(len(contents))
			return obs.StatusOK
		},
	}
	s := a.client.ListObjects(ctx, opts, prefix, "", 1000, h)
	r := a.result(t, s, obs.ClassOK)
	r.Bytes = 0
	return r
}

// Multipart uploads size bytes as ceil(size/partSize) sequential parts with
// pattern continuity across part boundaries, then completes the upload with
// the collected etags. The first part failure ends the operation with that
// part's status.
func (a *Adapter) Multipart(ctx context.Context, opts *obs.RequestOptions, key string, size int64) Result {
	t := &transfer{}
	initH := a.responseHandler(t)
	uploadID, s := a.client.InitiateMultipartUpload(ctx, opts, key, &initH)
	if s != obs.StatusOK {
		return a.result(t, s, obs.ClassOK)
	}

	partSize := a.cfg.PartSize
	partCount := int((size + partSize - 1) / partSize)
	parts := make([]obs.CompletedPart, 0, partCount)

	var produced int64
	for i := 0; i < partCount; i++ {
		offset := int64(i) * partSize
		length := size - offset
		if length > partSize {
			length = partSize
		}

		pt := &transfer{}
		ph := &obs.PutObjectHandler{
			ResponseHandler: a.responseHandler(pt),
			Data:            a.producer(pt, offset, length),
		}
		ps := a.client.UploadPart(ctx, opts, key, uploadID, i+1, length, ph)
		produced += pt.processed
		if ps != obs.StatusOK {
			t.processed = produced
			if pt.requestID != "" {
				t.requestID = pt.requestID
			}
			return a.result(t, ps, obs.ClassOK)
		}
		parts = append(parts, obs.CompletedPart{PartNumber: i + 1, ETag: pt.etag})
	}

	compH := a.responseHandler(t)
	s = a.client.CompleteMultipartUpload(ctx, opts, key, uploadID, parts, &compH)
	t.processed = produced
	return a.result(t, s, obs.ClassOK)
}

// Resumable uploads the materialized source file through the client's
// file-upload operation.
func (a *Adapter) Resumable(ctx context.Context, opts *obs.RequestOptions, key string) Result {
	t := &transfer{}
	var finalStatus obs.Status
	var finalMsg string
	h := &obs.UploadFileHandler{
		ResponseHandler: a.responseHandler(t),
		Done: func(s obs.Status, msg string, partCount int) {
			finalStatus = s
			finalMsg = msg
		},
	}
	ucfg := &obs.UploadFileConfig{
		SourcePath:       a.cfg.UploadFilePath,
		PartSize:         a.cfg.PartSize,
		EnableCheckpoint: a.cfg.EnableCheckpoint,
		TaskNum:          1,
	}
	s := a.client.UploadFile(ctx, opts, key, ucfg, h)
	if s != obs.StatusOK && finalMsg != "" {
		a.log.Debug().
			Str("request_id", t.requestID).
			Str("status", finalStatus.String()).
			Msg(finalMsg)
	}
	return a.result(t, s, obs.ClassOK)
}
