package memobs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/osbench/pkg/obs"
	"github.com/cuemby/osbench/pkg/pattern"
)

// chunkSize mirrors the real SDK's streaming granularity.
const chunkSize = 8192

// VirtualObjectSize is the size served for ranged reads of absent keys when
// virtual serving is enabled, matching the mock SDK's 100 MiB phantom object.
const VirtualObjectSize = 100 * 1024 * 1024

type object struct {
	data []byte
	etag string
}

type mpSession struct {
	bucket string
	key    string
	parts  map[int][]byte
	etags  map[int]string
}

// Client is an in-memory obs.Client used for tests and simulation runs. It
// drives handler callbacks exactly like the wire client: properties before
// body, data in fixed-size chunks, complete exactly once.
type Client struct {
	mu       sync.RWMutex
	buckets  map[string]map[string]object
	sessions map[string]*mpSession

	// ServeVirtual makes GetObject serve deterministic pattern bytes for
	// absent keys instead of NoSuchKey, so read-only runs against an empty
	// store still exercise the full download path.
	ServeVirtual bool

	pat *pattern.Buffer

	faultMu sync.Mutex
	faults  map[string]obs.Status
}

// New creates an empty in-memory client.
func New() *Client {
	return &Client{
		buckets:  make(map[string]map[string]object),
		sessions: make(map[string]*mpSession),
		pat:      pattern.Default(),
		faults:   make(map[string]obs.Status),
	}
}

// InjectFault makes the next invocation of op (one of "put", "get",
// "delete", "list", "initiate", "part", "complete", "uploadfile") terminate
// with the given status without touching the store.
func (c *Client) InjectFault(op string, s obs.Status) {
	c.faultMu.Lock()
	c.faults[op] = s
	c.faultMu.Unlock()
}

func (c *Client) takeFault(op string) (obs.Status, bool) {
	c.faultMu.Lock()
	defer c.faultMu.Unlock()
	s, ok := c.faults[op]
	if ok {
		delete(c.faults, op)
	}
	return s, ok
}

// FlipByte corrupts one stored byte, for data-validation tests.
func (c *Client) FlipByte(bucket, key string, offset int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[bucket]
	if !ok {
		return fmt.Errorf("no such bucket %q", bucket)
	}
	o, ok := b[key]
	if !ok {
		return fmt.Errorf("no such key %q", key)
	}
	if offset < 0 || offset >= int64(len(o.data)) {
		return fmt.Errorf("offset %d out of range for %d-byte object", offset, len(o.data))
	}
	o.data[offset] ^= 0xFF
	return nil
}

// ObjectSize returns the stored size of a key, or -1 when absent.
func (c *Client) ObjectSize(bucket, key string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if o, ok := c.buckets[bucket][key]; ok {
		return int64(len(o.data))
	}
	return -1
}

func requestID(op string) string {
	return fmt.Sprintf("mem-%s-%s", op, uuid.NewString()[:8])
}

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func complete(h *obs.ResponseHandler, s obs.Status, msg string) obs.Status {
	if h != nil && h.Complete != nil {
		var det *obs.ErrorDetails
		if s != obs.StatusOK && msg != "" {
			det = &obs.ErrorDetails{Message: msg}
		}
		h.Complete(s, det)
	}
	return s
}

func sendProperties(h *obs.ResponseHandler, p *obs.ResponseProperties) obs.Status {
	if h != nil && h.Properties != nil {
		return h.Properties(p)
	}
	return obs.StatusOK
}

// PutObject collects contentLength bytes from the data callback in SDK-sized
// chunks and stores them under (bucket, key).
func (c *Client) PutObject(ctx context.Context, opts *obs.RequestOptions, key string, contentLength int64, h *obs.PutObjectHandler) obs.Status {
	if s, ok := c.takeFault("put"); ok {
		return complete(&h.ResponseHandler, s, s.String())
	}

	data := make([]byte, 0, contentLength)
	buf := make([]byte, chunkSize)
	for int64(len(data)) < contentLength {
		if ctx.Err() != nil {
			return complete(&h.ResponseHandler, obs.StatusInterrupted, "context canceled")
		}
		want := contentLength - int64(len(data))
		if want > chunkSize {
			want = chunkSize
		}
		n := h.Data(buf[:want])
		if n <= 0 {
			return complete(&h.ResponseHandler, obs.StatusAbortedByCallback, "upload aborted by producer")
		}
		data = append(data, buf[:n]...)
	}

	etag := etagOf(data)
	c.mu.Lock()
	if c.buckets[opts.Bucket] == nil {
		c.buckets[opts.Bucket] = make(map[string]object)
	}
	c.buckets[opts.Bucket][key] = object{data: data, etag: etag}
	c.mu.Unlock()

	props := &obs.ResponseProperties{RequestID: requestID("put"), ETag: etag}
	if s := sendProperties(&h.ResponseHandler, props); s != obs.StatusOK {
		return complete(&h.ResponseHandler, s, "aborted by properties callback")
	}
	return complete(&h.ResponseHandler, obs.StatusOK, "")
}

// GetObject streams the stored (or virtual) bytes through the data callback,
// honoring the byte-range conditions.
func (c *Client) GetObject(ctx context.Context, opts *obs.RequestOptions, key string, cond *obs.GetConditions, h *obs.GetObjectHandler) obs.Status {
	if s, ok := c.takeFault("get"); ok {
		return complete(&h.ResponseHandler, s, s.String())
	}

	c.mu.RLock()
	o, found := c.buckets[opts.Bucket][key]
	var data []byte
	if found {
		data = o.data
	}
	c.mu.RUnlock()

	var start, length int64
	etag := o.etag
	if found {
		size := int64(len(data))
		start, length = rangeWindow(cond, size)
		if start > size {
			return complete(&h.ResponseHandler, obs.StatusInvalidRange, "range start beyond object")
		}
		if start+length > size {
			length = size - start
		}
	} else {
		if !c.ServeVirtual {
			return complete(&h.ResponseHandler, obs.StatusNoSuchKey, "no such key")
		}
		start, length = rangeWindow(cond, VirtualObjectSize)
		etag = "mem-virtual"
	}

	props := &obs.ResponseProperties{
		RequestID:     requestID("get"),
		ETag:          etag,
		ContentLength: length,
	}
	if s := sendProperties(&h.ResponseHandler, props); s != obs.StatusOK {
		return complete(&h.ResponseHandler, s, "aborted by properties callback")
	}

	sent := int64(0)
	buf := make([]byte, chunkSize)
	for sent < length {
		if ctx.Err() != nil {
			return complete(&h.ResponseHandler, obs.StatusInterrupted, "context canceled")
		}
		n := length - sent
		if n > chunkSize {
			n = chunkSize
		}
		var chunk []byte
		if found {
			chunk = data[start+sent : start+sent+n]
		} else {
			c.pat.Fill(buf[:n], start+sent)
			chunk = buf[:n]
		}
		if s := h.Data(chunk); s != obs.StatusOK {
			return complete(&h.ResponseHandler, s, "aborted by consumer")
		}
		sent += n
	}
	return complete(&h.ResponseHandler, obs.StatusOK, "")
}

func rangeWindow(cond *obs.GetConditions, size int64) (start, length int64) {
	if cond == nil {
		return 0, size
	}
	start = cond.StartByte
	if start < 0 {
		// Suffix range: the last -start bytes.
		start = size + start
		if start < 0 {
			start = 0
		}
		return start, size - start
	}
	if cond.ByteCount > 0 {
		return start, cond.ByteCount
	}
	if start >= size {
		return start, 0
	}
	return start, size - start
}

// DeleteObject removes the key. Deleting an absent key succeeds, matching
// object-storage delete idempotency.
func (c *Client) DeleteObject(ctx context.Context, opts *obs.RequestOptions, key string, h *obs.ResponseHandler) obs.Status {
	if s, ok := c.takeFault("delete"); ok {
		return complete(h, s, s.String())
	}
	c.mu.Lock()
	delete(c.buckets[opts.Bucket], key)
	c.mu.Unlock()

	if s := sendProperties(h, &obs.ResponseProperties{RequestID: requestID("del")}); s != obs.StatusOK {
		return complete(h, s, "aborted by properties callback")
	}
	return complete(h, obs.StatusOK, "")
}

// ListObjects delivers one page of keys under prefix in lexical order.
func (c *Client) ListObjects(ctx context.Context, opts *obs.RequestOptions, prefix, marker string, maxKeys int, h *obs.ListObjectsHandler) obs.Status {
	if s, ok := c.takeFault("list"); ok {
		return complete(&h.ResponseHandler, s, s.String())
	}

	c.mu.RLock()
	var keys []string
	for k := range c.buckets[opts.Bucket] {
		if len(prefix) > 0 && (len(k) < len(prefix) || k[:len(prefix)] != prefix) {
			continue
		}
		if marker != "" && k <= marker {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	truncated := false
	next := ""
	if maxKeys > 0 && len(keys) > maxKeys {
		keys = keys[:maxKeys]
		truncated = true
		next = keys[len(keys)-1]
	}
	contents := make([]obs.ObjectSummary, 0, len(keys))
	for _, k := range keys {
		o := c.buckets[opts.Bucket][k]
		contents = append(contents, obs.ObjectSummary{
			Key:          k,
			Size:         int64(len(o.data)),
			ETag:         o.etag,
			LastModified: time.Now(),
		})
	}
	c.mu.RUnlock()

	if s := sendProperties(&h.ResponseHandler, &obs.ResponseProperties{RequestID: requestID("list")}); s != obs.StatusOK {
		return complete(&h.ResponseHandler, s, "aborted by properties callback")
	}
	if h.List != nil {
		if s := h.List(truncated, next, contents); s != obs.StatusOK {
			return complete(&h.ResponseHandler, s, "aborted by list callback")
		}
	}
	return complete(&h.ResponseHandler, obs.StatusOK, "")
}

// InitiateMultipartUpload opens a multipart session and returns its id.
func (c *Client) InitiateMultipartUpload(ctx context.Context, opts *obs.RequestOptions, key string, h *obs.ResponseHandler) (string, obs.Status) {
	if s, ok := c.takeFault("initiate"); ok {
		return "", complete(h, s, s.String())
	}
	id := uuid.NewString()
	c.mu.Lock()
	c.sessions[id] = &mpSession{
		bucket: opts.Bucket,
		key:    key,
		parts:  make(map[int][]byte),
		etags:  make(map[int]string),
	}
	c.mu.Unlock()

	if s := sendProperties(h, &obs.ResponseProperties{RequestID: requestID("mpinit")}); s != obs.StatusOK {
		return "", complete(h, s, "aborted by properties callback")
	}
	return id, complete(h, obs.StatusOK, "")
}

// UploadPart collects one part's bytes from the data callback.
func (c *Client) UploadPart(ctx context.Context, opts *obs.RequestOptions, key, uploadID string, partNumber int, contentLength int64, h *obs.PutObjectHandler) obs.Status {
	if s, ok := c.takeFault("part"); ok {
		return complete(&h.ResponseHandler, s, s.String())
	}

	c.mu.RLock()
	sess, ok := c.sessions[uploadID]
	c.mu.RUnlock()
	if !ok {
		return complete(&h.ResponseHandler, obs.StatusNoSuchUpload, "no such upload")
	}

	data := make([]byte, 0, contentLength)
	buf := make([]byte, chunkSize)
	for int64(len(data)) < contentLength {
		if ctx.Err() != nil {
			return complete(&h.ResponseHandler, obs.StatusInterrupted, "context canceled")
		}
		want := contentLength - int64(len(data))
		if want > chunkSize {
			want = chunkSize
		}
		n := h.Data(buf[:want])
		if n <= 0 {
			return complete(&h.ResponseHandler, obs.StatusAbortedByCallback, "upload aborted by producer")
		}
		data = append(data, buf[:n]...)
	}

	etag := etagOf(data)
	c.mu.Lock()
	sess.parts[partNumber] = data
	sess.etags[partNumber] = etag
	c.mu.Unlock()

	props := &obs.ResponseProperties{RequestID: requestID("part"), ETag: etag}
	if s := sendProperties(&h.ResponseHandler, props); s != obs.StatusOK {
		return complete(&h.ResponseHandler, s, "aborted by properties callback")
	}
	return complete(&h.ResponseHandler, obs.StatusOK, "")
}

// CompleteMultipartUpload assembles the session's parts in the order given
// and stores the object.
func (c *Client) CompleteMultipartUpload(ctx context.Context, opts *obs.RequestOptions, key, uploadID string, parts []obs.CompletedPart, h *obs.ResponseHandler) obs.Status {
	if s, ok := c.takeFault("complete"); ok {
		return complete(h, s, s.String())
	}

	c.mu.Lock()
	sess, ok := c.sessions[uploadID]
	if !ok {
		c.mu.Unlock()
		return complete(h, obs.StatusNoSuchUpload, "no such upload")
	}
	var data []byte
	for _, p := range parts {
		pd, ok := sess.parts[p.PartNumber]
		if !ok || sess.etags[p.PartNumber] != p.ETag {
			c.mu.Unlock()
			return complete(h, obs.StatusInvalidPart, fmt.Sprintf("part %d missing or etag mismatch", p.PartNumber))
		}
		data = append(data, pd...)
	}
	if c.buckets[sess.bucket] == nil {
		c.buckets[sess.bucket] = make(map[string]object)
	}
	c.buckets[sess.bucket][key] = object{data: data, etag: etagOf(data)}
	delete(c.sessions, uploadID)
	c.mu.Unlock()

	if s := sendProperties(h, &obs.ResponseProperties{RequestID: requestID("mpdone")}); s != obs.StatusOK {
		return complete(h, s, "aborted by properties callback")
	}
	return complete(h, obs.StatusOK, "")
}

// UploadFile reads the source file and stores it whole, reporting through the
// dedicated file-upload callback.
func (c *Client) UploadFile(ctx context.Context, opts *obs.RequestOptions, key string, cfg *obs.UploadFileConfig, h *obs.UploadFileHandler) obs.Status {
	if s, ok := c.takeFault("uploadfile"); ok {
		if h.Done != nil {
			h.Done(s, s.String(), 0)
		}
		return complete(&h.ResponseHandler, s, s.String())
	}

	data, err := os.ReadFile(cfg.SourcePath)
	if err != nil {
		if h.Done != nil {
			h.Done(obs.StatusOpenFileFailed, err.Error(), 0)
		}
		return complete(&h.ResponseHandler, obs.StatusOpenFileFailed, err.Error())
	}

	c.mu.Lock()
	if c.buckets[opts.Bucket] == nil {
		c.buckets[opts.Bucket] = make(map[string]object)
	}
	c.buckets[opts.Bucket][key] = object{data: data, etag: etagOf(data)}
	c.mu.Unlock()

	partSize := cfg.PartSize
	if partSize <= 0 {
		partSize = 5 * 1024 * 1024
	}
	partCount := int((int64(len(data)) + partSize - 1) / partSize)

	if s := sendProperties(&h.ResponseHandler, &obs.ResponseProperties{RequestID: requestID("upfile")}); s != obs.StatusOK {
		return complete(&h.ResponseHandler, s, "aborted by properties callback")
	}
	if h.Done != nil {
		h.Done(obs.StatusOK, "", partCount)
	}
	return complete(&h.ResponseHandler, obs.StatusOK, "")
}
