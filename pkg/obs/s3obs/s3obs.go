package s3obs

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmw "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/cuemby/osbench/pkg/checkpoint"
	"github.com/cuemby/osbench/pkg/obs"
)

// chunkSize is the download streaming granularity.
const chunkSize = 8192

// defaultRegion is used when the endpoint does not imply one; S3-compatible
// services accept any region with path-style addressing.
const defaultRegion = "us-east-1"

var errProducerAborted = errors.New("upload producer aborted")

// Client implements obs.Client against any S3-compatible endpoint using
// aws-sdk-go-v2. SDK clients are cached per credential set; the engine never
// retries, so the SDK retryer is disabled.
type Client struct {
	// Checkpoints, when set, lets UploadFile resume interrupted multipart
	// uploads across runs.
	Checkpoints *checkpoint.Store

	mu      sync.Mutex
	clients map[string]*s3.Client
}

// New creates an S3 client wrapper.
func New() *Client {
	return &Client{clients: make(map[string]*s3.Client)}
}

// Initialize implements obs.Initializer.
func (c *Client) Initialize() error { return nil }

// Deinitialize implements obs.Initializer.
func (c *Client) Deinitialize() {
	c.mu.Lock()
	c.clients = make(map[string]*s3.Client)
	c.mu.Unlock()
}

func (c *Client) clientFor(opts *obs.RequestOptions) (*s3.Client, error) {
	key := opts.AccessKey + "|" + opts.Token + "|" + opts.Endpoint
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[key]; ok {
		return cl, nil
	}

	tlsCfg, err := tlsConfig(opts.Security)
	if err != nil {
		return nil, err
	}

	connectTimeout := time.Duration(opts.ConnectTimeoutSec) * time.Second
	keepAlive := opts.KeepAlive
	httpClient := awshttp.NewBuildableClient().
		WithDialerOptions(func(d *net.Dialer) {
			if connectTimeout > 0 {
				d.Timeout = connectTimeout
			}
		}).
		WithTransportOptions(func(tr *http.Transport) {
			tr.DisableKeepAlives = !keepAlive
			if tlsCfg != nil {
				tr.TLSClientConfig = tlsCfg
			}
		})

	scheme := "https"
	if !opts.UseHTTPS {
		scheme = "http"
	}

	cl := s3.New(s3.Options{
		Region:       defaultRegion,
		BaseEndpoint: aws.String(scheme + "://" + opts.Endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, opts.Token),
		UsePathStyle: true,
		HTTPClient:   httpClient,
		Retryer:      aws.NopRetryer{},
	})
	c.clients[key] = cl
	return cl, nil
}

// tlsConfig builds the client TLS material from the security passthrough.
// GM-mode cipher suites and encrypted private keys are not expressible with
// the standard TLS stack and are ignored.
func tlsConfig(sec *obs.SecurityOptions) (*tls.Config, error) {
	if sec == nil || (!sec.MutualSSL && sec.ServerCertPath == "") {
		return nil, nil
	}
	cfg := &tls.Config{}
	if sec.ServerCertPath != "" {
		pem, err := os.ReadFile(sec.ServerCertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read server cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse server cert %s", sec.ServerCertPath)
		}
		cfg.RootCAs = pool
	}
	if sec.MutualSSL {
		cert, err := tls.LoadX509KeyPair(sec.ClientSignCertPath, sec.ClientSignKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

func (c *Client) opContext(ctx context.Context, opts *obs.RequestOptions) (context.Context, context.CancelFunc) {
	if opts.RequestTimeoutSec > 0 {
		return context.WithTimeout(ctx, time.Duration(opts.RequestTimeoutSec)*time.Second)
	}
	return ctx, func() {}
}

func finish(h *obs.ResponseHandler, s obs.Status, err error) obs.Status {
	if h != nil && h.Complete != nil {
		var det *obs.ErrorDetails
		if err != nil {
			det = &obs.ErrorDetails{Message: err.Error()}
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

// mapError converts an SDK error chain into the client-library status kind
// the classifier understands.
func mapError(err error) obs.Status {
	if err == nil {
		return obs.StatusOK
	}
	if errors.Is(err, errProducerAborted) {
		return obs.StatusAbortedByCallback
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return obs.StatusTimeout
	}
	if errors.Is(err, context.Canceled) {
		return obs.StatusInterrupted
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "AccessDenied":
			return obs.StatusAccessDenied
		case "InvalidAccessKeyId":
			return obs.StatusInvalidAccessKeyID
		case "SignatureDoesNotMatch":
			return obs.StatusSignatureDoesNotMatch
		case "InvalidSecurity", "InvalidToken", "ExpiredToken":
			return obs.StatusInvalidSecurity
		case "NoSuchBucket":
			return obs.StatusNoSuchBucket
		case "NoSuchKey", "NotFound":
			return obs.StatusNoSuchKey
		case "NoSuchUpload":
			return obs.StatusNoSuchUpload
		case "NoSuchVersion":
			return obs.StatusNoSuchVersion
		case "BucketAlreadyExists":
			return obs.StatusBucketAlreadyExists
		case "BucketAlreadyOwnedByYou":
			return obs.StatusBucketAlreadyOwnedByYou
		case "BucketNotEmpty":
			return obs.StatusBucketNotEmpty
		case "InternalError":
			return obs.StatusInternalError
		case "ServiceUnavailable":
			return obs.StatusServiceUnavailable
		case "SlowDown":
			return obs.StatusSlowDown
		case "EntityTooSmall":
			return obs.StatusEntityTooSmall
		case "EntityTooLarge":
			return obs.StatusEntityTooLarge
		case "InvalidPart":
			return obs.StatusInvalidPart
		case "InvalidPartOrder":
			return obs.StatusInvalidPartOrder
		case "InvalidRange":
			return obs.StatusInvalidRange
		case "InvalidArgument":
			return obs.StatusInvalidArgument
		case "InvalidBucketName":
			return obs.StatusInvalidBucketName
		case "MethodNotAllowed":
			return obs.StatusMethodNotAllowed
		case "PreconditionFailed":
			return obs.StatusPreconditionFailed
		case "RequestTimeTooSkewed":
			return obs.StatusRequestTimeTooSkewed
		default:
			return obs.StatusErrorUnknown
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return obs.StatusNameLookupError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return obs.StatusTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return obs.StatusFailedToConnect
	}
	return obs.StatusConnectionFailed
}

// produceReader adapts the upload-produce callback to io.Reader for the SDK.
type produceReader struct {
	fn        obs.PutDataCallback
	remaining int64
}

func (r *produceReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n := r.fn(p)
	if n <= 0 {
		return 0, errProducerAborted
	}
	r.remaining -= int64(n)
	return n, nil
}

// PutObject streams contentLength bytes from the data callback.
func (c *Client) PutObject(ctx context.Context, opts *obs.RequestOptions, key string, contentLength int64, h *obs.PutObjectHandler) obs.Status {
	cl, err := c.clientFor(opts)
	if err != nil {
		return finish(&h.ResponseHandler, obs.StatusInvalidParameter, err)
	}
	ctx, cancel := c.opContext(ctx, opts)
	defer cancel()

	out, err := cl.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(opts.Bucket),
		Key:           aws.String(key),
		Body:          &produceReader{fn: h.Data, remaining: contentLength},
		ContentLength: aws.Int64(contentLength),
	})
	if err != nil {
		return finish(&h.ResponseHandler, mapError(err), err)
	}

	props := &obs.ResponseProperties{ETag: aws.ToString(out.ETag)}
	if rid, ok := awsmw.GetRequestIDMetadata(out.ResultMetadata); ok {
		props.RequestID = rid
	}
	if s := sendProperties(&h.ResponseHandler, props); s != obs.StatusOK {
		return finish(&h.ResponseHandler, s, nil)
	}
	return finish(&h.ResponseHandler, obs.StatusOK, nil)
}

func rangeHeader(cond *obs.GetConditions) *string {
	if cond == nil || (cond.StartByte == 0 && cond.ByteCount == 0) {
		return nil
	}
	if cond.StartByte < 0 {
		// Suffix range: the last -StartByte bytes of the object.
		return aws.String(fmt.Sprintf("bytes=%d", cond.StartByte))
	}
	if cond.ByteCount > 0 {
		return aws.String(fmt.Sprintf("bytes=%d-%d", cond.StartByte, cond.StartByte+cond.ByteCount-1))
	}
	return aws.String(fmt.Sprintf("bytes=%d-", cond.StartByte))
}

// GetObject streams the response body into the data callback in fixed-size
// chunks.
func (c *Client) GetObject(ctx context.Context, opts *obs.RequestOptions, key string, cond *obs.GetConditions, h *obs.GetObjectHandler) obs.Status {
	cl, err := c.clientFor(opts)
	if err != nil {
		return finish(&h.ResponseHandler, obs.StatusInvalidParameter, err)
	}
	ctx, cancel := c.opContext(ctx, opts)
	defer cancel()

	out, err := cl.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(opts.Bucket),
		Key:    aws.String(key),
		Range:  rangeHeader(cond),
	})
	if err != nil {
		return finish(&h.ResponseHandler, mapError(err), err)
	}
	defer out.Body.Close()

	props := &obs.ResponseProperties{
		ETag:          aws.ToString(out.ETag),
		ContentLength: aws.ToInt64(out.ContentLength),
	}
	if rid, ok := awsmw.GetRequestIDMetadata(out.ResultMetadata); ok {
		props.RequestID = rid
	}
	if s := sendProperties(&h.ResponseHandler, props); s != obs.StatusOK {
		return finish(&h.ResponseHandler, s, nil)
	}

	buf := make([]byte, chunkSize)
	for {
		n, rerr := out.Body.Read(buf)
		if n > 0 {
			if s := h.Data(buf[:n]); s != obs.StatusOK {
				return finish(&h.ResponseHandler, s, nil)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return finish(&h.ResponseHandler, mapError(rerr), rerr)
		}
	}
	return finish(&h.ResponseHandler, obs.StatusOK, nil)
}

// DeleteObject removes the key.
func (c *Client) DeleteObject(ctx context.Context, opts *obs.RequestOptions, key string, h *obs.ResponseHandler) obs.Status {
	cl, err := c.clientFor(opts)
	if err != nil {
		return finish(h, obs.StatusInvalidParameter, err)
	}
	ctx, cancel := c.opContext(ctx, opts)
	defer cancel()

	out, err := cl.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return finish(h, mapError(err), err)
	}
	props := &obs.ResponseProperties{}
	if rid, ok := awsmw.GetRequestIDMetadata(out.ResultMetadata); ok {
		props.RequestID = rid
	}
	if s := sendProperties(h, props); s != obs.StatusOK {
		return finish(h, s, nil)
	}
	return finish(h, obs.StatusOK, nil)
}

// ListObjects delivers one page of keys under prefix.
func (c *Client) ListObjects(ctx context.Context, opts *obs.RequestOptions, prefix, marker string, maxKeys int, h *obs.ListObjectsHandler) obs.Status {
	cl, err := c.clientFor(opts)
	if err != nil {
		return finish(&h.ResponseHandler, obs.StatusInvalidParameter, err)
	}
	ctx, cancel := c.opContext(ctx, opts)
	defer cancel()

	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(opts.Bucket),
	}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}
	if marker != "" {
		in.StartAfter = aws.String(marker)
	}
	if maxKeys > 0 {
		in.MaxKeys = aws.Int32(int32(maxKeys))
	}
	out, err := cl.ListObjectsV2(ctx, in)
	if err != nil {
		return finish(&h.ResponseHandler, mapError(err), err)
	}

	props := &obs.ResponseProperties{}
	if rid, ok := awsmw.GetRequestIDMetadata(out.ResultMetadata); ok {
		props.RequestID = rid
	}
	if s := sendProperties(&h.ResponseHandler, props); s != obs.StatusOK {
		return finish(&h.ResponseHandler, s, nil)
	}

	if h.List != nil {
		contents := make([]obs.ObjectSummary, 0, len(out.Contents))
		for _, o := range out.Contents {
			contents = append(contents, obs.ObjectSummary{
				Key:          aws.ToString(o.Key),
				Size:         aws.ToInt64(o.Size),
				ETag:         aws.ToString(o.ETag),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
		next := ""
		if len(out.Contents) > 0 {
			next = aws.ToString(out.Contents[len(out.Contents)-1].Key)
		}
		if s := h.List(aws.ToBool(out.IsTruncated), next, contents); s != obs.StatusOK {
			return finish(&h.ResponseHandler, s, nil)
		}
	}
	return finish(&h.ResponseHandler, obs.StatusOK, nil)
}

// InitiateMultipartUpload opens a multipart session.
func (c *Client) InitiateMultipartUpload(ctx context.Context, opts *obs.RequestOptions, key string, h *obs.ResponseHandler) (string, obs.Status) {
	cl, err := c.clientFor(opts)
	if err != nil {
		return "", finish(h, obs.StatusInvalidParameter, err)
	}
	ctx, cancel := c.opContext(ctx, opts)
	defer cancel()

	out, err := cl.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", finish(h, mapError(err), err)
	}
	props := &obs.ResponseProperties{}
	if rid, ok := awsmw.GetRequestIDMetadata(out.ResultMetadata); ok {
		props.RequestID = rid
	}
	if s := sendProperties(h, props); s != obs.StatusOK {
		return "", finish(h, s, nil)
	}
	return aws.ToString(out.UploadId), finish(h, obs.StatusOK, nil)
}

// UploadPart streams one part from the data callback.
func (c *Client) UploadPart(ctx context.Context, opts *obs.RequestOptions, key, uploadID string, partNumber int, contentLength int64, h *obs.PutObjectHandler) obs.Status {
	cl, err := c.clientFor(opts)
	if err != nil {
		return finish(&h.ResponseHandler, obs.StatusInvalidParameter, err)
	}
	ctx, cancel := c.opContext(ctx, opts)
	defer cancel()

	out, err := cl.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(opts.Bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(int32(partNumber)),
		Body:          &produceReader{fn: h.Data, remaining: contentLength},
		ContentLength: aws.Int64(contentLength),
	})
	if err != nil {
		return finish(&h.ResponseHandler, mapError(err), err)
	}
	props := &obs.ResponseProperties{ETag: aws.ToString(out.ETag)}
	if rid, ok := awsmw.GetRequestIDMetadata(out.ResultMetadata); ok {
		props.RequestID = rid
	}
	if s := sendProperties(&h.ResponseHandler, props); s != obs.StatusOK {
		return finish(&h.ResponseHandler, s, nil)
	}
	return finish(&h.ResponseHandler, obs.StatusOK, nil)
}

// CompleteMultipartUpload closes the session with the assembled part list.
func (c *Client) CompleteMultipartUpload(ctx context.Context, opts *obs.RequestOptions, key, uploadID string, parts []obs.CompletedPart, h *obs.ResponseHandler) obs.Status {
	cl, err := c.clientFor(opts)
	if err != nil {
		return finish(h, obs.StatusInvalidParameter, err)
	}
	ctx, cancel := c.opContext(ctx, opts)
	defer cancel()

	completed := make([]s3types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, s3types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(int32(p.PartNumber)),
		})
	}
	out, err := cl.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(opts.Bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return finish(h, mapError(err), err)
	}
	props := &obs.ResponseProperties{ETag: aws.ToString(out.ETag)}
	if rid, ok := awsmw.GetRequestIDMetadata(out.ResultMetadata); ok {
		props.RequestID = rid
	}
	if s := sendProperties(h, props); s != obs.StatusOK {
		return finish(h, s, nil)
	}
	return finish(h, obs.StatusOK, nil)
}
