package obs

import (
	"context"
	"time"
)

// RequestOptions composes the immutable run configuration with the
// credentials a worker is bound to. A fresh value is built per operation;
// implementations must not retain it past the call.
type RequestOptions struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Token     string

	UseHTTPS          bool
	KeepAlive         bool
	ConnectTimeoutSec int
	RequestTimeoutSec int

	Security *SecurityOptions
}

// SecurityOptions carries the TLS passthrough material. Implementations use
// what they can express and ignore the rest.
type SecurityOptions struct {
	GmMode                bool
	MutualSSL             bool
	SslMinVersion         string
	SslMaxVersion         string
	ServerCertPath        string
	ClientSignCertPath    string
	ClientSignKeyPath     string
	ClientSignKeyPassword string
	ClientEncCertPath     string
	ClientEncKeyPath      string
}

// ResponseProperties is delivered by the properties callback before any body
// data, zero or one time per operation.
type ResponseProperties struct {
	RequestID     string
	ETag          string
	ContentLength int64
}

// ErrorDetails carries the service's error message when an operation fails.
type ErrorDetails struct {
	Message string
}

// GetConditions selects a byte range for GetObject. ByteCount == 0 means
// "from StartByte to the end of the object"; a nil GetConditions means the
// whole object.
type GetConditions struct {
	StartByte int64
	ByteCount int64
}

// ObjectSummary is one entry of a bucket listing.
type ObjectSummary struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// CompletedPart pairs a part number with the etag returned by UploadPart.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// UploadFileConfig parameterizes the client's resumable file upload.
type UploadFileConfig struct {
	SourcePath       string
	PartSize         int64
	EnableCheckpoint bool
	CheckpointFile   string
	TaskNum          int
}

// Callback contracts. For one operation the invocation order is fixed:
// properties (0..1 times, before any body data), data (many times), complete
// (exactly once, last).
type (
	// PropertiesCallback receives response metadata. Returning non-OK
	// aborts the operation.
	PropertiesCallback func(p *ResponseProperties) Status

	// CompleteCallback receives the operation's terminal status.
	CompleteCallback func(status Status, details *ErrorDetails)

	// PutDataCallback fills buf with the next upload bytes and returns the
	// count produced. Returning a value <= 0 aborts the transfer.
	PutDataCallback func(buf []byte) int

	// GetDataCallback consumes the next downloaded chunk. Returning non-OK
	// aborts the transfer and becomes the operation's terminal status.
	GetDataCallback func(chunk []byte) Status

	// ListCallback receives one page of a bucket listing.
	ListCallback func(truncated bool, nextMarker string, contents []ObjectSummary) Status

	// UploadFileCallback receives the terminal status of a file upload,
	// separate from the generic complete callback.
	UploadFileCallback func(status Status, message string, partCount int)
)

// ResponseHandler is the callback pair common to every operation.
type ResponseHandler struct {
	Properties PropertiesCallback
	Complete   CompleteCallback
}

// PutObjectHandler adds the upload data producer. It serves both PutObject
// and UploadPart.
type PutObjectHandler struct {
	ResponseHandler
	Data PutDataCallback
}

// GetObjectHandler adds the download data consumer.
type GetObjectHandler struct {
	ResponseHandler
	Data GetDataCallback
}

// ListObjectsHandler adds the listing page consumer.
type ListObjectsHandler struct {
	ResponseHandler
	List ListCallback
}

// UploadFileHandler adds the file-upload completion callback.
type UploadFileHandler struct {
	ResponseHandler
	Done UploadFileCallback
}

// Client is the narrow operation interface the engine consumes. Every method
// drives the handler callbacks in the documented order, invokes Complete
// exactly once, and returns the same terminal status for convenience.
// Methods never retry.
type Client interface {
	PutObject(ctx context.Context, opts *RequestOptions, key string, contentLength int64, h *PutObjectHandler) Status
	GetObject(ctx context.Context, opts *RequestOptions, key string, cond *GetConditions, h *GetObjectHandler) Status
	DeleteObject(ctx context.Context, opts *RequestOptions, key string, h *ResponseHandler) Status
	ListObjects(ctx context.Context, opts *RequestOptions, prefix, marker string, maxKeys int, h *ListObjectsHandler) Status
	InitiateMultipartUpload(ctx context.Context, opts *RequestOptions, key string, h *ResponseHandler) (uploadID string, status Status)
	UploadPart(ctx context.Context, opts *RequestOptions, key, uploadID string, partNumber int, contentLength int64, h *PutObjectHandler) Status
	CompleteMultipartUpload(ctx context.Context, opts *RequestOptions, key, uploadID string, parts []CompletedPart, h *ResponseHandler) Status
	UploadFile(ctx context.Context, opts *RequestOptions, key string, cfg *UploadFileConfig, h *UploadFileHandler) Status
}

// Initializer is implemented by clients that need process-wide setup and
// teardown around a run.
type Initializer interface {
	Initialize() error
	Deinitialize()
}
