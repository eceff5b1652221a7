package types

import "strings"

// Test case codes. They match the numeric TestCase values accepted in the
// configuration file and on the command line.
const (
	CasePut       = 201
	CaseGet       = 202
	CaseDelete    = 204
	CaseList      = 4
	CaseMultipart = 216
	CaseResumable = 230
	CaseMix       = 900
)

// CaseName returns a short human-readable name for a test case code.
func CaseName(c int) string {
	switch c {
	case CasePut:
		return "PUT"
	case CaseGet:
		return "GET"
	case CaseDelete:
		return "DELETE"
	case CaseList:
		return "LIST"
	case CaseMultipart:
		return "MULTIPART"
	case CaseResumable:
		return "RESUMABLE"
	case CaseMix:
		return "MIX"
	default:
		return "UNKNOWN"
	}
}

// UserCredential is one tenant identity bound to a group of workers.
// OriginalAK equals AK unless the run uses temporary credentials, in which
// case OriginalAK carries the permanent key the bucket name derives from.
type UserCredential struct {
	Username   string
	AK         string
	SK         string
	Token      string
	OriginalAK string
}

// RangeSpec is one parsed byte-range option for GET requests.
//
// Start/Count follow the client library's conditions: Count == 0 means "to
// end of object". Anchor is the absolute pattern-stream offset the first
// delivered byte is verified against. SkipValidation marks ranges whose
// anchor cannot be known up front (suffix ranges under end-anchoring).
type RangeSpec struct {
	Raw            string
	Start          int64
	Count          int64
	Anchor         int64
	SkipValidation bool
}

// Config is the validated run configuration. It is built once at startup and
// shared read-only by every worker; nothing mutates it after Load returns.
type Config struct {
	// Transport / auth
	Endpoint          string `validate:"required"`
	Protocol          string `validate:"oneof=http https"`
	KeepAlive         bool
	ConnectTimeoutSec int `validate:"gte=0"`
	RequestTimeoutSec int `validate:"gte=0"`
	IsTemporaryToken  bool

	// Multi-tenancy
	Users            int `validate:"gt=0"`
	ThreadsPerUser   int `validate:"gt=0"`
	Threads          int // derived: loaded users x ThreadsPerUser
	BucketNamePrefix string
	BucketNameFixed  string
	UserList         []UserCredential

	// Test plan
	RequestsPerThread int64 `validate:"gt=0"`
	TestCase          int
	RunSeconds        int `validate:"gte=0"`
	MixOps            []int
	MixLoopCount      int64
	UseMixMode        bool

	// Object shape
	ObjectSizeMin         int64 `validate:"gte=0"`
	ObjectSizeMax         int64 `validate:"gte=0"`
	DynamicSize           bool
	PartSize              int64 `validate:"gt=0"`
	KeyPrefix             string
	ObjNamePatternHash    bool
	Ranges                []RangeSpec
	RangeSuffixAnchorsEnd bool

	// Behavior
	EnableDataValidation bool
	EnableDetailLog      bool
	LogLevel             string
	EnableCheckpoint     bool
	UploadFilePath       string
	UsersFile            string
	TokenFile            string
	MetricsListen        string

	// Transport security passthrough
	GmModeSwitch          bool
	MutualSslSwitch       bool
	SslMinVersion         string
	SslMaxVersion         string
	ServerCertPath        string
	ClientSignCertPath    string
	ClientSignKeyPath     string
	ClientSignKeyPassword string
	ClientEncCertPath     string
	ClientEncKeyPath      string
}

// ObjectSize returns the fixed object size for non-dynamic runs.
func (c *Config) ObjectSize() int64 {
	return c.ObjectSizeMax
}

// NeedsUploadFile reports whether the plan includes the resumable case and
// therefore requires a materialized source file.
func (c *Config) NeedsUploadFile() bool {
	if c.TestCase == CaseResumable {
		return true
	}
	if c.UseMixMode {
		for _, op := range c.MixOps {
			if op == CaseResumable {
				return true
			}
		}
	}
	return false
}

// BucketFor resolves the target bucket for a user by the bucket policy:
// a fixed name wins; otherwise {lowercase-original-ak}.{prefix}, degrading to
// whichever side is non-empty, and finally to a sentinel default.
func (c *Config) BucketFor(u *UserCredential) string {
	if c.BucketNameFixed != "" {
		return c.BucketNameFixed
	}
	ak := strings.ToLower(u.OriginalAK)
	switch {
	case ak != "" && c.BucketNamePrefix != "":
		return ak + "." + c.BucketNamePrefix
	case ak != "":
		return ak
	case c.BucketNamePrefix != "":
		return c.BucketNamePrefix
	default:
		return "default-bench-bucket"
	}
}
