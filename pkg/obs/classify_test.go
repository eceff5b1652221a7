package obs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		class  int
	}{
		{"ok", StatusOK, ClassOK},
		{"access denied", StatusAccessDenied, ClassForbidden},
		{"bad access key", StatusInvalidAccessKeyID, ClassForbidden},
		{"bad signature", StatusSignatureDoesNotMatch, ClassForbidden},
		{"invalid security", StatusInvalidSecurity, ClassForbidden},
		{"no such bucket", StatusNoSuchBucket, ClassNotFound},
		{"no such key", StatusNoSuchKey, ClassNotFound},
		{"no such upload", StatusNoSuchUpload, ClassNotFound},
		{"no such version", StatusNoSuchVersion, ClassNotFound},
		{"bucket exists", StatusBucketAlreadyExists, ClassConflict},
		{"bucket owned", StatusBucketAlreadyOwnedByYou, ClassConflict},
		{"bucket not empty", StatusBucketNotEmpty, ClassConflict},
		{"internal error", StatusInternalError, ClassServerErr},
		{"service unavailable", StatusServiceUnavailable, ClassServerErr},
		{"slow down", StatusSlowDown, ClassServerErr},
		{"other service error", StatusInvalidPart, ClassBadReq},
		{"entity too large", StatusEntityTooLarge, ClassBadReq},
		{"dns failure", StatusNameLookupError, ClassNone},
		{"connect failure", StatusFailedToConnect, ClassNone},
		{"connection dropped", StatusConnectionFailed, ClassNone},
		{"timeout", StatusTimeout, ClassNone},
		{"aborted by callback", StatusAbortedByCallback, ClassNone},
		{"interrupted", StatusInterrupted, ClassNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, Classify(tt.status))
		})
	}
}

func TestIsServiceError(t *testing.T) {
	assert.False(t, StatusOK.IsServiceError())
	assert.False(t, StatusConnectionFailed.IsServiceError())
	assert.False(t, StatusInternalError.IsServiceError())
	assert.True(t, StatusAccessDenied.IsServiceError())
	assert.True(t, StatusErrorUnknown.IsServiceError())
}

func TestStatusNames(t *testing.T) {
	assert.Equal(t, "OK", StatusOK.String())
	assert.Equal(t, "NoSuchKey", StatusNoSuchKey.String())
	assert.Equal(t, "SignatureDoesNotMatch", StatusSignatureDoesNotMatch.String())
	assert.Equal(t, "Unknown", Status(9999).String())
}
