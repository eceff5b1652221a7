package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketFor(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		cred   UserCredential
		bucket string
	}{
		{
			name:   "fixed name wins",
			cfg:    Config{BucketNameFixed: "fixed", BucketNamePrefix: "bench"},
			cred:   UserCredential{OriginalAK: "AKA"},
			bucket: "fixed",
		},
		{
			name:   "ak lowercased and joined with prefix",
			cfg:    Config{BucketNamePrefix: "bench"},
			cred:   UserCredential{OriginalAK: "AKA"},
			bucket: "aka.bench",
		},
		{
			name:   "ak alone",
			cfg:    Config{},
			cred:   UserCredential{OriginalAK: "MixedCaseAK"},
			bucket: "mixedcaseak",
		},
		{
			name:   "prefix alone",
			cfg:    Config{BucketNamePrefix: "bench"},
			cred:   UserCredential{},
			bucket: "bench",
		},
		{
			name:   "nothing configured",
			cfg:    Config{},
			cred:   UserCredential{},
			bucket: "default-bench-bucket",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.bucket, tt.cfg.BucketFor(&tt.cred))
		})
	}
}

func TestNeedsUploadFile(t *testing.T) {
	assert.True(t, (&Config{TestCase: CaseResumable}).NeedsUploadFile())
	assert.True(t, (&Config{UseMixMode: true, MixOps: []int{CasePut, CaseResumable}}).NeedsUploadFile())
	assert.False(t, (&Config{TestCase: CasePut}).NeedsUploadFile())
	assert.False(t, (&Config{UseMixMode: true, MixOps: []int{CasePut, CaseGet}}).NeedsUploadFile())
}

func TestCaseName(t *testing.T) {
	assert.Equal(t, "PUT", CaseName(CasePut))
	assert.Equal(t, "MULTIPART", CaseName(CaseMultipart))
	assert.Equal(t, "MIX", CaseName(CaseMix))
	assert.Equal(t, "UNKNOWN", CaseName(999))
}
