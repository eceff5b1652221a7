package obs

// HTTP class buckets produced by Classify. ClassNone means no HTTP reply
// reached the engine (connection, DNS, timeout, SDK-internal).
const (
	ClassNone      = 0
	ClassOK        = 200
	ClassNoContent = 204
	ClassPartial   = 206
	ClassBadReq    = 400
	ClassForbidden = 403
	ClassNotFound  = 404
	ClassConflict  = 409
	ClassServerErr = 500
)

// Classify maps a client-library status onto its HTTP class bucket. The
// mapping is an inference: the client library does not expose raw HTTP
// status codes, so auth kinds bucket to 403, existence kinds to 404,
// bucket-state kinds to 409, server-side kinds to 500, any other
// service-reported kind to 400, and everything raised before a service reply
// to ClassNone.
func Classify(s Status) int {
	switch s {
	case StatusOK:
		return ClassOK
	case StatusAccessDenied, StatusInvalidAccessKeyID,
		StatusSignatureDoesNotMatch, StatusInvalidSecurity:
		return ClassForbidden
	case StatusNoSuchBucket, StatusNoSuchKey, StatusNoSuchUpload, StatusNoSuchVersion:
		return ClassNotFound
	case StatusBucketAlreadyExists, StatusBucketAlreadyOwnedByYou, StatusBucketNotEmpty:
		return ClassConflict
	case StatusInternalError, StatusServiceUnavailable, StatusSlowDown:
		return ClassServerErr
	}
	if s.IsServiceError() {
		return ClassBadReq
	}
	return ClassNone
}
