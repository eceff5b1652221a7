package obs

// Status is the outcome kind surfaced by a storage client implementation.
//
// The enumeration preserves the client library's split between kinds raised
// before any service reply (transport, DNS, SDK-internal) and kinds reported
// by the service itself. Classification relies on that ordering: everything
// at or after the first service-side kind maps to an HTTP class.
type Status int

const (
	StatusOK Status = iota

	// Transport / SDK-internal kinds. No HTTP reply reached the engine.
	StatusInternalError
	StatusOutOfMemory
	StatusInterrupted
	StatusNameLookupError
	StatusFailedToConnect
	StatusConnectionFailed
	StatusServerFailedVerification
	StatusAbortedByCallback
	StatusPartialFile
	StatusTimeout
	StatusInvalidParameter
	StatusOpenFileFailed
	StatusEmptyFile
	StatusNoToken

	statusFirstServiceError

	// Service-reported kinds.
	StatusAccessDenied
	StatusInvalidAccessKeyID
	StatusSignatureDoesNotMatch
	StatusInvalidSecurity
	StatusNoSuchBucket
	StatusNoSuchKey
	StatusNoSuchUpload
	StatusNoSuchVersion
	StatusBucketAlreadyExists
	StatusBucketAlreadyOwnedByYou
	StatusBucketNotEmpty
	StatusEntityTooSmall
	StatusEntityTooLarge
	StatusInvalidArgument
	StatusInvalidBucketName
	StatusInvalidPart
	StatusInvalidPartOrder
	StatusInvalidRange
	StatusMetadataTooLarge
	StatusMethodNotAllowed
	StatusPreconditionFailed
	StatusRequestTimeTooSkewed
	StatusServiceUnavailable
	StatusSlowDown
	StatusErrorUnknown

	statusCount
)

var statusNames = map[Status]string{
	StatusOK:                       "OK",
	StatusInternalError:            "InternalError",
	StatusOutOfMemory:              "OutOfMemory",
	StatusInterrupted:              "Interrupted",
	StatusNameLookupError:          "NameLookupError",
	StatusFailedToConnect:          "FailedToConnect",
	StatusConnectionFailed:         "ConnectionFailed",
	StatusServerFailedVerification: "ServerFailedVerification",
	StatusAbortedByCallback:        "AbortedByCallback",
	StatusPartialFile:              "PartialFile",
	StatusTimeout:                  "Timeout",
	StatusInvalidParameter:         "InvalidParameter",
	StatusOpenFileFailed:           "OpenFileFailed",
	StatusEmptyFile:                "EmptyFile",
	StatusNoToken:                  "NoToken",
	StatusAccessDenied:             "AccessDenied",
	StatusInvalidAccessKeyID:       "InvalidAccessKeyId",
	StatusSignatureDoesNotMatch:    "SignatureDoesNotMatch",
	StatusInvalidSecurity:          "InvalidSecurity",
	StatusNoSuchBucket:             "NoSuchBucket",
	StatusNoSuchKey:                "NoSuchKey",
	StatusNoSuchUpload:             "NoSuchUpload",
	StatusNoSuchVersion:            "NoSuchVersion",
	StatusBucketAlreadyExists:      "BucketAlreadyExists",
	StatusBucketAlreadyOwnedByYou:  "BucketAlreadyOwnedByYou",
	StatusBucketNotEmpty:           "BucketNotEmpty",
	StatusEntityTooSmall:           "EntityTooSmall",
	StatusEntityTooLarge:           "EntityTooLarge",
	StatusInvalidArgument:          "InvalidArgument",
	StatusInvalidBucketName:        "InvalidBucketName",
	StatusInvalidPart:              "InvalidPart",
	StatusInvalidPartOrder:         "InvalidPartOrder",
	StatusInvalidRange:             "InvalidRange",
	StatusMetadataTooLarge:         "MetadataTooLarge",
	StatusMethodNotAllowed:         "MethodNotAllowed",
	StatusPreconditionFailed:       "PreconditionFailed",
	StatusRequestTimeTooSkewed:     "RequestTimeTooSkewed",
	StatusServiceUnavailable:       "ServiceUnavailable",
	StatusSlowDown:                 "SlowDown",
	StatusErrorUnknown:             "ErrorUnknown",
}

// String returns the client library's name for the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// IsServiceError reports whether the status was reported by the service
// (as opposed to raised inside the transport or SDK).
func (s Status) IsServiceError() bool {
	return s > statusFirstServiceError && s < statusCount
}
