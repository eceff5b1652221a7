/*
Package obs defines the object-storage client boundary the load engine
drives.

The engine never talks to a wire protocol directly: it invokes a Client
implementation through per-operation methods that stream request and response
bodies through user-supplied callbacks. Two implementations ship with
osbench:

  - pkg/obs/memobs: an in-memory store used for tests and simulation runs
  - pkg/obs/s3obs: an S3-compatible client built on aws-sdk-go-v2

# Callback ordering

For every operation the callbacks fire in a fixed order: properties (zero or
one time, before any body bytes), data (many times), complete (exactly once,
last). Callbacks abort an in-flight transfer by returning a non-OK status
(download) or a non-positive byte count (upload); the engine uses this to
observe the process-wide shutdown flag mid-stream.

# Status kinds and classification

Status mirrors the client library's error enumeration, preserving the split
between transport/SDK kinds (no HTTP reply reached the engine) and
service-reported kinds. Classify buckets a status into the HTTP classes the
statistics subsystem counts: 200, 403, 404, 409, 400, 500, or 0 for the
transport group.
*/
package obs
