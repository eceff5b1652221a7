/*
Package s3obs implements the obs.Client boundary against any S3-compatible
endpoint using aws-sdk-go-v2.

The wrapper keeps the engine's contract intact: bodies stream through the
caller's callbacks (uploads via an io.Reader shim over the produce callback,
downloads chunked into the consume callback), SDK retries are disabled so
every invocation yields exactly one outcome, and smithy API error codes map
onto the obs.Status kinds the classifier buckets.

Connection behavior follows the run configuration: path-style addressing
against a custom endpoint, static credentials with an optional session token,
dial timeout, keep-alive toggle, and a per-operation deadline from the
request timeout. Mutual-TLS material from the configuration is loaded into
the transport; GM-mode cipher suites and encrypted private keys are outside
what the standard TLS stack expresses and are ignored.
*/
package s3obs
