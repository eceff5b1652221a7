/*
Package bench is the concurrency and measurement engine: the worker pool that
generates object-storage requests, the adapter that drives the client's
streaming callbacks and verifies payloads against the deterministic pattern,
and the lock-free per-worker statistics the monitor samples.

One Worker runs one sequential request loop bound to a (user, slot, bucket)
tuple. Its iteration is: check termination, select the operation and object
size, synthesize the key, invoke the adapter, classify the outcome into
exactly one counter, append a trace record. Nothing in the hot path takes a
lock; each worker exclusively owns its counters, pattern buffer, and trace
stream.

The adapter owns the validation-failure counter. A corrupted or short
download increments it once and surfaces as a synthetic internal-error
status; the worker detects the counter delta and leaves classification
alone, so no outcome is ever counted twice.
*/
package bench
