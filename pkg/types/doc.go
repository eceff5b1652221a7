/*
Package types defines the shared data model of osbench.

The package is intentionally dependency-free so that every other package can
import it without pulling in SDK or tooling dependencies. It holds the
validated run configuration, user credentials, test case codes and parsed
byte-range specifications.

Config is immutable after pkg/config.Load returns: workers, the monitor and
the supervisor all read it concurrently without locking.
*/
package types
