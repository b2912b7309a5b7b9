// Package daemon runs the long-lived eva process: it enforces
// single-instance execution with a lock file, serves the websocket hub and
// the read-mostly HTTP API, and owns shutdown ordering so live sessions are
// persisted before the process exits.
package daemon
