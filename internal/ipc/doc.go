// Package ipc provides JSON-RPC daemon control over a Unix domain socket,
// used by the eva CLI to query history and stop the daemon.
package ipc
