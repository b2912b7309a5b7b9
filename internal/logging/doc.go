// Package logging assembles structured slog loggers and attribute helpers
// used across eva components.
//
// It centralizes level and output plumbing (console/JSON formats, mirrored
// stdout + file output) and standardizes field keys so every component tags
// log lines with meeting IDs, speakers, and agents the same way. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
