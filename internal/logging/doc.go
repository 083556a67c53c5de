// Package logging builds the structured loggers used across the daemonless
// CLI: a compact console format for interactive use and JSON for log
// shipping, both layered on log/slog.
package logging
