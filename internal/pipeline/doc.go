// Package pipeline orchestrates the per-asset stage graph. It builds stage
// producers from configuration, enforces prerequisites between stages, and
// drives the runner for single-stage and sequential execution.
package pipeline
