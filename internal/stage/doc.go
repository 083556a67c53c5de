// Package stage runs individual pipeline stages with parameter
// fingerprinting, per-stage file locks, and provenance recording.
package stage
