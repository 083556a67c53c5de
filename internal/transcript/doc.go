// Package transcript numbers, merges, and persists transcript segments.
package transcript
