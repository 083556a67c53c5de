// Package manifest defines the per-asset control record: the closed stage
// set, stage records with parameter fingerprints, the atomic JSON store, and
// the append-only provenance trail.
package manifest
