// Package services provides shared error classification and context helpers
// for the extraction pipeline and its external collaborators.
//
// Sentinel errors (ErrConfiguration, ErrCollaborator, ErrDataIntegrity,
// ErrNotFound, ErrValidation, ErrBusy) tag failures so the stage runner can
// record, skip, or abort without parsing message text. Wrap attaches stage
// and operation context while preserving the marker for errors.Is checks.
package services
