package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for failure classification. Stage producers wrap their
// errors with one of these so the runner and CLI can decide how to react
// without inspecting message text.
var (
	// ErrConfiguration marks bad or missing parameters. Fatal: surfaced to
	// the caller before any partial write happens.
	ErrConfiguration = errors.New("configuration error")
	// ErrCollaborator marks a failed or malformed response from an external
	// tool or API. Recorded into the manifest; the pipeline may continue.
	ErrCollaborator = errors.New("collaborator error")
	// ErrDataIntegrity marks an on-disk artifact that is missing or stale
	// where the manifest claimed DONE.
	ErrDataIntegrity = errors.New("data integrity error")
	// ErrNotFound marks a referenced asset or stage that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input that fails a stage precondition.
	ErrValidation = errors.New("validation error")
	// ErrBusy marks a rejected duplicate run for an (asset, stage) pair.
	ErrBusy = errors.New("stage busy")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrCollaborator
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether an error must abort the run immediately instead of
// being recorded as a stage failure.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrNotFound)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
