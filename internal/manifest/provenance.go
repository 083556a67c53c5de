package manifest

import (
	"bufio"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"assetizer/internal/services"
)

// Outcome is the terminal result of one stage attempt.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

// ProvenanceEntry is one line of the append-only provenance trail.
type ProvenanceEntry struct {
	EntryID     string    `json:"entry_id"`
	Stage       Stage     `json:"stage"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Outcome     Outcome   `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// AppendProvenance appends one entry to the asset's provenance log. The log
// is never rewritten; rerun history stays inspectable after the manifest has
// moved on.
func AppendProvenance(path string, stage Stage, fingerprint string, outcome Outcome, runErr error) error {
	entry := ProvenanceEntry{
		EntryID:     uuid.NewString(),
		Stage:       stage,
		Fingerprint: fingerprint,
		Outcome:     outcome,
		At:          time.Now().UTC(),
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrDataIntegrity, string(stage), "provenance", "ensure asset directory", err)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return services.Wrap(services.ErrDataIntegrity, string(stage), "provenance", "encode entry", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return services.Wrap(services.ErrDataIntegrity, string(stage), "provenance", "open log", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return services.Wrap(services.ErrDataIntegrity, string(stage), "provenance", "append entry", err)
	}
	return file.Sync()
}

// ReadProvenance loads all entries; a missing log is an empty history.
func ReadProvenance(path string) ([]ProvenanceEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrDataIntegrity, "", "provenance", "open log", err)
	}
	defer file.Close()

	var entries []ProvenanceEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry ProvenanceEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, services.Wrap(services.ErrDataIntegrity, "", "provenance", "decode entry", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "", "provenance", "scan log", err)
	}
	return entries, nil
}
