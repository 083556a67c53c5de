package frames

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"assetizer/internal/fileutil"
	"assetizer/internal/services"
)

// Record describes one sampled frame. Duplicates keep their record (with the
// original's id in DuplicateOf) but lose their file, so frame numbering stays
// stable across the timeline and selection stages.
type Record struct {
	FrameID     string `json:"frame_id"`
	TsMs        *int64 `json:"ts_ms"`
	Path        string `json:"path,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Source      string `json:"source"`
	IsDuplicate bool   `json:"is_duplicate"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

// FrameID formats the canonical frame identifier for a 1-based index.
func FrameID(n int) string { return fmt.Sprintf("KF_%06d", n) }

// WriteRecords persists frame records as JSONL, atomically.
func WriteRecords(path string, records []Record) error {
	var buf []byte
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return services.Wrap(services.ErrDataIntegrity, "frames", "write records", "encode record", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if err := fileutil.WriteFileAtomic(path, buf, 0o644); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "frames", "write records", "write jsonl", err)
	}
	return nil
}

// ReadRecords loads frame records from JSONL.
func ReadRecords(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "frames", "read records", "open jsonl", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, services.Wrap(services.ErrDataIntegrity, "frames", "read records", "decode record", err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "frames", "read records", "scan jsonl", err)
	}
	return records, nil
}

// Retained returns the records that still have a file on disk.
func Retained(records []Record) []Record {
	kept := make([]Record, 0, len(records))
	for _, record := range records {
		if !record.IsDuplicate {
			kept = append(kept, record)
		}
	}
	return kept
}
