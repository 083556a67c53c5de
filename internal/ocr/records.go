package ocr

import (
	"bufio"
	"encoding/json"
	"os"

	"assetizer/internal/fileutil"
	"assetizer/internal/services"
	"assetizer/internal/services/tesseract"
)

// RawRecord keeps the unprocessed word spans of one frame.
type RawRecord struct {
	FrameID string           `json:"frame_id"`
	TsMs    int64            `json:"ts_ms"`
	Spans   []tesseract.Span `json:"spans"`
}

// NormalizedRecord is one frame's reading-order text. Text may be empty; an
// explicit empty record distinguishes "nothing recognizable" from "not yet
// processed".
type NormalizedRecord struct {
	FrameID string   `json:"frame_id"`
	TsMs    int64    `json:"ts_ms"`
	Text    string   `json:"text"`
	Lines   []string `json:"lines"`
}

func writeJSONL[T any](path string, records []T, operation string) error {
	var buf []byte
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return services.Wrap(services.ErrDataIntegrity, "ocr", operation, "encode record", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if err := fileutil.WriteFileAtomic(path, buf, 0o644); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "ocr", operation, "write jsonl", err)
	}
	return nil
}

func readJSONL[T any](path string, operation string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "ocr", operation, "open jsonl", err)
	}
	defer file.Close()

	var records []T
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record T
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, services.Wrap(services.ErrDataIntegrity, "ocr", operation, "decode record", err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "ocr", operation, "scan jsonl", err)
	}
	return records, nil
}

func WriteRawRecords(path string, records []RawRecord) error {
	return writeJSONL(path, records, "write raw")
}

func ReadRawRecords(path string) ([]RawRecord, error) {
	return readJSONL[RawRecord](path, "read raw")
}

func WriteNormalizedRecords(path string, records []NormalizedRecord) error {
	return writeJSONL(path, records, "write normalized")
}

func ReadNormalizedRecords(path string) ([]NormalizedRecord, error) {
	return readJSONL[NormalizedRecord](path, "read normalized")
}
