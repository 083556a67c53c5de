package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"assetizer/internal/fileutil"
	"assetizer/internal/services"
	"assetizer/internal/services/transcriber"
	"assetizer/internal/textutil"
)

// Segment is one persisted transcript segment.
type Segment struct {
	SegmentID string `json:"segment_id"`
	StartMs   int64  `json:"start_ms"`
	EndMs     int64  `json:"end_ms"`
	Text      string `json:"text"`
}

// SegmentID formats the canonical segment identifier for a 1-based index.
func SegmentID(n int) string { return fmt.Sprintf("SEG_%06d", n) }

// FromRaw converts transcriber output into numbered segments with
// millisecond bounds and normalized text. Empty input yields an empty slice.
func FromRaw(raw []transcriber.Segment) []Segment {
	segments := make([]Segment, 0, len(raw))
	for _, segment := range raw {
		text := textutil.NormalizeSpace(segment.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			SegmentID: SegmentID(len(segments) + 1),
			StartMs:   int64(math.Round(segment.Start * 1000)),
			EndMs:     int64(math.Round(segment.End * 1000)),
			Text:      text,
		})
	}
	return segments
}

// Merge joins adjacent segments while the combined text stays within
// maxChars. A merged segment keeps the id of its first constituent, so the
// result still resolves against the persisted transcript. Merged bounds span
// from the first segment's start to the last's end. maxChars <= 0 disables
// merging.
func Merge(segments []Segment, maxChars int) []Segment {
	if maxChars <= 0 || len(segments) == 0 {
		return segments
	}

	merged := make([]Segment, 0, len(segments))
	current := segments[0]
	for _, segment := range segments[1:] {
		combined := current.Text + " " + segment.Text
		if len(combined) <= maxChars {
			current.Text = combined
			current.EndMs = segment.EndMs
			continue
		}
		merged = append(merged, current)
		current = segment
	}
	return append(merged, current)
}

// Write persists segments as JSONL, atomically.
func Write(path string, segments []Segment) error {
	var buf []byte
	for _, segment := range segments {
		line, err := json.Marshal(segment)
		if err != nil {
			return services.Wrap(services.ErrDataIntegrity, "transcript", "write", "encode segment", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if err := fileutil.WriteFileAtomic(path, buf, 0o644); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "transcript", "write", "write jsonl", err)
	}
	return nil
}

// Read loads segments from JSONL.
func Read(path string) ([]Segment, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "transcript", "read", "open jsonl", err)
	}
	defer file.Close()

	var segments []Segment
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var segment Segment
		if err := json.Unmarshal([]byte(line), &segment); err != nil {
			return nil, services.Wrap(services.ErrDataIntegrity, "transcript", "read", "decode segment", err)
		}
		segments = append(segments, segment)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "transcript", "read", "scan jsonl", err)
	}
	return segments, nil
}
