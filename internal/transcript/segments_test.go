package transcript

import (
	"path/filepath"
	"reflect"
	"testing"

	"assetizer/internal/services/transcriber"
)

func TestFromRawNumbersAndConverts(t *testing.T) {
	raw := []transcriber.Segment{
		{Start: 0, End: 28.5, Text: "  first   part "},
		{Start: 28.5, End: 41.2, Text: "second"},
		{Start: 41.2, End: 45, Text: "   "},
	}

	segments := FromRaw(raw)
	if len(segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(segments))
	}
	if segments[0].SegmentID != "SEG_000001" || segments[1].SegmentID != "SEG_000002" {
		t.Fatalf("ids = %s, %s", segments[0].SegmentID, segments[1].SegmentID)
	}
	if segments[0].StartMs != 0 || segments[0].EndMs != 28500 {
		t.Fatalf("bounds = %d..%d", segments[0].StartMs, segments[0].EndMs)
	}
	if segments[0].Text != "first part" {
		t.Fatalf("text = %q", segments[0].Text)
	}
}

func TestFromRawEmpty(t *testing.T) {
	segments := FromRaw(nil)
	if segments == nil || len(segments) != 0 {
		t.Fatalf("segments = %#v, want empty non-nil", segments)
	}
}

func TestMergeAdjacentWithinBudget(t *testing.T) {
	segments := []Segment{
		{SegmentID: "SEG_000001", StartMs: 0, EndMs: 5000, Text: "aaaa"},
		{SegmentID: "SEG_000002", StartMs: 5000, EndMs: 9000, Text: "bbbb"},
		{SegmentID: "SEG_000003", StartMs: 9000, EndMs: 14000, Text: "cccc"},
	}

	merged := Merge(segments, 9)
	if len(merged) != 2 {
		t.Fatalf("merged = %+v", merged)
	}
	if merged[0].Text != "aaaa bbbb" || merged[0].StartMs != 0 || merged[0].EndMs != 9000 {
		t.Fatalf("first merged = %+v", merged[0])
	}
	// Merged segments keep their first constituent's id so the result still
	// resolves against the persisted transcript.
	if merged[0].SegmentID != "SEG_000001" {
		t.Fatalf("first merged id = %s", merged[0].SegmentID)
	}
	if merged[1].Text != "cccc" || merged[1].SegmentID != "SEG_000003" {
		t.Fatalf("second merged = %+v", merged[1])
	}
}

func TestMergeDisabled(t *testing.T) {
	segments := []Segment{
		{SegmentID: "SEG_000001", Text: "a"},
		{SegmentID: "SEG_000002", Text: "b"},
	}
	if got := Merge(segments, 0); !reflect.DeepEqual(got, segments) {
		t.Fatalf("merge disabled should be identity: %+v", got)
	}
}

func TestMergeSingleSegment(t *testing.T) {
	segments := []Segment{{SegmentID: "SEG_000001", StartMs: 0, EndMs: 1000, Text: "only"}}
	merged := Merge(segments, 100)
	if len(merged) != 1 || merged[0].Text != "only" {
		t.Fatalf("merged = %+v", merged)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	segments := []Segment{
		{SegmentID: "SEG_000001", StartMs: 0, EndMs: 28000, Text: "hello"},
		{SegmentID: "SEG_000002", StartMs: 28000, EndMs: 41000, Text: "world"},
	}
	if err := Write(path, segments); err != nil {
		t.Fatalf("Write: %v", err)
	}
	loaded, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(loaded, segments) {
		t.Fatalf("loaded = %+v", loaded)
	}
}

func TestWriteEmptyTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	if err := Write(path, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	loaded, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("loaded = %+v", loaded)
	}
}
