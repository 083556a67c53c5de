package ocr

import (
	"path/filepath"
	"reflect"
	"testing"

	"assetizer/internal/services/tesseract"
)

func span(text string, left, top, height int, conf float64) tesseract.Span {
	return tesseract.Span{Text: text, Left: left, Top: top, Width: len(text) * 12, Height: height, Conf: conf}
}

func TestNormalizeClustersLines(t *testing.T) {
	spans := []tesseract.Span{
		// First visual line, out of horizontal order.
		span("world", 120, 20, 24, 95),
		span("Hello", 10, 22, 24, 96),
		// Second visual line, clearly below.
		span("second", 10, 80, 24, 90),
		span("line", 110, 78, 24, 92),
	}

	lines := Normalize(spans, NormalizeParams{MinConfidence: 40})
	want := []string{"Hello world", "second line"}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
}

func TestNormalizeFiltersLowConfidence(t *testing.T) {
	spans := []tesseract.Span{
		span("kept", 10, 20, 24, 80),
		span("noise", 120, 20, 24, 12),
	}

	lines := Normalize(spans, NormalizeParams{MinConfidence: 40})
	if !reflect.DeepEqual(lines, []string{"kept"}) {
		t.Fatalf("lines = %v", lines)
	}
}

func TestNormalizeAllFilteredIsEmptyNotNil(t *testing.T) {
	spans := []tesseract.Span{span("noise", 10, 20, 24, 5)}

	lines := Normalize(spans, NormalizeParams{MinConfidence: 40})
	if lines == nil || len(lines) != 0 {
		t.Fatalf("lines = %#v, want empty slice", lines)
	}
}

func TestNormalizeFoldsFullWidthText(t *testing.T) {
	spans := []tesseract.Span{span("ＡＢＣ１２３", 10, 20, 24, 90)}

	lines := Normalize(spans, NormalizeParams{})
	if !reflect.DeepEqual(lines, []string{"ABC123"}) {
		t.Fatalf("lines = %v", lines)
	}
}

func TestNormalizeToleranceScalesWithSpanHeight(t *testing.T) {
	// Large glyphs: centers 15 apart must still cluster into one line
	// because the tolerance follows the median height (0.6 * 50 = 30).
	spans := []tesseract.Span{
		span("big", 10, 10, 50, 90),
		span("title", 100, 25, 50, 90),
		// Small glyphs far below form their own line.
		span("caption", 10, 200, 12, 90),
	}

	lines := Normalize(spans, NormalizeParams{})
	want := []string{"big title", "caption"}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
}

func TestJoinLines(t *testing.T) {
	if got := JoinLines([]string{"a", "b"}); got != "a\nb" {
		t.Fatalf("JoinLines = %q", got)
	}
	if got := JoinLines(nil); got != "" {
		t.Fatalf("JoinLines(nil) = %q", got)
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	raw := []RawRecord{
		{FrameID: "KF_000001", TsMs: 18000, Spans: []tesseract.Span{span("Hello", 10, 20, 24, 96)}},
		{FrameID: "KF_000002", TsMs: 21000, Spans: []tesseract.Span{}},
	}
	rawPath := filepath.Join(dir, "frames_ocr.jsonl")
	if err := WriteRawRecords(rawPath, raw); err != nil {
		t.Fatalf("WriteRawRecords: %v", err)
	}
	loadedRaw, err := ReadRawRecords(rawPath)
	if err != nil {
		t.Fatalf("ReadRawRecords: %v", err)
	}
	if len(loadedRaw) != 2 || loadedRaw[0].Spans[0].Text != "Hello" {
		t.Fatalf("loadedRaw = %+v", loadedRaw)
	}
	if len(loadedRaw[1].Spans) != 0 {
		t.Fatalf("empty span list must survive: %+v", loadedRaw[1])
	}

	normalized := []NormalizedRecord{
		{FrameID: "KF_000001", TsMs: 18000, Text: "Hello", Lines: []string{"Hello"}},
		{FrameID: "KF_000002", TsMs: 21000, Text: "", Lines: []string{}},
	}
	normPath := filepath.Join(dir, "frames_ocr_normalized.jsonl")
	if err := WriteNormalizedRecords(normPath, normalized); err != nil {
		t.Fatalf("WriteNormalizedRecords: %v", err)
	}
	loadedNorm, err := ReadNormalizedRecords(normPath)
	if err != nil {
		t.Fatalf("ReadNormalizedRecords: %v", err)
	}
	if len(loadedNorm) != 2 || loadedNorm[1].Text != "" {
		t.Fatalf("empty text must be recorded explicitly: %+v", loadedNorm)
	}
}
