package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"assetizer/internal/services"
)

func TestNewManifestHasAllStages(t *testing.T) {
	m := New("BV1vCzDBYEEa")
	if m.AssetID != "BV1vCzDBYEEa" {
		t.Fatalf("AssetID = %q", m.AssetID)
	}
	for _, stage := range Stages() {
		record, ok := m.Stages[stage]
		if !ok {
			t.Fatalf("stage %s missing from new manifest", stage)
		}
		if record.Status != StatusMissing {
			t.Fatalf("stage %s status = %s, want missing", stage, record.Status)
		}
	}
}

func TestParseStage(t *testing.T) {
	stage, err := ParseStage("ocr_normalize")
	if err != nil {
		t.Fatalf("ParseStage: %v", err)
	}
	if stage != StageOCRNormalize {
		t.Fatalf("stage = %s", stage)
	}
	if _, err := ParseStage("bogus"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	m := New("BV1vCzDBYEEa")
	m.Title = "demo"
	m.SetRecord(StageFrames, &StageRecord{
		Status:      StatusDone,
		Fingerprint: "abc123",
		OutputRefs:  []string{"frames.jsonl"},
		Metrics:     map[string]int64{"frame_count": 19},
	})
	if err := Save(path, m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Title != "demo" {
		t.Fatalf("Title = %q", loaded.Title)
	}
	record := loaded.Record(StageFrames)
	if record.Status != StatusDone || record.Fingerprint != "abc123" {
		t.Fatalf("frames record = %+v", record)
	}
	if record.Metrics["frame_count"] != 19 {
		t.Fatalf("frame_count metric = %d", record.Metrics["frame_count"])
	}
	if !loaded.StageDone(StageFrames) || loaded.StageDone(StageIndex) {
		t.Fatal("StageDone mismatch")
	}
}

func TestLoadMissingIsNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "manifest.json"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadCorruptIsDataIntegrity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !errors.Is(err, services.ErrDataIntegrity) {
		t.Fatalf("expected ErrDataIntegrity, got %v", err)
	}
}

func TestRecordCreatesPlaceholderForOlderManifest(t *testing.T) {
	m := &Manifest{AssetID: "BV1vCzDBYEEa"}
	record := m.Record(StageIndex)
	if record == nil || record.Status != StatusMissing {
		t.Fatalf("placeholder record = %+v", record)
	}
}

func TestFingerprintStableAndSensitive(t *testing.T) {
	a := Fingerprint(map[string]string{"interval_sec": "3", "max_width": "768"})
	b := Fingerprint(map[string]string{"max_width": "768", "interval_sec": "3"})
	if a != b {
		t.Fatal("fingerprint depends on key order")
	}
	c := Fingerprint(map[string]string{"interval_sec": "5", "max_width": "768"})
	if a == c {
		t.Fatal("fingerprint did not change with parameter value")
	}
	if len(a) != 64 {
		t.Fatalf("fingerprint length = %d", len(a))
	}
}

func TestProvenanceAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provenance.jsonl")

	if err := AppendProvenance(path, StageFrames, "fp1", OutcomeDone, nil); err != nil {
		t.Fatalf("append done: %v", err)
	}
	if err := AppendProvenance(path, StageOCR, "fp2", OutcomeError, errors.New("tesseract exited 1")); err != nil {
		t.Fatalf("append error: %v", err)
	}

	entries, err := ReadProvenance(path)
	if err != nil {
		t.Fatalf("ReadProvenance: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Stage != StageFrames || entries[0].Outcome != OutcomeDone {
		t.Fatalf("first entry = %+v", entries[0])
	}
	if entries[1].Error != "tesseract exited 1" {
		t.Fatalf("second entry error = %q", entries[1].Error)
	}
	if entries[0].EntryID == "" || entries[0].EntryID == entries[1].EntryID {
		t.Fatal("entry ids must be unique and non-empty")
	}
}

func TestReadProvenanceMissingIsEmpty(t *testing.T) {
	entries, err := ReadProvenance(filepath.Join(t.TempDir(), "provenance.jsonl"))
	if err != nil {
		t.Fatalf("ReadProvenance: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(entries))
	}
}
