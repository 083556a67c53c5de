package asset

import (
	"fmt"
	"path/filepath"
)

// Artifact file and directory names inside an asset directory. Paths stored
// in manifests are relative to the asset directory so the data dir can move.
const (
	ManifestFile   = "manifest.json"
	MetadataFile   = "metadata.json"
	ProvenanceFile = "provenance.jsonl"
	LockDir        = "locks"

	SourceAPIDir = "source_api"
	ViewFile     = "view.json"
	PlayURLFile  = "playurl.json"

	SourceDir = "source"
	VideoFile = "video.mp4"

	FramesDir         = "frames"
	FramesFile        = "frames.jsonl"
	FrameScoresFile   = "frame_scores.jsonl"
	TimelineFile      = "timeline.json"
	SelectedFile      = "selected.json"
	SelectedFramesDir = "frames_selected"

	OCRFile           = "frames_ocr.jsonl"
	OCRNormalizedFile = "frames_ocr_normalized.jsonl"

	AudioDir       = "audio"
	AudioFile      = "audio.wav"
	TranscriptFile = "transcript.jsonl"
)

// Layout resolves paths inside one asset directory.
type Layout struct {
	ID  string
	Dir string
}

// NewLayout builds the layout for an asset under the assets root.
func NewLayout(assetsDir, id string) Layout {
	return Layout{ID: id, Dir: filepath.Join(assetsDir, id)}
}

func (l Layout) Path(relative string) string { return filepath.Join(l.Dir, relative) }

func (l Layout) Manifest() string   { return l.Path(ManifestFile) }
func (l Layout) Metadata() string   { return l.Path(MetadataFile) }
func (l Layout) Provenance() string { return l.Path(ProvenanceFile) }
func (l Layout) Locks() string      { return l.Path(LockDir) }

func (l Layout) SourceAPI() string { return l.Path(SourceAPIDir) }
func (l Layout) View() string      { return filepath.Join(l.SourceAPI(), ViewFile) }
func (l Layout) PlayURL() string   { return filepath.Join(l.SourceAPI(), PlayURLFile) }

func (l Layout) Source() string { return l.Path(SourceDir) }
func (l Layout) Video() string  { return filepath.Join(l.Source(), VideoFile) }

func (l Layout) Frames() string         { return l.Path(FramesDir) }
func (l Layout) FrameRecords() string   { return l.Path(FramesFile) }
func (l Layout) FrameScores() string    { return l.Path(FrameScoresFile) }
func (l Layout) Timeline() string       { return l.Path(TimelineFile) }
func (l Layout) Selected() string       { return l.Path(SelectedFile) }
func (l Layout) SelectedFrames() string { return l.Path(SelectedFramesDir) }

func (l Layout) OCR() string           { return l.Path(OCRFile) }
func (l Layout) OCRNormalized() string { return l.Path(OCRNormalizedFile) }

func (l Layout) Audio() string      { return filepath.Join(l.Path(AudioDir), AudioFile) }
func (l Layout) Transcript() string { return l.Path(TranscriptFile) }

// FrameImage returns the path of the n-th extracted frame (1-based), matching
// the ffmpeg output template.
func (l Layout) FrameImage(n int) string {
	return filepath.Join(l.Frames(), fmt.Sprintf("frame_%06d.png", n))
}

// StageLock returns the lock file path guarding a stage run.
func (l Layout) StageLock(stage string) string {
	return filepath.Join(l.Locks(), stage+".lock")
}
