package manifest

import (
	"fmt"
	"time"
)

// Stage identifies one pipeline stage. The set is closed; the pipeline
// drives a typed table rather than dispatching on free-form strings.
type Stage string

const (
	StageSource       Stage = "source"
	StageFrames       Stage = "frames"
	StageTimeline     Stage = "timeline"
	StageSelect       Stage = "select"
	StageOCR          Stage = "ocr"
	StageOCRNormalize Stage = "ocr_normalize"
	StageTranscript   Stage = "transcript"
	StageIndex        Stage = "index"
)

// Stages lists every stage in pipeline order.
func Stages() []Stage {
	return []Stage{
		StageSource,
		StageFrames,
		StageTimeline,
		StageSelect,
		StageOCR,
		StageOCRNormalize,
		StageTranscript,
		StageIndex,
	}
}

// ParseStage validates a user-supplied stage name.
func ParseStage(name string) (Stage, error) {
	for _, stage := range Stages() {
		if string(stage) == name {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", name)
}

func (s Stage) String() string { return string(s) }

// Status tracks a stage record's lifecycle.
type Status string

const (
	StatusMissing Status = "missing"
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// StageRecord captures the persisted state of one stage run.
type StageRecord struct {
	Status      Status           `json:"status"`
	Fingerprint string           `json:"fingerprint,omitempty"`
	OutputRefs  []string         `json:"output_refs,omitempty"`
	Error       string           `json:"error,omitempty"`
	Metrics     map[string]int64 `json:"metrics,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Manifest is the per-asset control record. It is rewritten atomically as a
// whole; stage records are updated in place across reruns.
type Manifest struct {
	AssetID     string                 `json:"asset_id"`
	SourceURL   string                 `json:"source_url,omitempty"`
	Title       string                 `json:"title,omitempty"`
	DurationSec float64                `json:"duration_sec,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Stages      map[Stage]*StageRecord `json:"stages"`
}

// New creates a manifest with every stage at missing.
func New(assetID string) *Manifest {
	now := time.Now().UTC()
	m := &Manifest{
		AssetID:   assetID,
		CreatedAt: now,
		UpdatedAt: now,
		Stages:    make(map[Stage]*StageRecord, len(Stages())),
	}
	for _, stage := range Stages() {
		m.Stages[stage] = &StageRecord{Status: StatusMissing, UpdatedAt: now}
	}
	return m
}

// Record returns the record for a stage, creating a missing placeholder when
// an older manifest predates the stage.
func (m *Manifest) Record(stage Stage) *StageRecord {
	if m.Stages == nil {
		m.Stages = make(map[Stage]*StageRecord)
	}
	record, ok := m.Stages[stage]
	if !ok {
		record = &StageRecord{Status: StatusMissing, UpdatedAt: time.Now().UTC()}
		m.Stages[stage] = record
	}
	return record
}

// SetRecord replaces a stage record and bumps the manifest timestamp.
func (m *Manifest) SetRecord(stage Stage, record *StageRecord) {
	if m.Stages == nil {
		m.Stages = make(map[Stage]*StageRecord)
	}
	record.UpdatedAt = time.Now().UTC()
	m.Stages[stage] = record
	m.UpdatedAt = record.UpdatedAt
}

// StageDone reports whether a stage completed successfully.
func (m *Manifest) StageDone(stage Stage) bool {
	record, ok := m.Stages[stage]
	return ok && record.Status == StatusDone
}
