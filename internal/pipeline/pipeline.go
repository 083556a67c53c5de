package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"assetizer/internal/asset"
	"assetizer/internal/config"
	"assetizer/internal/evidence"
	"assetizer/internal/manifest"
	"assetizer/internal/services"
	"assetizer/internal/services/fetcher"
	"assetizer/internal/services/ffmpeg"
	"assetizer/internal/services/tesseract"
	"assetizer/internal/services/transcriber"
	"assetizer/internal/stage"
)

// Pipeline wires configuration, external tools, and the evidence store into
// runnable stages for one or more assets.
type Pipeline struct {
	cfg    *config.Config
	store  *evidence.Store
	runner *stage.Runner
	media  *ffmpeg.Client
	engine *tesseract.Client
	asr    transcriber.Transcriber
	fetch  *fetcher.Client
	logger *slog.Logger

	// localSource, when set, makes the source stage copy a local file
	// instead of downloading a stream.
	localSource string
}

// New builds a pipeline with clients constructed from configuration.
func New(cfg *config.Config, store *evidence.Store, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		store:  store,
		runner: stage.NewRunner(logger),
		media:  ffmpeg.New(cfg.FFmpegBinary(), cfg.FFprobeBinary()),
		engine: tesseract.New(cfg.TesseractBinary(), cfg.OCR.Language, cfg.OCR.PageSegMode, time.Duration(cfg.OCR.Timeout)*time.Second),
		asr:    transcriber.NewCLI(cfg.TranscriberBinary(), cfg.Transcript.Model, time.Duration(cfg.Transcript.Timeout)*time.Second),
		fetch:  fetcher.New(cfg.Fetcher.BaseURL, time.Duration(cfg.Fetcher.RequestTimeout)*time.Second),
		logger: logger,
	}
}

// Media exposes the ffmpeg client so tests can install a stub runner.
func (p *Pipeline) Media() *ffmpeg.Client { return p.media }

// Engine exposes the recognition client so tests can install a stub runner.
func (p *Pipeline) Engine() *tesseract.Client { return p.engine }

// WithTranscriber replaces the transcription provider.
func (p *Pipeline) WithTranscriber(t transcriber.Transcriber) { p.asr = t }

// WithFetcher replaces the metadata client.
func (p *Pipeline) WithFetcher(c *fetcher.Client) { p.fetch = c }

// WithLocalSource points the source stage at an already-downloaded file.
func (p *Pipeline) WithLocalSource(path string) { p.localSource = path }

// QueryTopK returns the configured default result count for queries.
func (p *Pipeline) QueryTopK() int { return p.cfg.Query.TopK }

// Layout returns the artifact layout for an asset under the configured
// assets directory.
func (p *Pipeline) Layout(assetID string) asset.Layout {
	return asset.NewLayout(p.cfg.AssetsDir(), assetID)
}

// prerequisites lists, per stage, the stages that must be done before it can
// run. The index stage has none: it consumes whatever evidence artifacts
// exist, so a transcript-only or OCR-only asset still indexes.
var prerequisites = map[manifest.Stage][]manifest.Stage{
	manifest.StageSource:       nil,
	manifest.StageFrames:       {manifest.StageSource},
	manifest.StageTimeline:     {manifest.StageFrames},
	manifest.StageSelect:       {manifest.StageTimeline},
	manifest.StageOCR:          {manifest.StageSelect},
	manifest.StageOCRNormalize: {manifest.StageOCR},
	manifest.StageTranscript:   {manifest.StageSource},
	manifest.StageIndex:        nil,
}

// RunStage executes a single stage for an asset, enforcing that the asset is
// ingested and that prerequisite stages are done.
func (p *Pipeline) RunStage(ctx context.Context, assetID string, st manifest.Stage, force bool) (stage.Result, error) {
	layout := p.Layout(assetID)

	m, err := manifest.Load(layout.Manifest())
	if err != nil {
		return stage.Result{Stage: st}, err
	}
	for _, prereq := range prerequisites[st] {
		if !m.StageDone(prereq) {
			return stage.Result{Stage: st}, services.Wrap(services.ErrValidation, st.String(), "run",
				fmt.Sprintf("prerequisite stage %s is not done", prereq), nil)
		}
	}

	return p.runner.Run(ctx, layout, st, p.stageParams(st), force, p.producer(st, layout))
}

// Outcome is one stage's result within a sequential run.
type Outcome struct {
	Stage      manifest.Stage
	Status     manifest.Status
	CacheHit   bool
	SkipReason string
	Duration   time.Duration
	Err        error
}

// RunSequence runs stages in pipeline order up to and including until. A
// stage whose prerequisite failed or was skipped earlier in the run is
// recorded as skipped rather than attempted; with stopOnError the run aborts
// at the first failure instead.
func (p *Pipeline) RunSequence(ctx context.Context, assetID string, until manifest.Stage, force, stopOnError bool) ([]Outcome, error) {
	layout := p.Layout(assetID)
	if _, err := manifest.Load(layout.Manifest()); err != nil {
		return nil, err
	}

	var outcomes []Outcome
	unavailable := map[manifest.Stage]bool{}
	for _, st := range manifest.Stages() {
		if blocked := blockedBy(st, unavailable); blocked != "" {
			reason := fmt.Errorf("prerequisite stage %s did not complete in this run", blocked)
			if err := p.runner.RecordSkip(layout, st, reason); err != nil {
				return outcomes, err
			}
			outcomes = append(outcomes, Outcome{Stage: st, Status: manifest.StatusMissing, SkipReason: reason.Error()})
			unavailable[st] = true
		} else {
			result, err := p.runner.Run(ctx, layout, st, p.stageParams(st), force, p.producer(st, layout))
			outcome := Outcome{
				Stage:    st,
				Status:   result.Status,
				CacheHit: result.CacheHit,
				Duration: result.Duration,
				Err:      err,
			}
			outcomes = append(outcomes, outcome)
			if err != nil {
				unavailable[st] = true
				if stopOnError {
					return outcomes, err
				}
			}
		}
		if st == until {
			break
		}
	}
	return outcomes, nil
}

func blockedBy(st manifest.Stage, unavailable map[manifest.Stage]bool) manifest.Stage {
	for _, prereq := range prerequisites[st] {
		if unavailable[prereq] {
			return prereq
		}
	}
	return ""
}

// stageParams returns the fingerprint inputs for a stage: every parameter
// whose change must invalidate the cached result.
func (p *Pipeline) stageParams(st manifest.Stage) map[string]string {
	switch st {
	case manifest.StageSource:
		if p.localSource != "" {
			return map[string]string{"mode": "local", "file": p.localSource}
		}
		return map[string]string{"mode": "remote"}
	case manifest.StageFrames:
		return p.frameParams().Fingerprint()
	case manifest.StageTimeline:
		return map[string]string{"bucket_sec": strconv.Itoa(p.cfg.Timeline.BucketSec)}
	case manifest.StageSelect:
		return map[string]string{
			"top_buckets": strconv.Itoa(p.cfg.Select.TopBuckets),
			"max_frames":  strconv.Itoa(p.cfg.Select.MaxFrames),
		}
	case manifest.StageOCR:
		return map[string]string{
			"language": p.cfg.OCR.Language,
			"psm":      strconv.Itoa(p.cfg.OCR.PageSegMode),
		}
	case manifest.StageOCRNormalize:
		return map[string]string{
			"min_confidence": strconv.FormatFloat(p.cfg.OCR.MinConfidence, 'f', -1, 64),
		}
	case manifest.StageTranscript:
		return map[string]string{"model": p.cfg.Transcript.Model}
	case manifest.StageIndex:
		return map[string]string{
			"merge_segments":  strconv.FormatBool(p.cfg.Index.MergeSegments),
			"merge_max_chars": strconv.Itoa(p.cfg.Index.MergeMaxChars),
		}
	}
	return nil
}

func (p *Pipeline) producer(st manifest.Stage, layout asset.Layout) stage.Producer {
	switch st {
	case manifest.StageSource:
		return p.produceSource(layout)
	case manifest.StageFrames:
		return p.produceFrames(layout)
	case manifest.StageTimeline:
		return p.produceTimeline(layout)
	case manifest.StageSelect:
		return p.produceSelect(layout)
	case manifest.StageOCR:
		return p.produceOCR(layout)
	case manifest.StageOCRNormalize:
		return p.produceOCRNormalize(layout)
	case manifest.StageTranscript:
		return p.produceTranscript(layout)
	case manifest.StageIndex:
		return p.produceIndex(layout)
	}
	return func(context.Context) (stage.Output, error) {
		return stage.Output{}, services.Wrap(services.ErrConfiguration, st.String(), "run", "no producer for stage", nil)
	}
}
