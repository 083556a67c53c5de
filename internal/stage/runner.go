package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"

	"assetizer/internal/asset"
	"assetizer/internal/logging"
	"assetizer/internal/manifest"
	"assetizer/internal/services"
)

// Output is what a stage producer hands back on success: asset-relative
// artifact references plus counters worth keeping in the manifest.
type Output struct {
	Refs    []string
	Metrics map[string]int64
}

// Producer computes one stage. It must write artifacts before returning and
// report them as relative refs; the runner owns all manifest bookkeeping.
type Producer func(ctx context.Context) (Output, error)

// Result summarizes a single Run call.
type Result struct {
	Stage    manifest.Stage
	Status   manifest.Status
	CacheHit bool
	Refs     []string
	Metrics  map[string]int64
	Duration time.Duration
	Err      error
}

// Runner executes stage producers with idempotence, locking, and provenance.
type Runner struct {
	logger *slog.Logger
}

func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{logger: logging.WithComponent(logger, "stage")}
}

// Run executes a stage for one asset. At most one run per (asset, stage) may
// be in flight; a second concurrent call fails fast with ErrBusy. A DONE
// record whose fingerprint matches params and whose artifacts all exist is
// trusted and skipped unless force is set. Failures are recorded on the
// manifest without discarding artifacts from an earlier successful run.
func (r *Runner) Run(ctx context.Context, layout asset.Layout, stage manifest.Stage, params map[string]string, force bool, produce Producer) (Result, error) {
	result := Result{Stage: stage}
	started := time.Now()

	if err := os.MkdirAll(layout.Locks(), 0o755); err != nil {
		result.Err = services.Wrap(services.ErrDataIntegrity, string(stage), "run", "ensure lock directory", err)
		return result, result.Err
	}
	lock := flock.New(layout.StageLock(string(stage)))
	locked, err := lock.TryLock()
	if err != nil {
		result.Err = services.Wrap(services.ErrDataIntegrity, string(stage), "run", "acquire stage lock", err)
		return result, result.Err
	}
	if !locked {
		result.Err = services.Wrap(services.ErrBusy, string(stage), "run",
			fmt.Sprintf("stage already running for %s", layout.ID), nil)
		return result, result.Err
	}
	defer lock.Unlock()

	m, err := manifest.Load(layout.Manifest())
	if err != nil {
		result.Err = err
		return result, err
	}

	ctx = services.WithAssetID(ctx, layout.ID)
	ctx = services.WithStage(ctx, string(stage))
	log := logging.WithContext(ctx, r.logger)

	fingerprint := manifest.Fingerprint(params)
	record := m.Record(stage)

	if !force && record.Status == manifest.StatusDone && record.Fingerprint == fingerprint {
		if missing := missingRefs(layout, record.OutputRefs); len(missing) == 0 {
			log.Info("cache hit", logging.String("fingerprint", shortFingerprint(fingerprint)))
			result.Status = manifest.StatusDone
			result.CacheHit = true
			result.Refs = record.OutputRefs
			result.Metrics = record.Metrics
			result.Duration = time.Since(started)
			return result, nil
		} else {
			log.Warn("done record with missing artifacts, recomputing",
				logging.String("missing", missing[0]))
		}
	}

	record.Status = manifest.StatusPending
	m.SetRecord(stage, record)
	if err := manifest.Save(layout.Manifest(), m); err != nil {
		result.Err = err
		return result, err
	}

	output, runErr := produce(ctx)
	result.Duration = time.Since(started)

	if runErr != nil {
		classified := classify(stage, runErr)
		record.Status = manifest.StatusError
		record.Error = classified.Error()
		record.Fingerprint = fingerprint
		// Prior refs stay: a failed rerun must not orphan artifacts the
		// last successful run produced.
		m.SetRecord(stage, record)
		if err := manifest.Save(layout.Manifest(), m); err != nil {
			result.Err = err
			return result, err
		}
		if err := manifest.AppendProvenance(layout.Provenance(), stage, fingerprint, manifest.OutcomeError, classified); err != nil {
			result.Err = err
			return result, err
		}
		log.Error("stage failed", logging.Error(classified), logging.Duration(logging.FieldDuration, result.Duration))
		result.Status = manifest.StatusError
		result.Err = classified
		return result, classified
	}

	record.Status = manifest.StatusDone
	record.Error = ""
	record.Fingerprint = fingerprint
	record.OutputRefs = output.Refs
	record.Metrics = output.Metrics
	m.SetRecord(stage, record)
	if err := manifest.Save(layout.Manifest(), m); err != nil {
		result.Err = err
		return result, err
	}
	if err := manifest.AppendProvenance(layout.Provenance(), stage, fingerprint, manifest.OutcomeDone, nil); err != nil {
		result.Err = err
		return result, err
	}

	log.Info("stage completed", logging.Duration(logging.FieldDuration, result.Duration))
	result.Status = manifest.StatusDone
	result.Refs = output.Refs
	result.Metrics = output.Metrics
	return result, nil
}

// RecordSkip notes a stage that could not run because a prerequisite failed.
// The manifest record is left untouched; only provenance carries the skip.
func (r *Runner) RecordSkip(layout asset.Layout, stage manifest.Stage, reason error) error {
	return manifest.AppendProvenance(layout.Provenance(), stage, "", manifest.OutcomeSkipped, reason)
}

func missingRefs(layout asset.Layout, refs []string) []string {
	var missing []string
	for _, ref := range refs {
		if _, err := os.Stat(layout.Path(ref)); err != nil {
			missing = append(missing, ref)
		}
	}
	return missing
}

// classify ensures every producer error carries a sentinel marker so the CLI
// and pipeline can decide between abort and continue.
func classify(stage manifest.Stage, err error) error {
	for _, marker := range []error{
		services.ErrConfiguration,
		services.ErrCollaborator,
		services.ErrDataIntegrity,
		services.ErrNotFound,
		services.ErrValidation,
		services.ErrBusy,
	} {
		if errors.Is(err, marker) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrCollaborator, string(stage), "run", "stage interrupted", err)
	}
	return services.Wrap(services.ErrCollaborator, string(stage), "run", "stage producer failed", err)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
