package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"

	"assetizer/internal/asset"
	"assetizer/internal/fileutil"
	"assetizer/internal/logging"
	"assetizer/internal/manifest"
	"assetizer/internal/services"
	"assetizer/internal/services/fetcher"
)

// IngestResult reports what ingestion established for an asset.
type IngestResult struct {
	AssetID         string
	SourceURL       string
	Title           string
	DurationSec     float64
	Created         bool
	MetadataFetched bool
	FetchErr        error
}

// Ingest registers an asset from a URL or bare id: it resolves the canonical
// id, creates the artifact directory and manifest, and records the asset in
// the evidence store. Metadata fetching is best effort; an unreachable API
// leaves a registered asset that a later source run can still complete.
func (p *Pipeline) Ingest(ctx context.Context, input string) (IngestResult, error) {
	id, err := asset.ExtractID(input)
	if err != nil {
		return IngestResult{}, err
	}

	layout := p.Layout(id)
	if err := os.MkdirAll(layout.Dir, 0o755); err != nil {
		return IngestResult{}, services.Wrap(services.ErrDataIntegrity, "ingest", "run", "create asset directory", err)
	}

	result := IngestResult{AssetID: id, SourceURL: asset.CanonicalURL(id)}
	m, err := manifest.Load(layout.Manifest())
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNotFound):
		m = manifest.New(id)
		result.Created = true
	default:
		return result, err
	}
	m.SourceURL = result.SourceURL

	meta, fetchErr := p.fetch.Fetch(ctx, id)
	if fetchErr != nil {
		result.FetchErr = fetchErr
		p.logger.Warn("metadata fetch failed, asset registered without it",
			logging.String(logging.FieldAsset, id), logging.Error(fetchErr))
		if err := manifest.AppendProvenance(layout.Provenance(), manifest.StageSource, "", manifest.OutcomeSkipped, fetchErr); err != nil {
			return result, err
		}
	} else {
		result.MetadataFetched = true
		m.Title = meta.Title
		m.DurationSec = float64(meta.DurationSec)
		if err := os.MkdirAll(layout.SourceAPI(), 0o755); err != nil {
			return result, services.Wrap(services.ErrDataIntegrity, "ingest", "run", "create api directory", err)
		}
		if err := fileutil.WriteFileAtomic(layout.View(), meta.Raw, 0o644); err != nil {
			return result, services.Wrap(services.ErrDataIntegrity, "ingest", "run", "write view response", err)
		}
		if err := SaveMetadata(layout, meta); err != nil {
			return result, err
		}
	}
	result.Title = m.Title
	result.DurationSec = m.DurationSec

	if err := manifest.Save(layout.Manifest(), m); err != nil {
		return result, err
	}
	fingerprint := manifest.Fingerprint(map[string]string{
		"video_id": id,
		"title":    m.Title,
		"duration": strconv.FormatFloat(m.DurationSec, 'f', -1, 64),
	})
	if err := p.store.UpsertAsset(ctx, id, m.SourceURL, m.Title, fingerprint); err != nil {
		return result, err
	}
	return result, nil
}

// SaveMetadata writes the parsed metadata document for an asset.
func SaveMetadata(layout asset.Layout, meta fetcher.Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrDataIntegrity, "ingest", "run", "encode metadata", err)
	}
	if err := fileutil.WriteFileAtomic(layout.Metadata(), append(data, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "ingest", "run", "write metadata", err)
	}
	return nil
}

// StageStatus is one row of an asset status report.
type StageStatus struct {
	Stage       manifest.Stage   `json:"stage"`
	Status      manifest.Status  `json:"status"`
	Fingerprint string           `json:"fingerprint,omitempty"`
	Error       string           `json:"error,omitempty"`
	Metrics     map[string]int64 `json:"metrics,omitempty"`
	UpdatedAt   string           `json:"updated_at,omitempty"`
}

// AssetStatus is the full status report for one asset.
type AssetStatus struct {
	AssetID     string           `json:"asset_id"`
	SourceURL   string           `json:"source_url,omitempty"`
	Title       string           `json:"title,omitempty"`
	DurationSec float64          `json:"duration_sec,omitempty"`
	Stages      []StageStatus    `json:"stages"`
	Units       map[string]int64 `json:"units,omitempty"`
}

// Show reports manifest stage state and indexed unit counts for an asset.
func (p *Pipeline) Show(ctx context.Context, assetID string) (AssetStatus, error) {
	layout := p.Layout(assetID)
	m, err := manifest.Load(layout.Manifest())
	if err != nil {
		return AssetStatus{}, err
	}

	status := AssetStatus{
		AssetID:     m.AssetID,
		SourceURL:   m.SourceURL,
		Title:       m.Title,
		DurationSec: m.DurationSec,
	}
	for _, st := range manifest.Stages() {
		record := m.Record(st)
		row := StageStatus{
			Stage:       st,
			Status:      record.Status,
			Fingerprint: record.Fingerprint,
			Error:       record.Error,
			Metrics:     record.Metrics,
		}
		if !record.UpdatedAt.IsZero() {
			row.UpdatedAt = record.UpdatedAt.UTC().Format("2006-01-02 15:04:05")
		}
		status.Stages = append(status.Stages, row)
	}

	units, err := p.store.CountUnits(ctx, assetID)
	if err != nil {
		return status, err
	}
	status.Units = units
	return status, nil
}

// Clean removes an asset's artifact tree and its indexed evidence.
func (p *Pipeline) Clean(ctx context.Context, assetID string) error {
	layout := p.Layout(assetID)

	_, statErr := os.Stat(layout.Dir)
	_, getErr := p.store.GetAsset(ctx, assetID)
	if statErr != nil && getErr != nil {
		return services.Wrap(services.ErrNotFound, "clean", "run", "asset "+assetID+" does not exist", nil)
	}

	if err := os.RemoveAll(layout.Dir); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "clean", "run", "remove asset directory", err)
	}
	if getErr == nil {
		if err := p.store.DeleteAsset(ctx, assetID); err != nil {
			return err
		}
	}
	return nil
}
