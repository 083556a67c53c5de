package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"assetizer/internal/asset"
	"assetizer/internal/evidence"
	"assetizer/internal/fileutil"
	"assetizer/internal/frames"
	"assetizer/internal/ocr"
	"assetizer/internal/selection"
	"assetizer/internal/services"
	"assetizer/internal/services/fetcher"
	"assetizer/internal/stage"
	"assetizer/internal/timeline"
	"assetizer/internal/transcript"
)

func (p *Pipeline) frameParams() frames.Params {
	return frames.Params{
		IntervalSec: p.cfg.Frames.IntervalSec,
		SceneThresh: p.cfg.Frames.SceneThresh,
		MaxFrames:   p.cfg.Frames.MaxFrames,
		MaxWidth:    p.cfg.Frames.MaxWidth,
	}
}

func (p *Pipeline) produceSource(layout asset.Layout) stage.Producer {
	return func(ctx context.Context) (stage.Output, error) {
		if err := os.MkdirAll(layout.Source(), 0o755); err != nil {
			return stage.Output{}, services.Wrap(services.ErrDataIntegrity, "source", "run", "create source directory", err)
		}

		refs := []string{filepath.Join(asset.SourceDir, asset.VideoFile)}
		if p.localSource != "" {
			if err := fileutil.CopyFileVerified(p.localSource, layout.Video()); err != nil {
				return stage.Output{}, services.Wrap(services.ErrValidation, "source", "run", "copy local file", err)
			}
		} else {
			meta, err := p.sourceMetadata(ctx, layout)
			if err != nil {
				return stage.Output{}, err
			}
			stream, err := p.fetch.FetchStream(ctx, layout.ID, meta.CID)
			if err != nil {
				return stage.Output{}, err
			}
			if err := os.MkdirAll(layout.SourceAPI(), 0o755); err != nil {
				return stage.Output{}, services.Wrap(services.ErrDataIntegrity, "source", "run", "create api directory", err)
			}
			if err := fileutil.WriteFileAtomic(layout.PlayURL(), stream.Raw, 0o644); err != nil {
				return stage.Output{}, services.Wrap(services.ErrDataIntegrity, "source", "run", "write playurl response", err)
			}
			if err := p.fetch.Download(ctx, stream.URL, layout.Video()); err != nil {
				return stage.Output{}, err
			}
			refs = append(refs, filepath.Join(asset.SourceAPIDir, asset.PlayURLFile))
		}

		info, err := os.Stat(layout.Video())
		if err != nil {
			return stage.Output{}, services.Wrap(services.ErrDataIntegrity, "source", "run", "stat video", err)
		}
		metrics := map[string]int64{"size_bytes": info.Size()}
		if duration, err := p.media.Duration(ctx, layout.Video()); err == nil {
			metrics["duration_ms"] = int64(duration * 1000)
		}
		return stage.Output{Refs: refs, Metrics: metrics}, nil
	}
}

// sourceMetadata returns the stored metadata for an asset, refetching when
// the stored copy is missing or predates stream ids.
func (p *Pipeline) sourceMetadata(ctx context.Context, layout asset.Layout) (fetcher.Metadata, error) {
	var meta fetcher.Metadata
	data, err := os.ReadFile(layout.Metadata())
	if err == nil {
		if err := json.Unmarshal(data, &meta); err != nil {
			return meta, services.Wrap(services.ErrDataIntegrity, "source", "run", "decode stored metadata", err)
		}
	}
	if meta.CID != 0 {
		return meta, nil
	}

	meta, err = p.fetch.Fetch(ctx, layout.ID)
	if err != nil {
		return meta, err
	}
	if err := SaveMetadata(layout, meta); err != nil {
		return meta, err
	}
	return meta, nil
}

func (p *Pipeline) produceFrames(layout asset.Layout) stage.Producer {
	return func(ctx context.Context) (stage.Output, error) {
		params := p.frameParams()
		records, err := frames.NewSampler(p.media).Sample(ctx, layout, params)
		if err != nil {
			return stage.Output{}, err
		}
		if err := frames.WriteRecords(layout.FrameRecords(), records); err != nil {
			return stage.Output{}, err
		}

		refs := []string{asset.FramesFile}
		var duplicates int64
		for _, record := range records {
			if record.IsDuplicate {
				duplicates++
				continue
			}
			refs = append(refs, record.Path)
		}
		return stage.Output{
			Refs: refs,
			Metrics: map[string]int64{
				"frames_sampled":  int64(len(records)),
				"frames_retained": int64(len(records)) - duplicates,
				"duplicates":      duplicates,
			},
		}, nil
	}
}

func (p *Pipeline) produceTimeline(layout asset.Layout) stage.Producer {
	return func(ctx context.Context) (stage.Output, error) {
		records, err := frames.ReadRecords(layout.FrameRecords())
		if err != nil {
			return stage.Output{}, err
		}
		duration, err := p.media.Duration(ctx, layout.Video())
		if err != nil {
			return stage.Output{}, err
		}
		tl, scores, err := timeline.Build(ctx, layout, records, duration, p.cfg.Timeline.BucketSec)
		if err != nil {
			return stage.Output{}, err
		}
		if err := timeline.Save(layout, tl, scores); err != nil {
			return stage.Output{}, err
		}
		return stage.Output{
			Refs: []string{asset.TimelineFile, asset.FrameScoresFile},
			Metrics: map[string]int64{
				"buckets":       int64(len(tl.Buckets)),
				"scored_frames": int64(len(scores)),
			},
		}, nil
	}
}

func (p *Pipeline) produceSelect(layout asset.Layout) stage.Producer {
	return func(ctx context.Context) (stage.Output, error) {
		tl, err := timeline.Load(layout)
		if err != nil {
			return stage.Output{}, err
		}
		scores, err := timeline.LoadScores(layout)
		if err != nil {
			return stage.Output{}, err
		}
		records, err := frames.ReadRecords(layout.FrameRecords())
		if err != nil {
			return stage.Output{}, err
		}

		sel, err := selection.Select(tl, scores, records, selection.Params{
			TopBuckets: p.cfg.Select.TopBuckets,
			MaxFrames:  p.cfg.Select.MaxFrames,
		})
		if err != nil {
			return stage.Output{}, err
		}
		refs, err := selection.Materialize(layout, sel)
		if err != nil {
			return stage.Output{}, err
		}
		return stage.Output{
			Refs:    refs,
			Metrics: map[string]int64{"selected_frames": int64(len(sel.Frames))},
		}, nil
	}
}

func (p *Pipeline) produceOCR(layout asset.Layout) stage.Producer {
	return func(ctx context.Context) (stage.Output, error) {
		sel, err := selection.Load(layout)
		if err != nil {
			return stage.Output{}, err
		}

		var withSpans int64
		records := make([]ocr.RawRecord, 0, len(sel.Frames))
		for _, frame := range sel.Frames {
			if err := ctx.Err(); err != nil {
				return stage.Output{}, err
			}
			spans, err := p.engine.Recognize(ctx, layout.Path(frame.Path))
			if err != nil {
				return stage.Output{}, err
			}
			if len(spans) > 0 {
				withSpans++
			}
			records = append(records, ocr.RawRecord{FrameID: frame.FrameID, TsMs: frame.TsMs, Spans: spans})
		}
		if err := ocr.WriteRawRecords(layout.OCR(), records); err != nil {
			return stage.Output{}, err
		}
		return stage.Output{
			Refs: []string{asset.OCRFile},
			Metrics: map[string]int64{
				"frames_processed": int64(len(records)),
				"frames_with_text": withSpans,
			},
		}, nil
	}
}

func (p *Pipeline) produceOCRNormalize(layout asset.Layout) stage.Producer {
	return func(ctx context.Context) (stage.Output, error) {
		raw, err := ocr.ReadRawRecords(layout.OCR())
		if err != nil {
			return stage.Output{}, err
		}

		params := ocr.NormalizeParams{MinConfidence: p.cfg.OCR.MinConfidence}
		var withText int64
		normalized := make([]ocr.NormalizedRecord, 0, len(raw))
		for _, record := range raw {
			lines := ocr.Normalize(record.Spans, params)
			text := ocr.JoinLines(lines)
			if text != "" {
				withText++
			}
			normalized = append(normalized, ocr.NormalizedRecord{
				FrameID: record.FrameID,
				TsMs:    record.TsMs,
				Text:    text,
				Lines:   lines,
			})
		}
		if err := ocr.WriteNormalizedRecords(layout.OCRNormalized(), normalized); err != nil {
			return stage.Output{}, err
		}
		return stage.Output{
			Refs: []string{asset.OCRNormalizedFile},
			Metrics: map[string]int64{
				"frames_processed": int64(len(normalized)),
				"frames_with_text": withText,
			},
		}, nil
	}
}

func (p *Pipeline) produceTranscript(layout asset.Layout) stage.Producer {
	return func(ctx context.Context) (stage.Output, error) {
		audioDir := filepath.Dir(layout.Audio())
		if err := os.MkdirAll(audioDir, 0o755); err != nil {
			return stage.Output{}, services.Wrap(services.ErrDataIntegrity, "transcript", "run", "create audio directory", err)
		}
		if err := p.media.ExtractAudio(ctx, layout.Video(), layout.Audio()); err != nil {
			return stage.Output{}, err
		}

		raw, err := p.asr.Transcribe(ctx, layout.Audio(), audioDir)
		if err != nil {
			return stage.Output{}, err
		}
		segments := transcript.FromRaw(raw)
		if err := transcript.Write(layout.Transcript(), segments); err != nil {
			return stage.Output{}, err
		}
		return stage.Output{
			Refs: []string{
				filepath.Join(asset.AudioDir, asset.AudioFile),
				asset.TranscriptFile,
			},
			Metrics: map[string]int64{"segments": int64(len(segments))},
		}, nil
	}
}

func (p *Pipeline) produceIndex(layout asset.Layout) stage.Producer {
	return func(ctx context.Context) (stage.Output, error) {
		var units []evidence.Unit
		var transcriptUnits, ocrUnits int64

		segments, err := transcript.Read(layout.Transcript())
		switch {
		case err == nil:
			if p.cfg.Index.MergeSegments {
				segments = transcript.Merge(segments, p.cfg.Index.MergeMaxChars)
			}
			for _, segment := range segments {
				end := segment.EndMs
				units = append(units, evidence.Unit{
					AssetID:   layout.ID,
					Kind:      evidence.KindTranscript,
					SourceRef: segment.SegmentID,
					StartMs:   segment.StartMs,
					EndMs:     &end,
					Text:      segment.Text,
				})
				transcriptUnits++
			}
		case errors.Is(err, services.ErrNotFound):
			// No transcript artifact: index what the other stages produced.
		default:
			return stage.Output{}, err
		}

		frameRecords, err := ocr.ReadNormalizedRecords(layout.OCRNormalized())
		switch {
		case err == nil:
			for _, record := range frameRecords {
				if record.Text == "" {
					continue
				}
				units = append(units, evidence.Unit{
					AssetID:   layout.ID,
					Kind:      evidence.KindOCRFrame,
					SourceRef: record.FrameID,
					StartMs:   record.TsMs,
					Text:      record.Text,
				})
				ocrUnits++
			}
		case errors.Is(err, services.ErrNotFound):
			// No normalized OCR artifact.
		default:
			return stage.Output{}, err
		}

		count, err := p.store.ReplaceAssetUnits(ctx, layout.ID, units)
		if err != nil {
			return stage.Output{}, err
		}
		return stage.Output{
			Metrics: map[string]int64{
				"units":            int64(count),
				"transcript_units": transcriptUnits,
				"ocr_units":        ocrUnits,
			},
		}, nil
	}
}
