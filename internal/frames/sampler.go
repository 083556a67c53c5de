package frames

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"

	"assetizer/internal/asset"
	"assetizer/internal/fileutil"
	"assetizer/internal/services"
	"assetizer/internal/services/ffmpeg"
)

// Params controls one sampling run. Exactly one of IntervalSec and
// SceneThresh must be set; the config layer enforces the exclusivity.
type Params struct {
	IntervalSec float64
	SceneThresh float64
	MaxFrames   int
	MaxWidth    int
}

func (p Params) sourceLabel() string {
	if p.SceneThresh > 0 {
		return "scene"
	}
	return "uniform"
}

// Fingerprint returns the stage parameter map for the runner.
func (p Params) Fingerprint() map[string]string {
	return map[string]string{
		"interval_sec": fmt.Sprintf("%g", p.IntervalSec),
		"scene_thresh": fmt.Sprintf("%g", p.SceneThresh),
		"max_frames":   fmt.Sprintf("%d", p.MaxFrames),
		"max_width":    fmt.Sprintf("%d", p.MaxWidth),
	}
}

// Sampler extracts candidate frames, normalizes them, and deduplicates.
type Sampler struct {
	client *ffmpeg.Client
}

func NewSampler(client *ffmpeg.Client) *Sampler {
	return &Sampler{client: client}
}

// Sample runs the complete frames stage for one asset: extract candidates
// with ffmpeg, bound their width, fingerprint each file, drop exact
// duplicates (deleting the file, keeping the record), and apply the frame
// cap to the earliest retained frames. Returns all records in frame order.
func (s *Sampler) Sample(ctx context.Context, layout asset.Layout, params Params) ([]Record, error) {
	framesDir := layout.Frames()
	if err := os.RemoveAll(framesDir); err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "frames", "sample", "clear frames directory", err)
	}

	var sceneTimes []float64
	if params.SceneThresh > 0 {
		times, err := s.client.SampleScene(ctx, layout.Video(), framesDir, params.SceneThresh)
		if err != nil {
			return nil, err
		}
		sceneTimes = times
	} else {
		if err := s.client.SampleUniform(ctx, layout.Video(), framesDir, params.IntervalSec); err != nil {
			return nil, err
		}
	}

	paths, err := listFrameFiles(framesDir)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(paths))
	seen := make(map[string]string, len(paths))
	retained := 0
	for i, path := range paths {
		frameID := FrameID(i + 1)
		tsMs := timestampFor(i, params, sceneTimes)

		if params.MaxWidth > 0 {
			if err := boundWidth(path, params.MaxWidth); err != nil {
				return nil, err
			}
		}
		fingerprint, err := fileutil.HashFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrDataIntegrity, "frames", "sample", "fingerprint "+filepath.Base(path), err)
		}

		record := Record{
			FrameID:     frameID,
			TsMs:        tsMs,
			Fingerprint: fingerprint,
			Source:      params.sourceLabel(),
		}
		switch originalID, dup := seen[fingerprint]; {
		case dup:
			record.IsDuplicate = true
			record.DuplicateOf = originalID
			os.Remove(path)
		case params.MaxFrames > 0 && retained >= params.MaxFrames:
			// Cap reached: surplus candidates are discarded outright.
			os.Remove(path)
			continue
		default:
			seen[fingerprint] = frameID
			record.Path = filepath.Join(asset.FramesDir, filepath.Base(path))
			retained++
		}
		records = append(records, record)
	}
	return records, nil
}

func listFrameFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "frames", "sample", "list frames", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// timestampFor maps candidate index to milliseconds: uniform sampling places
// frame n at (n-1)*interval; scene sampling uses the showinfo timestamps.
func timestampFor(index int, params Params, sceneTimes []float64) *int64 {
	if params.SceneThresh > 0 {
		if index < len(sceneTimes) {
			ms := int64(math.Round(sceneTimes[index] * 1000))
			return &ms
		}
		return nil
	}
	ms := int64(math.Round(float64(index) * params.IntervalSec * 1000))
	return &ms
}

// boundWidth shrinks a frame wider than maxWidth, preserving aspect ratio.
// Narrower frames are left untouched so fingerprints stay byte-stable.
func boundWidth(path string, maxWidth int) error {
	img, err := imaging.Open(path)
	if err != nil {
		return services.Wrap(services.ErrDataIntegrity, "frames", "sample", "open "+filepath.Base(path), err)
	}
	if img.Bounds().Dx() <= maxWidth {
		return nil
	}
	resized := imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	if err := imaging.Save(resized, path); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "frames", "sample", "save resized "+filepath.Base(path), err)
	}
	return nil
}
