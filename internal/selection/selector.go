package selection

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"assetizer/internal/asset"
	"assetizer/internal/fileutil"
	"assetizer/internal/frames"
	"assetizer/internal/services"
	"assetizer/internal/timeline"
)

// Params controls how many frames the selection keeps.
type Params struct {
	TopBuckets int
	MaxFrames  int
}

// Frame is one selected frame with everything downstream stages need.
type Frame struct {
	FrameID string  `json:"frame_id"`
	TsMs    int64   `json:"ts_ms"`
	Score   float64 `json:"score"`
	Path    string  `json:"path"`
}

// Selection is the persisted selected.json payload.
type Selection struct {
	AssetID    string  `json:"asset_id"`
	TopBuckets int     `json:"top_buckets"`
	MaxFrames  int     `json:"max_frames"`
	Frames     []Frame `json:"frames"`
}

// Select picks the representative frames: the best member of each of the
// top-N buckets first, then remaining top-bucket frames by score until the
// cap. The
// result is deterministic for identical inputs (every tie breaks on bucket
// index or frame id) and comes back in time order. An empty selection is a
// valid outcome.
func Select(tl timeline.Timeline, scores []timeline.FrameScore, records []frames.Record, params Params) (Selection, error) {
	selection := Selection{
		AssetID:    tl.AssetID,
		TopBuckets: params.TopBuckets,
		MaxFrames:  params.MaxFrames,
		Frames:     []Frame{},
	}
	if params.TopBuckets <= 0 || params.MaxFrames <= 0 {
		return selection, services.Wrap(services.ErrValidation, "select", "plan", "top_buckets and max_frames must be positive", nil)
	}

	pathByID := make(map[string]string, len(records))
	for _, record := range records {
		if !record.IsDuplicate && record.Path != "" {
			pathByID[record.FrameID] = record.Path
		}
	}

	scoreByID := make(map[string]timeline.FrameScore, len(scores))
	for _, fs := range scores {
		scoreByID[fs.FrameID] = fs
	}

	// Rank buckets by score descending, ties to the earlier bucket.
	ranked := append([]timeline.Bucket(nil), tl.Buckets...)
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].Score != ranked[b].Score {
			return ranked[a].Score > ranked[b].Score
		}
		return ranked[a].Index < ranked[b].Index
	})

	picked := make(map[string]bool)
	var chosen []Frame

	appendFrame := func(frameID string) bool {
		if picked[frameID] {
			return false
		}
		fs, ok := scoreByID[frameID]
		if !ok || fs.TsMs == nil {
			return false
		}
		path, ok := pathByID[frameID]
		if !ok {
			return false
		}
		picked[frameID] = true
		chosen = append(chosen, Frame{FrameID: frameID, TsMs: *fs.TsMs, Score: fs.Score, Path: path})
		return true
	}

	// Round one: the single best member of each top bucket.
	topN := params.TopBuckets
	if topN > len(ranked) {
		topN = len(ranked)
	}
	for _, bucket := range ranked[:topN] {
		if len(chosen) >= params.MaxFrames {
			break
		}
		for _, frameID := range bucket.TopFrameIDs {
			if appendFrame(frameID) {
				break
			}
		}
	}

	// Round two: fill to the cap by score, ties to the earlier frame. Only
	// frames inside the top buckets are candidates; the rest of the timeline
	// stays unrepresented no matter the cap.
	if len(chosen) < params.MaxFrames {
		topSet := make(map[int]bool, topN)
		for _, bucket := range ranked[:topN] {
			topSet[bucket.Index] = true
		}
		bucketMs := int64(tl.BucketSec) * 1000
		remaining := make([]timeline.FrameScore, 0, len(scores))
		for _, fs := range scores {
			if fs.TsMs == nil || bucketMs <= 0 {
				continue
			}
			if topSet[int(*fs.TsMs/bucketMs)] {
				remaining = append(remaining, fs)
			}
		}
		sort.SliceStable(remaining, func(a, b int) bool {
			if remaining[a].Score != remaining[b].Score {
				return remaining[a].Score > remaining[b].Score
			}
			return remaining[a].FrameID < remaining[b].FrameID
		})
		for _, fs := range remaining {
			if len(chosen) >= params.MaxFrames {
				break
			}
			appendFrame(fs.FrameID)
		}
	}

	sort.SliceStable(chosen, func(a, b int) bool {
		if chosen[a].TsMs != chosen[b].TsMs {
			return chosen[a].TsMs < chosen[b].TsMs
		}
		return chosen[a].FrameID < chosen[b].FrameID
	})
	selection.Frames = chosen
	return selection, nil
}

// Materialize writes selected.json and copies the selected frame files into
// the frames_selected directory, verifying each copy.
func Materialize(layout asset.Layout, selection Selection) ([]string, error) {
	refs := []string{asset.SelectedFile}

	if err := os.RemoveAll(layout.SelectedFrames()); err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "select", "materialize", "clear selected directory", err)
	}
	if len(selection.Frames) > 0 {
		if err := os.MkdirAll(layout.SelectedFrames(), 0o755); err != nil {
			return nil, services.Wrap(services.ErrDataIntegrity, "select", "materialize", "ensure selected directory", err)
		}
	}
	for _, frame := range selection.Frames {
		src := layout.Path(frame.Path)
		dstRel := filepath.Join(asset.SelectedFramesDir, filepath.Base(frame.Path))
		if err := fileutil.CopyFileVerified(src, layout.Path(dstRel)); err != nil {
			return nil, services.Wrap(services.ErrDataIntegrity, "select", "materialize", "copy "+frame.FrameID, err)
		}
		refs = append(refs, dstRel)
	}

	data, err := json.MarshalIndent(selection, "", "  ")
	if err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "select", "materialize", "encode selection", err)
	}
	if err := fileutil.WriteFileAtomic(layout.Selected(), append(data, '\n'), 0o644); err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "select", "materialize", "write selection", err)
	}
	return refs, nil
}

// Load reads selected.json back.
func Load(layout asset.Layout) (Selection, error) {
	var selection Selection
	data, err := os.ReadFile(layout.Selected())
	if err != nil {
		return selection, services.Wrap(services.ErrNotFound, "select", "load", "read selection", err)
	}
	if err := json.Unmarshal(data, &selection); err != nil {
		return selection, services.Wrap(services.ErrDataIntegrity, "select", "load", "decode selection", err)
	}
	return selection, nil
}
