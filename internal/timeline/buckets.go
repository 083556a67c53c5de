package timeline

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"sort"

	"assetizer/internal/asset"
	"assetizer/internal/fileutil"
	"assetizer/internal/frames"
	"assetizer/internal/services"
)

// FrameScore pairs a frame with its info-density score.
type FrameScore struct {
	FrameID string  `json:"frame_id"`
	TsMs    *int64  `json:"ts_ms"`
	Score   float64 `json:"score"`
}

// Bucket is one fixed-width slice of the timeline. Buckets partition
// [0, duration) contiguously; a bucket with no frames keeps score 0 so the
// timeline's shape is visible even where sampling found nothing.
type Bucket struct {
	Index       int      `json:"index"`
	StartMs     int64    `json:"start_ms"`
	EndMs       int64    `json:"end_ms"`
	Score       float64  `json:"score"`
	TopFrameIDs []string `json:"top_frame_ids"`
}

// Timeline is the persisted timeline.json payload.
type Timeline struct {
	AssetID   string   `json:"asset_id"`
	BucketSec int      `json:"bucket_sec"`
	Buckets   []Bucket `json:"buckets"`
}

// Build scores every retained frame and folds the scores into contiguous
// buckets over [0, durationSec). Bucket score is the mean of its top three
// member scores.
func Build(ctx context.Context, layout asset.Layout, records []frames.Record, durationSec float64, bucketSec int) (Timeline, []FrameScore, error) {
	timeline := Timeline{AssetID: layout.ID, BucketSec: bucketSec}
	if bucketSec <= 0 {
		return timeline, nil, services.Wrap(services.ErrValidation, "timeline", "build", "bucket_sec must be positive", nil)
	}
	if durationSec <= 0 {
		return timeline, nil, services.Wrap(services.ErrValidation, "timeline", "build", "duration must be positive", nil)
	}

	scores := make([]FrameScore, 0, len(records))
	for _, record := range records {
		if record.IsDuplicate || record.Path == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return timeline, nil, err
		}
		score, err := ScoreFrame(layout.Path(record.Path))
		if err != nil {
			return timeline, nil, err
		}
		scores = append(scores, FrameScore{FrameID: record.FrameID, TsMs: record.TsMs, Score: score})
	}

	bucketMs := int64(bucketSec) * 1000
	bucketCount := int(math.Ceil(durationSec * 1000 / float64(bucketMs)))
	members := make(map[int][]FrameScore)
	for _, fs := range scores {
		if fs.TsMs == nil {
			continue
		}
		index := int(*fs.TsMs / bucketMs)
		if index < 0 || index >= bucketCount {
			continue
		}
		members[index] = append(members[index], fs)
	}

	buckets := make([]Bucket, bucketCount)
	for i := range buckets {
		bucket := Bucket{
			Index:   i,
			StartMs: int64(i) * bucketMs,
			EndMs:   int64(i+1) * bucketMs,
		}
		frameScores := members[i]
		sort.SliceStable(frameScores, func(a, b int) bool {
			return frameScores[a].Score > frameScores[b].Score
		})
		top := frameScores
		if len(top) > 3 {
			top = top[:3]
		}
		if len(top) > 0 {
			var sum float64
			for _, fs := range top {
				sum += fs.Score
				bucket.TopFrameIDs = append(bucket.TopFrameIDs, fs.FrameID)
			}
			bucket.Score = math.Round(sum/float64(len(top))*10000) / 10000
		}
		buckets[i] = bucket
	}
	timeline.Buckets = buckets
	return timeline, scores, nil
}

// Save persists timeline.json and frame_scores.jsonl atomically.
func Save(layout asset.Layout, timeline Timeline, scores []FrameScore) error {
	data, err := json.MarshalIndent(timeline, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrDataIntegrity, "timeline", "save", "encode timeline", err)
	}
	if err := fileutil.WriteFileAtomic(layout.Timeline(), append(data, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "timeline", "save", "write timeline", err)
	}

	var buf []byte
	for _, fs := range scores {
		line, err := json.Marshal(fs)
		if err != nil {
			return services.Wrap(services.ErrDataIntegrity, "timeline", "save", "encode score", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if err := fileutil.WriteFileAtomic(layout.FrameScores(), buf, 0o644); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "timeline", "save", "write scores", err)
	}
	return nil
}

// LoadScores reads frame_scores.jsonl back.
func LoadScores(layout asset.Layout) ([]FrameScore, error) {
	data, err := os.ReadFile(layout.FrameScores())
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "timeline", "load", "read scores", err)
	}
	var scores []FrameScore
	for _, line := range bytesLines(data) {
		var fs FrameScore
		if err := json.Unmarshal(line, &fs); err != nil {
			return nil, services.Wrap(services.ErrDataIntegrity, "timeline", "load", "decode score", err)
		}
		scores = append(scores, fs)
	}
	return scores, nil
}

func bytesLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

// Load reads timeline.json back.
func Load(layout asset.Layout) (Timeline, error) {
	var timeline Timeline
	data, err := os.ReadFile(layout.Timeline())
	if err != nil {
		return timeline, services.Wrap(services.ErrNotFound, "timeline", "load", "read timeline", err)
	}
	if err := json.Unmarshal(data, &timeline); err != nil {
		return timeline, services.Wrap(services.ErrDataIntegrity, "timeline", "load", "decode timeline", err)
	}
	return timeline, nil
}
