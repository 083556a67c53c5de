package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration values for consistency. It returns the
// first problem encountered.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must not be empty")
	}
	if c.Frames.IntervalSec <= 0 && c.Frames.SceneThresh <= 0 {
		return errors.New("frames: either interval_sec or scene_thresh must be positive")
	}
	if c.Frames.IntervalSec > 0 && c.Frames.SceneThresh > 0 {
		return errors.New("frames: interval_sec and scene_thresh are mutually exclusive")
	}
	if c.Frames.SceneThresh < 0 || c.Frames.SceneThresh > 1 {
		return fmt.Errorf("frames.scene_thresh must be within [0, 1], got %v", c.Frames.SceneThresh)
	}
	if c.Frames.MaxFrames < 0 {
		return fmt.Errorf("frames.max_frames must not be negative, got %d", c.Frames.MaxFrames)
	}
	if c.Frames.MaxWidth < 64 {
		return fmt.Errorf("frames.max_width must be at least 64, got %d", c.Frames.MaxWidth)
	}
	if c.Timeline.BucketSec <= 0 {
		return fmt.Errorf("timeline.bucket_sec must be positive, got %d", c.Timeline.BucketSec)
	}
	if c.Select.TopBuckets <= 0 {
		return fmt.Errorf("select.top_buckets must be positive, got %d", c.Select.TopBuckets)
	}
	if c.Select.MaxFrames <= 0 {
		return fmt.Errorf("select.max_frames must be positive, got %d", c.Select.MaxFrames)
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 100 {
		return fmt.Errorf("ocr.min_confidence must be within [0, 100], got %v", c.OCR.MinConfidence)
	}
	if c.OCR.PageSegMode < 0 || c.OCR.PageSegMode > 13 {
		return fmt.Errorf("ocr.page_seg_mode must be within [0, 13], got %d", c.OCR.PageSegMode)
	}
	if c.Index.MergeMaxChars <= 0 {
		return fmt.Errorf("index.merge_max_chars must be positive, got %d", c.Index.MergeMaxChars)
	}
	if c.Query.TopK <= 0 {
		return fmt.Errorf("query.top_k must be positive, got %d", c.Query.TopK)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
