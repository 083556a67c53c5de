package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"assetizer/internal/services"
)

// Runner executes an external command and returns its combined output. The
// default implementation shells out; tests substitute their own.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// Client wraps the ffmpeg and ffprobe binaries.
type Client struct {
	binary      string
	probeBinary string
	runner      Runner
}

func New(binary, probeBinary string) *Client {
	if binary == "" {
		binary = "ffmpeg"
	}
	if probeBinary == "" {
		probeBinary = "ffprobe"
	}
	return &Client{binary: binary, probeBinary: probeBinary}
}

// WithRunner sets a custom command runner (for testing).
func (c *Client) WithRunner(runner Runner) { c.runner = runner }

func (c *Client) run(ctx context.Context, name string, args ...string) (string, error) {
	if c.runner != nil {
		return c.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// Duration probes the container duration in seconds.
func (c *Client) Duration(ctx context.Context, video string) (float64, error) {
	output, err := c.run(ctx, c.probeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		video,
	)
	if err != nil {
		return 0, services.Wrap(services.ErrCollaborator, "", "ffprobe", "probe duration", err)
	}
	value := strings.TrimSpace(output)
	duration, parseErr := strconv.ParseFloat(value, 64)
	if parseErr != nil || duration <= 0 {
		return 0, services.Wrap(services.ErrCollaborator, "", "ffprobe",
			fmt.Sprintf("unusable duration %q", value), parseErr)
	}
	return duration, nil
}

// SampleUniform extracts one frame every intervalSec seconds into outDir as
// frame_%06d.png. Frame n covers timestamp (n-1)*intervalSec.
func (c *Client) SampleUniform(ctx context.Context, video, outDir string, intervalSec float64) error {
	if intervalSec <= 0 {
		return services.Wrap(services.ErrValidation, "", "ffmpeg", "interval must be positive", nil)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "ffmpeg", "ensure frames directory", err)
	}
	_, err := c.run(ctx, c.binary,
		"-hide_banner",
		"-i", video,
		"-vf", fmt.Sprintf("fps=1/%g", intervalSec),
		"-vsync", "vfr",
		filepath.Join(outDir, "frame_%06d.png"),
	)
	if err != nil {
		return services.Wrap(services.ErrCollaborator, "", "ffmpeg", "uniform sampling", err)
	}
	return nil
}

var ptsTimePattern = regexp.MustCompile(`pts_time:([0-9]+(?:\.[0-9]+)?)`)

// SampleScene extracts frames at scene changes above the threshold and
// returns the timestamp (seconds) of each extracted frame, parsed from the
// showinfo filter log in output order.
func (c *Client) SampleScene(ctx context.Context, video, outDir string, threshold float64) ([]float64, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, services.Wrap(services.ErrValidation, "", "ffmpeg", "scene threshold must be in (0, 1]", nil)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "", "ffmpeg", "ensure frames directory", err)
	}
	output, err := c.run(ctx, c.binary,
		"-hide_banner",
		"-i", video,
		"-vf", fmt.Sprintf("select='gt(scene,%g)',showinfo", threshold),
		"-vsync", "vfr",
		filepath.Join(outDir, "frame_%06d.png"),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrCollaborator, "", "ffmpeg", "scene sampling", err)
	}

	var timestamps []float64
	for _, match := range ptsTimePattern.FindAllStringSubmatch(output, -1) {
		ts, parseErr := strconv.ParseFloat(match[1], 64)
		if parseErr != nil {
			continue
		}
		timestamps = append(timestamps, ts)
	}
	return timestamps, nil
}

// ExtractAudio writes the audio track as mono 16 kHz WAV, the input format
// speech models expect.
func (c *Client) ExtractAudio(ctx context.Context, video, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "ffmpeg", "ensure audio directory", err)
	}
	_, err := c.run(ctx, c.binary,
		"-hide_banner",
		"-y",
		"-i", video,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	)
	if err != nil {
		return services.Wrap(services.ErrCollaborator, "", "ffmpeg", "extract audio", err)
	}
	return nil
}
