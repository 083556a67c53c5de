package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"assetizer/internal/services"
)

// Segment is one transcribed utterance.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcriber produces timed segments from an audio file. Silence is a
// successful empty result, not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, workDir string) ([]Segment, error)
}

// Runner executes the transcription command. Tests substitute their own.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// CLI shells out to a whisper-style binary that writes a JSON result next to
// the audio file.
type CLI struct {
	binary  string
	model   string
	timeout time.Duration
	runner  Runner
}

func NewCLI(binary, model string, timeout time.Duration) *CLI {
	if binary == "" {
		binary = "whisper"
	}
	if model == "" {
		model = "base"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &CLI{binary: binary, model: model, timeout: timeout}
}

// WithRunner sets a custom command runner (for testing).
func (c *CLI) WithRunner(runner Runner) { c.runner = runner }

func (c *CLI) run(ctx context.Context, args ...string) (string, error) {
	if c.runner != nil {
		return c.runner(ctx, c.binary, args...)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, c.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("%s: %w: %s", c.binary, err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// Transcribe runs the model over audioPath and parses the JSON result. Auth
// and quota failures surface as collaborator errors so reruns can retry;
// audio with no speech returns an empty slice.
func (c *CLI) Transcribe(ctx context.Context, audioPath, workDir string) ([]Segment, error) {
	if workDir == "" {
		workDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "", "transcriber", "ensure work directory", err)
	}

	output, err := c.run(ctx,
		audioPath,
		"--model", c.model,
		"--output_format", "json",
		"--output_dir", workDir,
	)
	if err != nil {
		if isQuotaFailure(output) || isQuotaFailure(err.Error()) {
			return nil, services.Wrap(services.ErrCollaborator, "", "transcriber", "quota or auth failure", err)
		}
		return nil, services.Wrap(services.ErrCollaborator, "", "transcriber", "transcription failed", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	resultPath := filepath.Join(workDir, base+".json")
	return LoadSegments(resultPath)
}

type resultPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments reads a whisper-style JSON result file.
func LoadSegments(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrCollaborator, "", "transcriber", "read result "+path, err)
	}
	var payload resultPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, services.Wrap(services.ErrCollaborator, "", "transcriber", "decode result", err)
	}
	segments := make([]Segment, 0, len(payload.Segments))
	for _, segment := range payload.Segments {
		segment.Text = strings.TrimSpace(segment.Text)
		if segment.Text == "" {
			continue
		}
		segments = append(segments, segment)
	}
	return segments, nil
}

func isQuotaFailure(s string) bool {
	s = strings.ToLower(s)
	for _, marker := range []string{"quota", "rate limit", "unauthorized", "invalid credential", "401", "429"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
