package tesseract

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"assetizer/internal/services"
)

// Span is one recognized word with its bounding box and confidence, taken
// from level-5 rows of tesseract's TSV output.
type Span struct {
	Text   string  `json:"text"`
	Left   int     `json:"left"`
	Top    int     `json:"top"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Conf   float64 `json:"conf"`
	Block  int     `json:"block"`
	Par    int     `json:"par"`
	Line   int     `json:"line"`
}

// Runner executes tesseract and returns stdout. Tests substitute their own.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// Client wraps the tesseract binary in TSV mode.
type Client struct {
	binary   string
	language string
	psm      int
	timeout  time.Duration
	runner   Runner
}

func New(binary, language string, psm int, timeout time.Duration) *Client {
	if binary == "" {
		binary = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{binary: binary, language: language, psm: psm, timeout: timeout}
}

// WithRunner sets a custom command runner (for testing).
func (c *Client) WithRunner(runner Runner) { c.runner = runner }

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	if c.runner != nil {
		return c.runner(ctx, c.binary, args...)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, c.binary, args...)
	output, err := cmd.Output()
	if err != nil {
		detail := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		return "", fmt.Errorf("%s: %w: %s", c.binary, err, detail)
	}
	return string(output), nil
}

// Recognize runs OCR over one image and returns its word spans. A frame with
// no recognizable text yields an empty slice, not an error.
func (c *Client) Recognize(ctx context.Context, imagePath string) ([]Span, error) {
	output, err := c.run(ctx,
		imagePath,
		"stdout",
		"-l", c.language,
		"--psm", strconv.Itoa(c.psm),
		"tsv",
	)
	if err != nil {
		return nil, services.Wrap(services.ErrCollaborator, "", "tesseract", "recognize "+imagePath, err)
	}
	return ParseTSV(output), nil
}

// TSV column indexes per tesseract's fixed 12-column layout.
const (
	colLevel  = 0
	colBlock  = 2
	colPar    = 3
	colLine   = 4
	colLeft   = 6
	colTop    = 7
	colWidth  = 8
	colHeight = 9
	colConf   = 10
	colText   = 11
	colCount  = 12
)

// ParseTSV extracts word spans (level 5 rows) from tesseract TSV output.
// Malformed rows and empty text cells are skipped.
func ParseTSV(output string) []Span {
	spans := []Span{}
	for i, line := range strings.Split(output, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < colCount {
			continue
		}
		if i == 0 && fields[colLevel] == "level" {
			continue
		}
		level, err := strconv.Atoi(fields[colLevel])
		if err != nil || level != 5 {
			continue
		}
		text := strings.TrimSpace(fields[colText])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(fields[colConf], 64)
		if err != nil {
			conf = -1
		}
		spans = append(spans, Span{
			Text:   text,
			Left:   atoiOr(fields[colLeft], 0),
			Top:    atoiOr(fields[colTop], 0),
			Width:  atoiOr(fields[colWidth], 0),
			Height: atoiOr(fields[colHeight], 0),
			Conf:   conf,
			Block:  atoiOr(fields[colBlock], 0),
			Par:    atoiOr(fields[colPar], 0),
			Line:   atoiOr(fields[colLine], 0),
		})
	}
	return spans
}

func atoiOr(s string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return value
}
