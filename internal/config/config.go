package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Fetcher contains configuration for the video metadata API.
type Fetcher struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Frames contains frame sampling parameters.
type Frames struct {
	IntervalSec float64 `toml:"interval_sec"`
	SceneThresh float64 `toml:"scene_thresh"` // 0 disables scene sampling
	MaxFrames   int     `toml:"max_frames"`   // 0 = unlimited
	MaxWidth    int     `toml:"max_width"`
}

// Timeline contains info-density timeline parameters.
type Timeline struct {
	BucketSec int `toml:"bucket_sec"`
}

// Select contains frame selection parameters.
type Select struct {
	TopBuckets int `toml:"top_buckets"`
	MaxFrames  int `toml:"max_frames"`
}

// OCR contains configuration for the text recognition engine.
type OCR struct {
	Language      string  `toml:"language"`
	PageSegMode   int     `toml:"page_seg_mode"`
	MinConfidence float64 `toml:"min_confidence"`
	Timeout       int     `toml:"timeout"`
}

// Transcript contains configuration for the transcription provider.
type Transcript struct {
	Model   string `toml:"model"`
	Timeout int    `toml:"timeout"`
}

// Index contains evidence chunking parameters.
type Index struct {
	MergeSegments bool `toml:"merge_segments"`
	MergeMaxChars int  `toml:"merge_max_chars"`
}

// Query contains retrieval parameters.
type Query struct {
	TopK int `toml:"top_k"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for assetizer.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Fetcher: video metadata API endpoint
//   - Frames / Timeline / Select: sampling, density bucketing, selection
//   - OCR: recognition engine settings
//   - Transcript: transcription provider settings
//   - Index / Query: evidence chunking and retrieval
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Fetcher    Fetcher    `toml:"fetcher"`
	Frames     Frames     `toml:"frames"`
	Timeline   Timeline   `toml:"timeline"`
	Select     Select     `toml:"select"`
	OCR        OCR        `toml:"ocr"`
	Transcript Transcript `toml:"transcript"`
	Index      Index      `toml:"index"`
	Query      Query      `toml:"query"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/assetizer/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("assetizer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Fetcher.BaseURL = strings.TrimRight(strings.TrimSpace(c.Fetcher.BaseURL), "/")
	c.OCR.Language = strings.TrimSpace(c.OCR.Language)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// EnsureDirectories creates the directories required for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.AssetsDir(), c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AssetsDir returns the directory holding per-asset artifact trees.
func (c *Config) AssetsDir() string {
	return filepath.Join(c.Paths.DataDir, "assets")
}

// DatabasePath returns the path of the shared evidence database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "assetizer.db")
}

// FFmpegBinary returns the ffmpeg executable name used for sampling and
// audio extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// TesseractBinary returns the recognition engine executable name.
func (c *Config) TesseractBinary() string {
	return "tesseract"
}

// TranscriberBinary returns the transcription executable name.
func (c *Config) TranscriberBinary() string {
	return "whisper"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
