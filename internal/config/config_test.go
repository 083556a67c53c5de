package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("file should not exist")
	}
	if resolved != path {
		t.Fatalf("resolved path mismatch: %q", resolved)
	}
	if cfg.Timeline.BucketSec != 15 {
		t.Fatalf("expected default bucket_sec, got %d", cfg.Timeline.BucketSec)
	}
	if cfg.Query.TopK != 8 {
		t.Fatalf("expected default top_k, got %d", cfg.Query.TopK)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[frames]
interval_sec = 5.0
max_frames = 100

[query]
top_k = 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Frames.IntervalSec != 5.0 {
		t.Fatalf("interval_sec not applied: %v", cfg.Frames.IntervalSec)
	}
	if cfg.Frames.MaxFrames != 100 {
		t.Fatalf("max_frames not applied: %d", cfg.Frames.MaxFrames)
	}
	if cfg.Query.TopK != 3 {
		t.Fatalf("top_k not applied: %d", cfg.Query.TopK)
	}
	if cfg.DatabasePath() != filepath.Join(dir, "data", "assetizer.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}

func TestValidateRejectsMutuallyExclusiveSampling(t *testing.T) {
	cfg := Default()
	cfg.Frames.IntervalSec = 3.0
	cfg.Frames.SceneThresh = 0.4
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected mutual exclusion error, got %v", err)
	}
}

func TestValidateRejectsNoSamplingMode(t *testing.T) {
	cfg := Default()
	cfg.Frames.IntervalSec = 0
	cfg.Frames.SceneThresh = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when neither sampling mode is set")
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "yaml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := ExpandPath("~/data")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "data") {
		t.Fatalf("unexpected expansion: %q", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{cfg.Paths.DataDir, cfg.AssetsDir(), cfg.Paths.LogDir} {
		info, err := os.Stat(want)
		if err != nil || !info.IsDir() {
			t.Fatalf("directory %q not created: %v", want, err)
		}
	}
}
