// Package testsupport provides shared fixtures for package tests: temp-dir
// configurations, evidence stores, and deterministic image files.
package testsupport

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"assetizer/internal/config"
	"assetizer/internal/evidence"
)

// NewConfig returns a validated configuration rooted in a per-test temp
// directory, with its directory tree already created.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// MustOpenStore opens the evidence store at the configured path and closes
// it when the test finishes.
func MustOpenStore(t *testing.T, cfg *config.Config) *evidence.Store {
	t.Helper()
	store, err := evidence.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// WritePNG writes a deterministic striped test image. Equal seeds produce
// byte-identical files, so duplicate detection in tests is exact.
func WritePNG(t *testing.T, path string, seed uint8) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			value := uint8(24)
			if (y+int(seed))%8 < 2 && x%16 < 10 {
				value = 220 + seed%16
			}
			img.SetNRGBA(x, y, color.NRGBA{R: value, G: value, B: value, A: 255})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create image directory: %v", err)
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("encode image: %v", err)
	}
}
