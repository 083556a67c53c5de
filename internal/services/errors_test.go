package services

import (
	"errors"
	"testing"
)

func TestWrapPreservesMarker(t *testing.T) {
	base := errors.New("exit status 1")
	err := Wrap(ErrCollaborator, "frames", "sample video", "ffmpeg failed", base)
	if !errors.Is(err, ErrCollaborator) {
		t.Fatalf("expected collaborator marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := Wrap(nil, "ocr", "", "", nil)
	if !errors.Is(err, ErrCollaborator) {
		t.Fatalf("nil marker should default to ErrCollaborator, got %v", err)
	}
}

func TestWrapDetail(t *testing.T) {
	err := Wrap(ErrValidation, "select", "load timeline", "timeline missing", nil)
	want := "validation error: select: load timeline: timeline missing"
	if err.Error() != want {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestFatal(t *testing.T) {
	if !Fatal(Wrap(ErrConfiguration, "frames", "", "interval must be positive", nil)) {
		t.Fatal("configuration errors are fatal")
	}
	if !Fatal(Wrap(ErrNotFound, "show", "", "asset missing", nil)) {
		t.Fatal("not-found errors are fatal")
	}
	if Fatal(Wrap(ErrCollaborator, "ocr", "", "tesseract crashed", nil)) {
		t.Fatal("collaborator errors are recorded, not fatal")
	}
}
