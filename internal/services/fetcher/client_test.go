package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"assetizer/internal/services"
)

func TestFetchParsesViewResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/x/web-interface/view" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("bvid"); got != "BV1vCzDBYEEa" {
			t.Fatalf("bvid = %q", got)
		}
		w.Write([]byte(`{"code":0,"data":{"bvid":"BV1vCzDBYEEa","title":"demo video","duration":60,"owner":{"name":"uploader"}}}`))
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	meta, err := client.Fetch(context.Background(), "BV1vCzDBYEEa")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if meta.Title != "demo video" || meta.DurationSec != 60 || meta.Owner != "uploader" {
		t.Fatalf("meta = %+v", meta)
	}
	if len(meta.Raw) == 0 {
		t.Fatal("raw payload not retained")
	}
}

func TestFetchAPIErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":-404,"message":"video not found"}`))
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	_, err := client.Fetch(context.Background(), "BV1vCzDBYEEa")
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	_, err := client.Fetch(context.Background(), "BV1vCzDBYEEa")
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
}

func TestFetchStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/x/player/playurl" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"code":0,"data":{"quality":64,"durl":[{"url":"https://cdn.example/stream.mp4"}]}}`))
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	stream, err := client.FetchStream(context.Background(), "BV1vCzDBYEEa", 12345)
	if err != nil {
		t.Fatalf("FetchStream: %v", err)
	}
	if stream.URL != "https://cdn.example/stream.mp4" || stream.Quality != 64 {
		t.Fatalf("stream = %+v", stream)
	}
}

func TestDownloadWritesAtomically(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("video-bytes"))
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	dest := filepath.Join(t.TempDir(), "source", "video.mp4")
	if err := client.Download(context.Background(), server.URL+"/stream.mp4", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "video-bytes" {
		t.Fatalf("content = %q", data)
	}

	entries, err := os.ReadDir(filepath.Dir(dest))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestDownloadHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	dest := filepath.Join(t.TempDir(), "video.mp4")
	err := client.Download(context.Background(), server.URL+"/stream.mp4", dest)
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("failed download must not leave a file")
	}
}

func TestFetchStreamEmptyDURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"data":{"quality":64,"durl":[]}}`))
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	_, err := client.FetchStream(context.Background(), "BV1vCzDBYEEa", 12345)
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
}
