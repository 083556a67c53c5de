package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"assetizer/internal/config"
)

const testAssetID = "BV1xx411c7mD"

func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if baseURL != "" {
		cfg.Fetcher.BaseURL = baseURL
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func newViewServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/x/web-interface/view" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"code":0,"message":"0","data":{"bvid":%q,"title":"Demo Video","duration":45,"cid":9,"owner":{"name":"demo"}}}`, testAssetID)
	}))
	t.Cleanup(server.Close)
	return server
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestConfigInitCreatesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	output, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(output, target) {
		t.Errorf("output = %q", output)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("sample not written: %v", err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite: %v", err)
	}
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	output, err := runCLI(t, "--config", cfgPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"[paths]", "[frames]", "bucket_sec"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestIngestAndShow(t *testing.T) {
	server := newViewServer(t)
	cfgPath := writeTestConfig(t, server.URL)

	output, err := runCLI(t, "--config", cfgPath, "ingest", "https://www.bilibili.com/video/"+testAssetID)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(output, "registered") || !strings.Contains(output, "Demo Video") {
		t.Errorf("ingest output = %q", output)
	}

	output, err = runCLI(t, "--config", cfgPath, "show", testAssetID)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(output, "source") || !strings.Contains(output, "missing") {
		t.Errorf("show output = %q", output)
	}

	output, err = runCLI(t, "--config", cfgPath, "--json", "show", testAssetID)
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	if !strings.Contains(output, `"asset_id"`) {
		t.Errorf("json output = %q", output)
	}
}

func TestIngestRejectsInvalidInput(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	if _, err := runCLI(t, "--config", cfgPath, "ingest", "https://example.com/clip"); err == nil {
		t.Fatal("expected invalid input to fail")
	}
}

func TestExtractEnforcesStageOrder(t *testing.T) {
	server := newViewServer(t)
	cfgPath := writeTestConfig(t, server.URL)

	if _, err := runCLI(t, "--config", cfgPath, "ingest", testAssetID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	_, err := runCLI(t, "--config", cfgPath, "extract", "frames", testAssetID)
	if err == nil || !strings.Contains(err.Error(), "prerequisite") {
		t.Fatalf("err = %v, want prerequisite failure", err)
	}
}

func TestExtractPipelineRejectsUnknownUntil(t *testing.T) {
	server := newViewServer(t)
	cfgPath := writeTestConfig(t, server.URL)

	if _, err := runCLI(t, "--config", cfgPath, "ingest", testAssetID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	_, err := runCLI(t, "--config", cfgPath, "extract", "pipeline", testAssetID, "--until", "bogus")
	if err == nil || !strings.Contains(err.Error(), "unknown stage") {
		t.Fatalf("err = %v, want unknown stage", err)
	}
}

func TestQueryWithoutEvidence(t *testing.T) {
	server := newViewServer(t)
	cfgPath := writeTestConfig(t, server.URL)

	if _, err := runCLI(t, "--config", cfgPath, "ingest", testAssetID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	output, err := runCLI(t, "--config", cfgPath, "query", testAssetID, "anything")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(output, "No evidence matches") {
		t.Errorf("output = %q", output)
	}
}

func TestCleanRequiresConfirmation(t *testing.T) {
	server := newViewServer(t)
	cfgPath := writeTestConfig(t, server.URL)

	if _, err := runCLI(t, "--config", cfgPath, "ingest", testAssetID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	_, err := runCLI(t, "--config", cfgPath, "clean", testAssetID)
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("err = %v, want confirmation failure", err)
	}

	output, err := runCLI(t, "--config", cfgPath, "clean", testAssetID, "--yes")
	if err != nil {
		t.Fatalf("clean --yes: %v", err)
	}
	if !strings.Contains(output, "removed") {
		t.Errorf("output = %q", output)
	}

	if _, err := runCLI(t, "--config", cfgPath, "show", testAssetID); err == nil {
		t.Fatal("show after clean should fail")
	}
}
