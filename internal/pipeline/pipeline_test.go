package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"assetizer/internal/config"
	"assetizer/internal/evidence"
	"assetizer/internal/frames"
	"assetizer/internal/logging"
	"assetizer/internal/manifest"
	"assetizer/internal/pipeline"
	"assetizer/internal/services"
	"assetizer/internal/services/fetcher"
	"assetizer/internal/services/transcriber"
	"assetizer/internal/testsupport"
	"assetizer/internal/transcript"
)

const testVideoID = "BV1xx411c7mD"

func newAPIServer(t *testing.T, stream []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/x/web-interface/view", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":0,"message":"0","data":{"bvid":%q,"title":"Build Walkthrough","duration":12,"cid":17,"owner":{"name":"demo"}}}`, testVideoID)
	})
	mux.HandleFunc("/x/player/playurl", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":0,"message":"0","data":{"quality":80,"durl":[{"url":%q}]}}`, server.URL+"/stream")
	})
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Write(stream)
	})
	return server
}

func newFailingServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestPipeline(t *testing.T, baseURL string) (*pipeline.Pipeline, *evidence.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Fetcher.BaseURL = baseURL
	store := testsupport.MustOpenStore(t, cfg)
	p := pipeline.New(cfg, store, logging.NewNop())
	p.WithFetcher(fetcher.New(baseURL, 5*time.Second))
	return p, store, cfg
}

// stubMedia installs an ffmpeg runner serving probe, sampling, and audio
// extraction. Sampling writes one PNG per seed; equal seeds collide.
func stubMedia(t *testing.T, p *pipeline.Pipeline, seeds []uint8) {
	t.Helper()
	p.Media().WithRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		switch {
		case name == "ffprobe":
			return "12.0\n", nil
		case contains(args, "-vn"):
			dest := args[len(args)-1]
			if err := os.WriteFile(dest, []byte("RIFF fake wav"), 0o644); err != nil {
				return "", err
			}
			return "", nil
		default:
			dir := filepath.Dir(args[len(args)-1])
			for i, seed := range seeds {
				testsupport.WritePNG(t, filepath.Join(dir, fmt.Sprintf("frame_%06d.png", i+1)), seed)
			}
			return "", nil
		}
	})
}

func stubEngine(p *pipeline.Pipeline, words ...string) {
	header := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"
	p.Engine().WithRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		rows := []string{header}
		for i, word := range words {
			rows = append(rows, fmt.Sprintf("5\t1\t1\t1\t1\t%d\t%d\t10\t60\t20\t91.0\t%s", i+1, 10+i*70, word))
		}
		return strings.Join(rows, "\n") + "\n", nil
	})
}

type fakeASR struct {
	segments []transcriber.Segment
	err      error
}

func (f fakeASR) Transcribe(ctx context.Context, audioPath, workDir string) ([]transcriber.Segment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

func installStubs(t *testing.T, p *pipeline.Pipeline) {
	t.Helper()
	stubMedia(t, p, []uint8{1, 2, 2, 3})
	stubEngine(p, "boot", "sequence", "init")
	p.WithTranscriber(fakeASR{segments: []transcriber.Segment{
		{Start: 0, End: 4.2, Text: "welcome to the build"},
		{Start: 4.2, End: 9.0, Text: "closing remarks"},
	}})
}

func TestIngestRegistersAsset(t *testing.T) {
	server := newAPIServer(t, nil)
	p, store, _ := newTestPipeline(t, server.URL)
	ctx := context.Background()

	result, err := p.Ingest(ctx, "https://www.bilibili.com/video/"+testVideoID+"?p=1")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.AssetID != testVideoID {
		t.Fatalf("asset id = %q", result.AssetID)
	}
	if !result.Created || !result.MetadataFetched {
		t.Fatalf("created=%v fetched=%v", result.Created, result.MetadataFetched)
	}
	if result.Title != "Build Walkthrough" {
		t.Errorf("title = %q", result.Title)
	}

	layout := p.Layout(testVideoID)
	for _, path := range []string{layout.Manifest(), layout.Metadata(), layout.View()} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing artifact %s: %v", path, err)
		}
	}
	if _, err := store.GetAsset(ctx, testVideoID); err != nil {
		t.Errorf("asset not registered: %v", err)
	}
}

func TestIngestSurvivesMetadataFailure(t *testing.T) {
	server := newFailingServer(t)
	p, store, _ := newTestPipeline(t, server.URL)
	ctx := context.Background()

	result, err := p.Ingest(ctx, testVideoID)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.FetchErr == nil {
		t.Fatal("expected fetch error to be reported")
	}
	if result.MetadataFetched {
		t.Fatal("metadata should not be marked fetched")
	}
	if _, err := store.GetAsset(ctx, testVideoID); err != nil {
		t.Errorf("asset should be registered anyway: %v", err)
	}

	entries, err := manifest.ReadProvenance(p.Layout(testVideoID).Provenance())
	if err != nil {
		t.Fatalf("read provenance: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != manifest.OutcomeSkipped {
		t.Fatalf("provenance = %+v", entries)
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	server := newAPIServer(t, nil)
	p, _, _ := newTestPipeline(t, server.URL)

	if _, err := p.Ingest(context.Background(), "https://example.com/watch?v=abc"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestRunStageRequiresIngest(t *testing.T) {
	server := newAPIServer(t, nil)
	p, _, _ := newTestPipeline(t, server.URL)

	_, err := p.RunStage(context.Background(), testVideoID, manifest.StageFrames, false)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestRunStageRequiresPrerequisite(t *testing.T) {
	server := newAPIServer(t, nil)
	p, _, _ := newTestPipeline(t, server.URL)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, testVideoID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	_, err := p.RunStage(ctx, testVideoID, manifest.StageFrames, false)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestRunSequenceEndToEnd(t *testing.T) {
	stream := []byte("not really an mp4 but good enough to copy")
	server := newAPIServer(t, stream)
	p, store, _ := newTestPipeline(t, server.URL)
	installStubs(t, p)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, testVideoID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	outcomes, err := p.RunSequence(ctx, testVideoID, manifest.StageIndex, false, true)
	if err != nil {
		t.Fatalf("run sequence: %v", err)
	}
	if len(outcomes) != len(manifest.Stages()) {
		t.Fatalf("outcomes = %d, want %d", len(outcomes), len(manifest.Stages()))
	}
	for _, outcome := range outcomes {
		if outcome.Err != nil || outcome.Status != manifest.StatusDone {
			t.Fatalf("stage %s: status=%s err=%v", outcome.Stage, outcome.Status, outcome.Err)
		}
	}

	layout := p.Layout(testVideoID)
	video, err := os.ReadFile(layout.Video())
	if err != nil {
		t.Fatalf("read video: %v", err)
	}
	if string(video) != string(stream) {
		t.Error("downloaded video does not match stream bytes")
	}

	records, err := frames.ReadRecords(layout.FrameRecords())
	if err != nil {
		t.Fatalf("read frame records: %v", err)
	}
	if len(records) != 4 || len(frames.Retained(records)) != 3 {
		t.Fatalf("records=%d retained=%d", len(records), len(frames.Retained(records)))
	}

	segments, err := transcript.Read(layout.Transcript())
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if len(segments) != 2 || segments[0].SegmentID != "SEG_000001" {
		t.Fatalf("segments = %+v", segments)
	}

	units, err := store.CountUnits(ctx, testVideoID)
	if err != nil {
		t.Fatalf("count units: %v", err)
	}
	if units[evidence.KindTranscript] != 2 {
		t.Errorf("transcript units = %d", units[evidence.KindTranscript])
	}
	if units[evidence.KindOCRFrame] != 3 {
		t.Errorf("ocr units = %d", units[evidence.KindOCRFrame])
	}

	hits, err := store.Search(ctx, testVideoID, "welcome", 8)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || !strings.HasPrefix(hits[0].Citation, "[seg:SEG_000001") {
		t.Fatalf("hits = %+v", hits)
	}
	hits, err = store.Search(ctx, testVideoID, "boot", 8)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("ocr hits = %d", len(hits))
	}
}

func TestRunSequenceSecondPassHitsCache(t *testing.T) {
	server := newAPIServer(t, []byte("stream bytes"))
	p, _, _ := newTestPipeline(t, server.URL)
	installStubs(t, p)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, testVideoID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := p.RunSequence(ctx, testVideoID, manifest.StageIndex, false, true); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	outcomes, err := p.RunSequence(ctx, testVideoID, manifest.StageIndex, false, true)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	for _, outcome := range outcomes {
		if !outcome.CacheHit {
			t.Errorf("stage %s recomputed on unchanged inputs", outcome.Stage)
		}
	}
}

func TestRunSequenceForceRecomputes(t *testing.T) {
	server := newAPIServer(t, []byte("stream bytes"))
	p, _, _ := newTestPipeline(t, server.URL)
	installStubs(t, p)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, testVideoID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := p.RunSequence(ctx, testVideoID, manifest.StageIndex, false, true); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	outcomes, err := p.RunSequence(ctx, testVideoID, manifest.StageIndex, true, true)
	if err != nil {
		t.Fatalf("forced pass: %v", err)
	}
	for _, outcome := range outcomes {
		if outcome.CacheHit {
			t.Errorf("stage %s served from cache under force", outcome.Stage)
		}
	}
}

func TestRunSequenceSkipsDownstreamOfFailure(t *testing.T) {
	server := newFailingServer(t)
	p, store, _ := newTestPipeline(t, server.URL)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, testVideoID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	outcomes, err := p.RunSequence(ctx, testVideoID, manifest.StageIndex, false, false)
	if err != nil {
		t.Fatalf("run sequence: %v", err)
	}

	byStage := map[manifest.Stage]pipeline.Outcome{}
	for _, outcome := range outcomes {
		byStage[outcome.Stage] = outcome
	}
	if byStage[manifest.StageSource].Err == nil {
		t.Fatal("source should fail with the API down")
	}
	for _, st := range []manifest.Stage{
		manifest.StageFrames, manifest.StageTimeline, manifest.StageSelect,
		manifest.StageOCR, manifest.StageOCRNormalize, manifest.StageTranscript,
	} {
		if byStage[st].SkipReason == "" {
			t.Errorf("stage %s should be skipped, got status %s", st, byStage[st].Status)
		}
	}

	// Index has no prerequisites: it runs and records an empty result.
	index := byStage[manifest.StageIndex]
	if index.Err != nil || index.Status != manifest.StatusDone {
		t.Fatalf("index: status=%s err=%v", index.Status, index.Err)
	}
	units, err := store.CountUnits(ctx, testVideoID)
	if err != nil {
		t.Fatalf("count units: %v", err)
	}
	if len(units) != 0 {
		t.Errorf("units = %v, want none", units)
	}
}

func TestRunSequenceStopOnError(t *testing.T) {
	server := newFailingServer(t)
	p, _, _ := newTestPipeline(t, server.URL)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, testVideoID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	outcomes, err := p.RunSequence(ctx, testVideoID, manifest.StageIndex, false, true)
	if err == nil {
		t.Fatal("expected the source failure to abort the run")
	}
	if len(outcomes) != 1 || outcomes[0].Stage != manifest.StageSource {
		t.Fatalf("outcomes = %+v", outcomes)
	}
}

func TestLocalSourceSkipsDownload(t *testing.T) {
	server := newFailingServer(t)
	p, _, cfg := newTestPipeline(t, server.URL)
	stubMedia(t, p, []uint8{1, 2})
	ctx := context.Background()

	local := filepath.Join(cfg.Paths.DataDir, "local.mp4")
	if err := os.WriteFile(local, []byte("local capture"), 0o644); err != nil {
		t.Fatalf("write local file: %v", err)
	}
	p.WithLocalSource(local)

	if _, err := p.Ingest(ctx, testVideoID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	result, err := p.RunStage(ctx, testVideoID, manifest.StageSource, false)
	if err != nil {
		t.Fatalf("source stage: %v", err)
	}
	if result.Status != manifest.StatusDone {
		t.Fatalf("status = %s", result.Status)
	}
	video, err := os.ReadFile(p.Layout(testVideoID).Video())
	if err != nil {
		t.Fatalf("read video: %v", err)
	}
	if string(video) != "local capture" {
		t.Errorf("video = %q", video)
	}
}

func TestShowReportsStagesAndUnits(t *testing.T) {
	server := newAPIServer(t, []byte("stream bytes"))
	p, _, _ := newTestPipeline(t, server.URL)
	installStubs(t, p)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, testVideoID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := p.RunSequence(ctx, testVideoID, manifest.StageIndex, false, true); err != nil {
		t.Fatalf("run sequence: %v", err)
	}

	status, err := p.Show(ctx, testVideoID)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if status.AssetID != testVideoID || status.Title != "Build Walkthrough" {
		t.Fatalf("status = %+v", status)
	}
	if len(status.Stages) != len(manifest.Stages()) {
		t.Fatalf("stage rows = %d", len(status.Stages))
	}
	for _, row := range status.Stages {
		if row.Status != manifest.StatusDone {
			t.Errorf("stage %s = %s", row.Stage, row.Status)
		}
	}
	if status.Units[evidence.KindTranscript] != 2 {
		t.Errorf("transcript units = %d", status.Units[evidence.KindTranscript])
	}
}

func TestCleanRemovesAssetAndEvidence(t *testing.T) {
	server := newAPIServer(t, nil)
	p, store, _ := newTestPipeline(t, server.URL)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, testVideoID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := p.Clean(ctx, testVideoID); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if _, err := os.Stat(p.Layout(testVideoID).Dir); !os.IsNotExist(err) {
		t.Error("asset directory still present")
	}
	if _, err := store.GetAsset(ctx, testVideoID); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("asset row still present: %v", err)
	}
	if err := p.Clean(ctx, testVideoID); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("second clean = %v, want not found", err)
	}
}

func contains(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}
