package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"assetizer/internal/services"
)

// Metadata is the subset of the view response the pipeline persists.
type Metadata struct {
	VideoID     string `json:"bvid"`
	Title       string `json:"title"`
	DurationSec int64  `json:"duration"`
	Owner       string `json:"owner,omitempty"`
	CID         int64  `json:"cid,omitempty"`
	Raw         []byte `json:"-"`
}

// StreamDescriptor points at a playable stream for the source stage.
type StreamDescriptor struct {
	URL     string `json:"url"`
	Quality int    `json:"quality,omitempty"`
	Raw     []byte `json:"-"`
}

// Client fetches video metadata and stream descriptors from the upstream API.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.bilibili.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	endpoint := c.baseURL + path + "?" + query.Encode()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrCollaborator, "", "fetcher", "build request", err)
	}
	request.Header.Set("User-Agent", "assetizer/1.0")

	response, err := c.http.Do(request)
	if err != nil {
		return nil, services.Wrap(services.ErrCollaborator, "", "fetcher", "request "+path, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 8<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrCollaborator, "", "fetcher", "read response", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrCollaborator, "", "fetcher",
			fmt.Sprintf("HTTP %d from %s", response.StatusCode, path), nil)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, services.Wrap(services.ErrCollaborator, "", "fetcher", "decode response", err)
	}
	if envelope.Code != 0 {
		return nil, services.Wrap(services.ErrCollaborator, "", "fetcher",
			fmt.Sprintf("API error %d: %s", envelope.Code, envelope.Message), nil)
	}
	return envelope.Data, nil
}

// Fetch returns video metadata for an identifier. API-level failures come
// back as collaborator errors; callers decide whether to proceed without
// metadata.
func (c *Client) Fetch(ctx context.Context, videoID string) (Metadata, error) {
	query := url.Values{"bvid": {videoID}}
	data, err := c.get(ctx, "/x/web-interface/view", query)
	if err != nil {
		return Metadata{}, err
	}

	var payload struct {
		BVID     string `json:"bvid"`
		Title    string `json:"title"`
		Duration int64  `json:"duration"`
		CID      int64  `json:"cid"`
		Owner    struct {
			Name string `json:"name"`
		} `json:"owner"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Metadata{}, services.Wrap(services.ErrCollaborator, "", "fetcher", "decode view payload", err)
	}
	return Metadata{
		VideoID:     payload.BVID,
		Title:       payload.Title,
		DurationSec: payload.Duration,
		Owner:       payload.Owner.Name,
		CID:         payload.CID,
		Raw:         data,
	}, nil
}

// Download streams a URL to dest through a temp file so an interrupted
// download never leaves a partial artifact in place.
func (c *Client) Download(ctx context.Context, streamURL, dest string) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return services.Wrap(services.ErrCollaborator, "", "fetcher", "build download request", err)
	}
	request.Header.Set("User-Agent", "assetizer/1.0")
	request.Header.Set("Referer", "https://www.bilibili.com")

	// Streams are large; do not apply the metadata timeout.
	client := &http.Client{Transport: c.http.Transport}
	response, err := client.Do(request)
	if err != nil {
		return services.Wrap(services.ErrCollaborator, "", "fetcher", "download stream", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrCollaborator, "", "fetcher",
			fmt.Sprintf("HTTP %d downloading stream", response.StatusCode), nil)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "fetcher", "ensure download directory", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "fetcher", "create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, response.Body); err != nil {
		tmp.Close()
		return services.Wrap(services.ErrCollaborator, "", "fetcher", "write stream", err)
	}
	if err := tmp.Close(); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "fetcher", "close temp file", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "fetcher", "finalize download", err)
	}
	return nil
}

// FetchStream resolves a playable stream URL for the source stage download.
func (c *Client) FetchStream(ctx context.Context, videoID string, cid int64) (StreamDescriptor, error) {
	query := url.Values{
		"bvid": {videoID},
		"cid":  {fmt.Sprintf("%d", cid)},
	}
	data, err := c.get(ctx, "/x/player/playurl", query)
	if err != nil {
		return StreamDescriptor{}, err
	}

	var payload struct {
		Quality int `json:"quality"`
		DURL    []struct {
			URL string `json:"url"`
		} `json:"durl"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return StreamDescriptor{}, services.Wrap(services.ErrCollaborator, "", "fetcher", "decode playurl payload", err)
	}
	if len(payload.DURL) == 0 {
		return StreamDescriptor{}, services.Wrap(services.ErrCollaborator, "", "fetcher", "no stream in playurl response", nil)
	}
	return StreamDescriptor{
		URL:     payload.DURL[0].URL,
		Quality: payload.Quality,
		Raw:     data,
	}, nil
}
