package syncmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/edgeerr"
)

// CloudClient is the Sync Manager's view of the cloud REST surface (spec §6).
type CloudClient interface {
	Probe(ctx context.Context) error
	Upload(ctx context.Context, deviceID string, items []*cacheentry.SyncRecord) error
	FetchManifest(ctx context.Context, deviceID string) (map[string]cacheentry.ModelDescriptor, error)
	DownloadModel(ctx context.Context, filename string) (io.ReadCloser, error)
}

// HTTPClient is the concrete CloudClient talking to the real cloud API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	signer  *RequestSigner
}

// NewHTTPClient builds a client against baseURL. signer may be nil, in
// which case requests are sent unsigned (CLOUD_AUTH_MODE=none).
func NewHTTPClient(baseURL string, httpClient *http.Client, signer *RequestSigner) *HTTPClient {
	return &HTTPClient{baseURL: baseURL, http: httpClient, signer: signer}
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.signer != nil && c.signer.IsConfigured() {
		if err := c.signer.Sign(ctx, req, body); err != nil {
			return nil, fmt.Errorf("syncmanager: sign request: %w", err)
		}
	}
	return req, nil
}

// Probe implements the reachability check (spec §4.4): GET /health.
func (c *HTTPClient) Probe(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("syncmanager: probe: %w: %w", edgeerr.UpstreamUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("syncmanager: probe: %w: status %d", edgeerr.UpstreamUnreachable, resp.StatusCode)
	}
	return nil
}

type syncRequestBody struct {
	DeviceID string                   `json:"deviceId"`
	Items    []*cacheentry.SyncRecord `json:"items"`
}

type syncResponseBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Upload implements the batch upload (spec §4.4): POST /edge/sync.
func (c *HTTPClient) Upload(ctx context.Context, deviceID string, items []*cacheentry.SyncRecord) error {
	body, err := json.Marshal(syncRequestBody{DeviceID: deviceID, Items: items})
	if err != nil {
		return fmt.Errorf("syncmanager: marshal upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/edge/sync", body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("syncmanager: upload: %w: %w", edgeerr.UpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("syncmanager: upload: %w: status %d", edgeerr.UpstreamUnreachable, resp.StatusCode)
	}

	var parsed syncResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("syncmanager: decode upload response: %w", err)
	}
	if !parsed.Success {
		return fmt.Errorf("syncmanager: upload rejected: %s", parsed.Error)
	}
	return nil
}

type manifestResponseBody struct {
	Success  bool `json:"success"`
	Manifest struct {
		Models map[string]cacheentry.ModelDescriptor `json:"models"`
	} `json:"manifest"`
}

// FetchManifest implements the manifest pull (spec §4.4, §6):
// GET /edge/models/manifest?deviceId=….
func (c *HTTPClient) FetchManifest(ctx context.Context, deviceID string) (map[string]cacheentry.ModelDescriptor, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/edge/models/manifest?deviceId="+deviceID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("syncmanager: fetch manifest: %w: %w", edgeerr.UpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("syncmanager: fetch manifest: %w: status %d", edgeerr.UpstreamUnreachable, resp.StatusCode)
	}

	var parsed manifestResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("syncmanager: decode manifest: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("syncmanager: manifest fetch unsuccessful")
	}
	return parsed.Manifest.Models, nil
}

// DownloadModel implements the binary model stream (spec §6): GET /edge/models/<filename>.
func (c *HTTPClient) DownloadModel(ctx context.Context, filename string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/edge/models/"+filename, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("syncmanager: download model: %w: %w", edgeerr.UpstreamUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("syncmanager: download model: %w: status %d", edgeerr.UpstreamUnreachable, resp.StatusCode)
	}
	return resp.Body, nil
}

var _ CloudClient = (*HTTPClient)(nil)
