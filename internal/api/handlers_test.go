package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheengine"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/entrystore"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/pipeline"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/syncmanager"
)

type stubEngine struct {
	result pipeline.TranslationResult
	err    error
}

func (s stubEngine) TranslateText(ctx context.Context, text, src, tgt, context string) (pipeline.TranslationResult, error) {
	return s.result, s.err
}

type stubCloudClient struct{}

func (stubCloudClient) Probe(ctx context.Context) error { return errors.New("offline in tests") }
func (stubCloudClient) Upload(ctx context.Context, deviceID string, items []*cacheentry.SyncRecord) error {
	return nil
}
func (stubCloudClient) FetchManifest(ctx context.Context, deviceID string) (map[string]cacheentry.ModelDescriptor, error) {
	return nil, nil
}
func (stubCloudClient) DownloadModel(ctx context.Context, filename string) (io.ReadCloser, error) {
	return nil, errors.New("no models")
}

func newTestHandler(t *testing.T) *handler {
	t.Helper()
	dir := t.TempDir()

	store := entrystore.New(filepath.Join(dir, "cache"))
	require.NoError(t, store.Load())
	engine := cacheengine.New(store, cacheengine.Config{
		SizeLimit: 1000, DefaultTTL: time.Hour, OfflinePriorityThreshold: 5,
		CompressionEnabled: true, CompressionThreshold: 1024, CompressionLevel: 6, Enabled: true,
	})

	sm, err := syncmanager.New(
		filepath.Join(dir, "sync"), filepath.Join(dir, "models"), filepath.Join(dir, "sync-config.json"),
		stubCloudClient{}, syncmanager.Config{DeviceID: "dev-1", SyncInterval: time.Minute, ProbeTimeout: time.Second, UploadTimeout: time.Second, ModelTimeout: time.Second},
	)
	require.NoError(t, err)

	local := stubEngine{result: pipeline.TranslationResult{TranslatedText: "Hola mundo", Confidence: "high"}}
	pl := pipeline.New(engine, sm, local, nil, nil, nil)

	return &handler{pipeline: pl, engine: engine, sync: sm}
}

func newTestServer(t *testing.T) *httptest.Server {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.routes(mux)
	return httptest.NewServer(withMiddleware(mux))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTranslateRequest_MissThenHit(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	body, _ := json.Marshal(translateRequestBody{Text: "Hello world", SourceLang: "en", TargetLang: "es", Context: "general"})

	resp, err := http.Post(srv.URL+"/v1/translate", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out pipeline.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.FromCache)
	assert.Equal(t, "Hola mundo", out.Result.TranslatedText)

	resp2, err := http.Post(srv.URL+"/v1/translate", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp2.Body.Close()
	var out2 pipeline.Response
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&out2))
	assert.True(t, out2.FromCache)
}

func TestTranslateRequest_BadRequestIsMapped(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	body, _ := json.Marshal(translateRequestBody{Text: "", SourceLang: "en", TargetLang: "es"})
	resp, err := http.Post(srv.URL+"/v1/translate", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCacheGet_UnknownClassIsBadRequest(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/cache/bogus/some-key")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCacheGet_MissIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/cache/translation/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSyncStatusAndEnabled(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	body, _ := json.Marshal(map[string]bool{"enabled": false})
	resp, err := http.Post(srv.URL+"/v1/sync/enabled", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var status syncmanager.ConfigState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.False(t, status.Enabled)
}

func TestSyncTest_ReportsUnreachable(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/sync/test")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, false, out["reachable"])
}
