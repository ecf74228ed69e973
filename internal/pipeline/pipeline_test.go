package pipeline

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheengine"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/edgeerr"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/entrystore"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/syncmanager"
)

type stubTextEngine struct {
	result TranslationResult
	err    error
}

func (s stubTextEngine) TranslateText(ctx context.Context, text, src, tgt, context string) (TranslationResult, error) {
	return s.result, s.err
}

func newTestPipeline(t *testing.T, local, cloud TextEngine) (*Pipeline, *cacheengine.Engine, *syncmanager.Manager) {
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
		fakeCloudClient{}, syncmanager.Config{DeviceID: "dev-1", SyncInterval: time.Minute, ProbeTimeout: time.Second, UploadTimeout: time.Second, ModelTimeout: time.Second},
	)
	require.NoError(t, err)

	p := New(engine, sm, local, cloud, nil, nil)
	return p, engine, sm
}

// fakeCloudClient is a minimal syncmanager.CloudClient stand-in; the
// Pipeline tests never trigger a real sync cycle, only Enqueue.
type fakeCloudClient struct{}

func (fakeCloudClient) Probe(ctx context.Context) error { return nil }
func (fakeCloudClient) Upload(ctx context.Context, deviceID string, items []*cacheentry.SyncRecord) error {
	return nil
}
func (fakeCloudClient) FetchManifest(ctx context.Context, deviceID string) (map[string]cacheentry.ModelDescriptor, error) {
	return map[string]cacheentry.ModelDescriptor{}, nil
}
func (fakeCloudClient) DownloadModel(ctx context.Context, filename string) (io.ReadCloser, error) {
	return nil, errors.New("no models in this test")
}

func TestPipeline_BadRequest(t *testing.T) {
	p, _, _ := newTestPipeline(t, stubTextEngine{}, nil)
	_, err := p.TranslateRequest(context.Background(), "", "en", "es", "general")
	assert.ErrorIs(t, err, edgeerr.BadRequest)
}

func TestPipeline_MissThenCacheHit(t *testing.T) {
	local := stubTextEngine{result: TranslationResult{TranslatedText: "Hola mundo", Confidence: "high"}}
	p, _, sm := newTestPipeline(t, local, nil)

	resp, err := p.TranslateRequest(context.Background(), "Hello world", "en", "es", "general")
	require.NoError(t, err)
	assert.False(t, resp.FromCache)
	assert.Equal(t, "local", resp.Source)
	assert.Equal(t, "Hola mundo", resp.Result.TranslatedText)

	n, err := sm.QueueLength()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a sync record must be enqueued on a fresh write")

	resp2, err := p.TranslateRequest(context.Background(), "Hello world", "en", "es", "general")
	require.NoError(t, err)
	assert.True(t, resp2.FromCache)
	assert.Equal(t, "cache", resp2.Source)
}

func TestPipeline_LocalFailureFallsBackToCloud(t *testing.T) {
	local := stubTextEngine{err: errors.New("local engine unavailable")}
	cloud := stubTextEngine{result: TranslationResult{TranslatedText: "Hola", Confidence: "medium"}}
	p, _, _ := newTestPipeline(t, local, cloud)

	resp, err := p.TranslateRequest(context.Background(), "Hello", "en", "es", "general")
	require.NoError(t, err)
	assert.Equal(t, "cloud", resp.Source)
	assert.Equal(t, "Hola", resp.Result.TranslatedText)
}

func TestPipeline_NoEngineAvailable(t *testing.T) {
	p, _, _ := newTestPipeline(t, nil, nil)
	_, err := p.TranslateRequest(context.Background(), "Hello", "en", "es", "general")
	assert.ErrorIs(t, err, edgeerr.EngineFailed)
}
