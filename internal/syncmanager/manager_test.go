package syncmanager

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
)

type fakeClient struct {
	reachable     bool
	uploadErr     error
	uploadedBatch [][]*cacheentry.SyncRecord
	manifest      map[string]cacheentry.ModelDescriptor
	modelContents map[string]string
}

func (f *fakeClient) Probe(ctx context.Context) error {
	if !f.reachable {
		return errors.New("unreachable")
	}
	return nil
}

func (f *fakeClient) Upload(ctx context.Context, deviceID string, items []*cacheentry.SyncRecord) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploadedBatch = append(f.uploadedBatch, items)
	return nil
}

func (f *fakeClient) FetchManifest(ctx context.Context, deviceID string) (map[string]cacheentry.ModelDescriptor, error) {
	return f.manifest, nil
}

func (f *fakeClient) DownloadModel(ctx context.Context, filename string) (io.ReadCloser, error) {
	content, ok := f.modelContents[filename]
	if !ok {
		return nil, errors.New("no such model")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func newTestManager(t *testing.T, client CloudClient) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := New(
		filepath.Join(dir, "sync"),
		filepath.Join(dir, "models"),
		filepath.Join(dir, "sync-config.json"),
		client,
		Config{DeviceID: "dev-1", SyncInterval: time.Minute, ProbeTimeout: time.Second, UploadTimeout: time.Second, ModelTimeout: time.Second},
	)
	require.NoError(t, err)
	m.SetEnabled(true)
	return m
}

// Scenario 6: offline then reconnect - queue builds up, drains in one batch.
func TestManager_OfflineThenReconnect(t *testing.T) {
	client := &fakeClient{reachable: false, manifest: map[string]cacheentry.ModelDescriptor{}}
	m := newTestManager(t, client)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Enqueue(newRecord(string(rune('a'+i)), int64(i))))
	}
	n, err := m.QueueLength()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	err = m.RunCycle(context.Background())
	assert.Error(t, err, "cycle should fail while unreachable")
	n, _ = m.QueueLength()
	assert.Equal(t, 3, n, "queue must survive a failed probe")

	client.reachable = true
	require.NoError(t, m.RunCycle(context.Background()))

	n, err = m.QueueLength()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.Len(t, client.uploadedBatch, 1)
	assert.Len(t, client.uploadedBatch[0], 3)
}

func TestManager_UploadFailureLeavesRecordsQueued(t *testing.T) {
	client := &fakeClient{reachable: true, uploadErr: errors.New("boom"), manifest: map[string]cacheentry.ModelDescriptor{}}
	m := newTestManager(t, client)

	require.NoError(t, m.Enqueue(newRecord("a", 1)))
	err := m.RunCycle(context.Background())
	assert.Error(t, err)

	n, _ := m.QueueLength()
	assert.Equal(t, 1, n)
}

func TestManager_CannotRunTwoCyclesConcurrently(t *testing.T) {
	client := &fakeClient{reachable: true, manifest: map[string]cacheentry.ModelDescriptor{}}
	m := newTestManager(t, client)
	m.mu.Lock()
	m.syncInProgress = true
	m.mu.Unlock()

	require.NoError(t, m.RunCycle(context.Background()))
	assert.Empty(t, client.uploadedBatch)
}

func TestManager_PullsMismatchedModels(t *testing.T) {
	client := &fakeClient{
		reachable: true,
		manifest: map[string]cacheentry.ModelDescriptor{
			"en-es.bin": {Filename: "en-es.bin", Size: 5},
		},
		modelContents: map[string]string{"en-es.bin": "hello"},
	}
	m := newTestManager(t, client)

	require.NoError(t, m.RunCycle(context.Background()))

	data, err := os.ReadFile(filepath.Join(m.modelDir, "en-es.bin"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestManager_SkipsUpToDateModels(t *testing.T) {
	client := &fakeClient{
		reachable: true,
		manifest: map[string]cacheentry.ModelDescriptor{
			"en-es.bin": {Filename: "en-es.bin", Size: 5},
		},
		modelContents: map[string]string{"en-es.bin": "CHANGED"},
	}
	m := newTestManager(t, client)
	require.NoError(t, os.WriteFile(filepath.Join(m.modelDir, "en-es.bin"), []byte("hello"), 0o644))

	require.NoError(t, m.RunCycle(context.Background()))

	data, err := os.ReadFile(filepath.Join(m.modelDir, "en-es.bin"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data), "up-to-date model must not be re-downloaded")
}
