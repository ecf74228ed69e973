package syncmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheclass"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
)

func newRecord(id string, enqueuedAt int64) *cacheentry.SyncRecord {
	return &cacheentry.SyncRecord{
		ID:         id,
		EnqueuedAt: enqueuedAt,
		Kind:       "translation",
		Class:      cacheclass.Translation,
		Key:        "en:es:general:abc",
		Payload:    []byte(`{"translatedText":"hola"}`),
	}
}

// P9: sync durability - queued records survive a simulated crash/restart.
func TestQueue_SurvivesReload(t *testing.T) {
	dir := t.TempDir()
	q, err := NewQueue(dir)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(newRecord("a", 100)))
	require.NoError(t, q.Enqueue(newRecord("b", 200)))

	reopened, err := NewQueue(dir)
	require.NoError(t, err)

	records, err := reopened.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "b", records[1].ID)
}

func TestQueue_DeleteIsIdempotent(t *testing.T) {
	q, err := NewQueue(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(newRecord("a", 100)))
	require.NoError(t, q.Delete("a"))
	require.NoError(t, q.Delete("a")) // deleting twice must not error (P10)

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestQueue_ClearRemovesEverything(t *testing.T) {
	q, err := NewQueue(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(newRecord("a", 100)))
	require.NoError(t, q.Enqueue(newRecord("b", 200)))
	require.NoError(t, q.Clear())

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
