package cacheengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheclass"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/edgeerr"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/entrystore"
)

type body struct {
	TranslatedText string `json:"translatedText"`
	Confidence     string `json:"confidence"`
}

func newEngine(t *testing.T, now *int64) *Engine {
	t.Helper()
	store := entrystore.New(t.TempDir())
	require.NoError(t, store.Load())
	e := New(store, Config{
		SizeLimit:                1000,
		DefaultTTL:               time.Hour,
		OfflinePriorityThreshold: 5,
		CompressionEnabled:       true,
		CompressionThreshold:     1024,
		CompressionLevel:         6,
		Enabled:                  true,
	})
	e.WithClock(func() int64 { return *now })
	return e
}

// Scenario 1: cache hit path.
func TestEngine_CacheHitPath(t *testing.T) {
	now := int64(1000)
	e := newEngine(t, &now)

	key := "en:es:general:abc"
	require.NoError(t, e.Set(cacheclass.Translation, key, body{TranslatedText: "Hola mundo", Confidence: "high"}, SetOptions{}))

	res, err := e.Get(cacheclass.Translation, key, GetOptions{IncludeMetadata: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Entry.HitCount)
}

// P4: TTL expiry for Low-criticality entries.
func TestEngine_LowEntryExpires(t *testing.T) {
	now := int64(0)
	e := newEngine(t, &now)
	e.cfg.DefaultTTL = time.Second

	key := "en:es:general:low"
	require.NoError(t, e.Set(cacheclass.Translation, key, body{TranslatedText: "hi"}, SetOptions{Criticality: cacheentry.Low}))

	now = 1200
	_, err := e.Get(cacheclass.Translation, key, GetOptions{})
	assert.ErrorIs(t, err, edgeerr.NotFound)
}

// P5: Critical retention past TTL.
func TestEngine_CriticalEntrySurvivesExpiry(t *testing.T) {
	now := int64(0)
	e := newEngine(t, &now)
	e.cfg.DefaultTTL = time.Second

	key := "en:es:emergency:abc"
	require.NoError(t, e.Set(cacheclass.Translation, key, body{TranslatedText: "help"}, SetOptions{Criticality: cacheentry.Critical}))

	now = 5000
	res, err := e.Get(cacheclass.Translation, key, GetOptions{IncludeMetadata: true})
	require.NoError(t, err)
	assert.True(t, res.Entry.NeedsRefresh)
}

// P6: eviction under pressure preserves Critical and keeps newest writes.
func TestEngine_EvictionPreservesCriticalAndKeepsNewest(t *testing.T) {
	now := int64(1000)
	e := newEngine(t, &now)
	e.cfg.SizeLimit = 3

	require.NoError(t, e.Set(cacheclass.Translation, "k1", body{TranslatedText: "a"}, SetOptions{Criticality: cacheentry.Low}))
	now = 2000
	require.NoError(t, e.Set(cacheclass.Translation, "k2", body{TranslatedText: "b"}, SetOptions{Criticality: cacheentry.Low}))
	now = 3000
	require.NoError(t, e.Set(cacheclass.Translation, "k3", body{TranslatedText: "c"}, SetOptions{Criticality: cacheentry.Critical}))

	now = 4000
	require.NoError(t, e.Set(cacheclass.Translation, "k4", body{TranslatedText: "d"}, SetOptions{Criticality: cacheentry.Low}))

	_, err := e.Get(cacheclass.Translation, "k3", GetOptions{})
	assert.NoError(t, err, "critical entry must never be evicted")

	_, err = e.Get(cacheclass.Translation, "k4", GetOptions{})
	assert.NoError(t, err, "newest write must be kept")
	_, err = e.Get(cacheclass.Translation, "k2", GetOptions{})
	assert.NoError(t, err, "newer Low entry must be kept")
	_, err = e.Get(cacheclass.Translation, "k1", GetOptions{})
	assert.ErrorIs(t, err, edgeerr.NotFound, "oldest Low entry is evicted")
}

// P7: offline-priority promotion after threshold hits.
func TestEngine_OfflinePriorityPromotion(t *testing.T) {
	now := int64(1000)
	e := newEngine(t, &now)
	e.cfg.OfflinePriorityThreshold = 3

	key := "en:es:general:offline"
	require.NoError(t, e.Set(cacheclass.Translation, key, body{TranslatedText: "x"}, SetOptions{}))

	var last GetResult
	var err error
	for i := 0; i < 3; i++ {
		last, err = e.Get(cacheclass.Translation, key, GetOptions{IncludeMetadata: true})
		require.NoError(t, err)
	}
	assert.True(t, last.Entry.OfflinePriority)
	assert.Equal(t, 3, last.Entry.HitCount)
}

// P8: version history bound at 5.
func TestEngine_VersionHistoryBound(t *testing.T) {
	now := int64(1000)
	e := newEngine(t, &now)

	key := "en:es:general:versions"
	for i := 0; i < 8; i++ {
		now++
		require.NoError(t, e.Set(cacheclass.Translation, key, body{TranslatedText: "v"}, SetOptions{}))
	}

	res, err := e.Get(cacheclass.Translation, key, GetOptions{IncludeMetadata: true})
	require.NoError(t, err)
	assert.Len(t, res.Entry.VersionHistory, cacheentry.MaxVersionHistory)
}

// P11: merge conflict resolution picks the higher-confidence side.
func TestEngine_ResolveConflictMergePicksHigherConfidence(t *testing.T) {
	now := int64(1000)
	e := newEngine(t, &now)

	key := "en:es:general:conflict"
	require.NoError(t, e.Set(cacheclass.Translation, key, body{TranslatedText: "Gracias", Confidence: "low"}, SetOptions{}))

	local := ConflictSide{Body: []byte(`{"translatedText":"Gracias","confidence":"low"}`), Confidence: "low"}
	remote := ConflictSide{Body: []byte(`{"translatedText":"Muchas gracias","confidence":"high"}`), Confidence: "high"}

	entry, err := e.ResolveConflict(cacheclass.Translation, key, local, remote, StrategyMerge)
	require.NoError(t, err)
	assert.True(t, entry.NeedsSync)
	assert.Contains(t, string(entry.Payload), "Muchas gracias")
}

func TestEngine_GetInvalidClass(t *testing.T) {
	now := int64(1000)
	e := newEngine(t, &now)
	_, err := e.Get(cacheclass.Class(42), "x", GetOptions{})
	assert.ErrorIs(t, err, edgeerr.InvalidClass)
}

func TestEngine_CacheDisabled(t *testing.T) {
	now := int64(1000)
	e := newEngine(t, &now)
	e.cfg.Enabled = false

	require.NoError(t, e.Set(cacheclass.Translation, "k", body{TranslatedText: "x"}, SetOptions{}))
	_, err := e.Get(cacheclass.Translation, "k", GetOptions{})
	assert.ErrorIs(t, err, edgeerr.CacheDisabled)
}

func TestEngine_ClearClass(t *testing.T) {
	now := int64(1000)
	e := newEngine(t, &now)
	require.NoError(t, e.Set(cacheclass.Translation, "k", body{TranslatedText: "x"}, SetOptions{}))

	class := cacheclass.Translation
	require.NoError(t, e.Clear(&class))

	_, err := e.Get(cacheclass.Translation, "k", GetOptions{})
	assert.ErrorIs(t, err, edgeerr.NotFound)
}
