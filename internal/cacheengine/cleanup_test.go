package cacheengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheclass"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/edgeerr"
)

// Default cleanup never deletes an expired Critical entry; it only flags it
// for refresh (spec §4.3).
func TestCleanupExpired_CriticalSurvivesWithoutForce(t *testing.T) {
	now := int64(0)
	e := newEngine(t, &now)
	e.cfg.DefaultTTL = time.Second

	key := "en:es:emergency:abc"
	require.NoError(t, e.Set(cacheclass.Translation, key, body{TranslatedText: "help"}, SetOptions{Criticality: cacheentry.Critical}))

	now = 5000
	n, err := e.CleanupExpired(nil, CleanupOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	res, err := e.Get(cacheclass.Translation, key, GetOptions{IncludeMetadata: true})
	require.NoError(t, err)
	assert.True(t, res.Entry.NeedsRefresh)
}

// ForceCleanup deletes expired Critical entries too (spec.md:155).
func TestCleanupExpired_ForceDeletesCritical(t *testing.T) {
	now := int64(0)
	e := newEngine(t, &now)
	e.cfg.DefaultTTL = time.Second

	key := "en:es:emergency:abc"
	require.NoError(t, e.Set(cacheclass.Translation, key, body{TranslatedText: "help"}, SetOptions{Criticality: cacheentry.Critical}))

	now = 5000
	n, err := e.CleanupExpired(nil, CleanupOptions{ForceCleanup: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.Get(cacheclass.Translation, key, GetOptions{})
	assert.ErrorIs(t, err, edgeerr.NotFound)
}
