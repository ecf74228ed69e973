package cacheengine

import (
	"sync"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheclass"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/codec"
)

// statsTable is the engine's in-memory CacheStats bookkeeping (spec §3),
// kept separate from entrystore since it is derived, not persisted state
// the Entry Store is responsible for.
type statsTable struct {
	mu        sync.Mutex
	perClass  map[cacheclass.Class]*cacheentry.ClassStats
	sync      cacheentry.SyncStats
	preserved *cacheentry.CacheStats
}

func newStatsTable() *statsTable {
	t := &statsTable{perClass: make(map[cacheclass.Class]*cacheentry.ClassStats)}
	for _, c := range cacheclass.All {
		t.perClass[c] = &cacheentry.ClassStats{}
	}
	return t
}

func (t *statsTable) recordHit(class cacheclass.Class) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs := t.perClass[class]
	cs.Hits++
	cs.TotalRequests++
}

func (t *statsTable) recordMiss(class cacheclass.Class) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs := t.perClass[class]
	cs.Misses++
	cs.TotalRequests++
}

func (t *statsTable) recordWrite(class cacheclass.Class, enc codec.Encoded, criticality cacheentry.Criticality) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs := t.perClass[class]
	cs.OriginalBytes += int64(enc.OriginalSize)
	cs.StoredBytes += int64(enc.StoredSize)
	if enc.IsCompressed {
		cs.CompressedItems++
	}
	if criticality.Valid() {
		cs.Criticality[criticality]++
	}
}

func (t *statsTable) recordEviction(class cacheclass.Class, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.perClass[class].Evictions += int64(n)
}

func (t *statsTable) recordConflict() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sync.VersionConflicts++
}

func (t *statsTable) recordResolved() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sync.VersionsResolved++
}

func (t *statsTable) recordSyncError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sync.SyncErrors++
}

func (t *statsTable) recordSyncSuccess(atMillis int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sync.LastSyncTime = atMillis
}

func (t *statsTable) setPendingSync(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sync.PendingSync = n
}

func (t *statsTable) reset(class cacheclass.Class) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.perClass[class] = &cacheentry.ClassStats{}
}

// snapshot returns a deep-enough copy of the current stats for external
// consumption (Pipeline's getCacheStats, Stats History rollover).
func (t *statsTable) snapshot() *cacheentry.CacheStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := cacheentry.NewCacheStats()
	for c, cs := range t.perClass {
		out.PerClass[c.String()] = *cs
	}
	out.Sync = t.sync
	if t.preserved != nil {
		preservedCopy := *t.preserved
		out.PreservedMetrics = &preservedCopy
	}
	return out
}

// rollover resets request/hit/miss/eviction counters every 7 days while
// folding the outgoing period's compression/versioning/criticality/sync
// totals into PreservedMetrics (spec §4.3 periodic jobs).
func (t *statsTable) rollover() {
	t.mu.Lock()
	defer t.mu.Unlock()

	preserved := cacheentry.NewCacheStats()
	for c, cs := range t.perClass {
		preserved.PerClass[c.String()] = cacheentry.ClassStats{
			CompressedItems: cs.CompressedItems,
			OriginalBytes:   cs.OriginalBytes,
			StoredBytes:     cs.StoredBytes,
			Criticality:     cs.Criticality,
		}
	}
	preserved.Sync = t.sync
	t.preserved = preserved

	for c := range t.perClass {
		t.perClass[c] = &cacheentry.ClassStats{
			CompressedItems: t.preserved.PerClass[c.String()].CompressedItems,
			OriginalBytes:   t.preserved.PerClass[c.String()].OriginalBytes,
			StoredBytes:     t.preserved.PerClass[c.String()].StoredBytes,
			Criticality:     t.preserved.PerClass[c.String()].Criticality,
		}
	}
}
