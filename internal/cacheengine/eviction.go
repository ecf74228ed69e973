package cacheengine

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheclass"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/edgeerr"
)

// EvictOptions controls Evict's target size (spec §4.3 evict).
type EvictOptions struct {
	// Target overrides the default max(1, floor(0.1 * total)) eviction count.
	Target int
}

type scoredEntry struct {
	entry *cacheentry.CacheEntry
	score float64
	order int
}

// Evict implements the Cache Engine's score-based eviction (spec §4.3).
func (e *Engine) Evict(class cacheclass.Class, opts EvictOptions) (int, error) {
	if !cacheclass.Valid(class) {
		return 0, fmt.Errorf("cacheengine: evict: %w", edgeerr.InvalidClass)
	}

	var all []*cacheentry.CacheEntry
	_ = e.store.Iterate(class, func(entry *cacheentry.CacheEntry) bool {
		all = append(all, entry)
		return true
	})
	total := len(all)
	if total == 0 {
		return 0, nil
	}

	target := opts.Target
	if target <= 0 {
		target = int(math.Max(1, math.Floor(0.1*float64(total))))
	}

	candidates := e.evictionPool(all)
	if len(candidates) == 0 {
		return 0, nil
	}
	// Order by creation time so the tie-break below ("older wins the tie and
	// is evicted first") is deterministic despite map iteration order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt < candidates[j].CreatedAt
	})

	now := e.now()
	scored := make([]scoredEntry, len(candidates))
	for i, entry := range candidates {
		scored[i] = scoredEntry{entry: entry, score: evictionScore(entry, now), order: i}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score < scored[j].score
		}
		return scored[i].order < scored[j].order
	})

	if target > len(scored) {
		target = len(scored)
	}

	evicted := 0
	for _, s := range scored[:target] {
		if err := e.store.Delete(class, s.entry.Key); err != nil {
			log.Error().Err(err).Str("key", s.entry.Key).Msg("cacheengine: evict delete failed")
			continue
		}
		evicted++
	}
	e.stats.recordEviction(class, evicted)
	return evicted, nil
}

// evictionPool partitions entries into Critical / High-OfflinePriority /
// Normal and returns the evictable subset: Normal always, High/OfflinePriority
// only in emergency mode, Critical never (spec §4.3 evict).
func (e *Engine) evictionPool(all []*cacheentry.CacheEntry) []*cacheentry.CacheEntry {
	var pool []*cacheentry.CacheEntry
	for _, entry := range all {
		switch {
		case entry.Criticality == cacheentry.Critical:
			continue
		case entry.Criticality == cacheentry.High || entry.OfflinePriority:
			if e.emergencyMode {
				pool = append(pool, entry)
			}
		default:
			pool = append(pool, entry)
		}
	}
	return pool
}

// evictionScore implements the weighted scoring formula from spec §4.3
// (lower score evicts first).
func evictionScore(entry *cacheentry.CacheEntry, now int64) float64 {
	ttl := entry.TTLMillis
	if ttl <= 0 {
		ttl = 1
	}

	recencyN := clamp01(float64(now-entry.LastAccessedAt) / float64(ttl))
	freqN := math.Min(1, float64(entry.HitCount)/10)
	ageN := clamp01(float64(now-entry.CreatedAt) / float64(ttl))
	critN := clamp01(float64(int(entry.Criticality)-1) / 3)

	syncPen := 0.0
	if entry.NeedsSync {
		syncPen = 0.3
	}

	sizeBonus := 0.0
	if entry.IsCompressed && entry.OriginalSize > 0 {
		sizeBonus = 0.2 * (1 - float64(entry.StoredSize)/float64(entry.OriginalSize))
	}

	return 0.4*(1-recencyN) + 0.2*freqN + 0.1*(1-ageN) + 0.2*critN + sizeBonus - syncPen
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
