package cacheengine

import (
	"fmt"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheclass"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/edgeerr"
)

// CleanupOptions controls CleanupExpired (spec §4.3).
type CleanupOptions struct {
	// ForceCleanup allows Critical entries to be deleted on expiry, which
	// the default cleanup pass never does.
	ForceCleanup bool
}

// CleanupExpired implements the periodic expiry sweep (spec §4.3
// cleanupExpired). class nil sweeps every class.
func (e *Engine) CleanupExpired(class *cacheclass.Class, opts CleanupOptions) (int, error) {
	classes := cacheclass.All
	if class != nil {
		if !cacheclass.Valid(*class) {
			return 0, fmt.Errorf("cacheengine: cleanupExpired: %w", edgeerr.InvalidClass)
		}
		classes = []cacheclass.Class{*class}
	}

	now := e.now()
	removed := 0

	for _, c := range classes {
		var toDelete []string
		var toUpdate []*cacheentry.CacheEntry

		_ = e.store.Iterate(c, func(entry *cacheentry.CacheEntry) bool {
			ttl := entry.TTLMillis
			if ttl <= 0 {
				ttl = e.cfg.DefaultTTL.Milliseconds()
			}
			expired := now-entry.CreatedAt > ttl
			if !expired {
				return true
			}

			switch {
			case entry.Criticality == cacheentry.Critical && opts.ForceCleanup:
				toDelete = append(toDelete, entry.Key)
			case entry.Criticality == cacheentry.Critical:
				entry.NeedsRefresh = true
				toUpdate = append(toUpdate, entry)
			case (entry.Criticality == cacheentry.High || entry.OfflinePriority) && entry.HitCount > 2*e.cfg.OfflinePriorityThreshold:
				entry.CreatedAt = now - ttl/2
				entry.NeedsRefresh = true
				toUpdate = append(toUpdate, entry)
			case entry.Criticality >= cacheentry.High:
				entry.NeedsRefresh = true
				toUpdate = append(toUpdate, entry)
			default:
				toDelete = append(toDelete, entry.Key)
			}
			return true
		})

		for _, entry := range toUpdate {
			_ = e.store.Put(c, entry)
		}
		for _, key := range toDelete {
			_ = e.store.Delete(c, key)
			removed++
		}
	}
	return removed, nil
}
