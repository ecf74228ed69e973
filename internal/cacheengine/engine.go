// Package cacheengine is the Cache Engine (spec §4.3): the policy kernel
// sitting on top of the Entry Store. It owns TTL expiry, criticality-aware
// retention, hit-count promotion, score-based eviction, version history and
// stats bookkeeping. It is the only package allowed to mutate a CacheEntry.
package cacheengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheclass"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/codec"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/edgeerr"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/entrystore"
)

// Config carries the cache-policy knobs read from the environment (spec §6).
type Config struct {
	SizeLimit                int
	DefaultTTL               time.Duration
	OfflinePriorityThreshold int
	CompressionEnabled       bool
	CompressionThreshold     int
	CompressionLevel         int
	Enabled                  bool
}

// StatsRecorder is the narrow interface the Stats History component (C7)
// satisfies; the engine holds it as an interface so it stays usable without
// a backing store wired in (nil-safe via nopRecorder).
type StatsRecorder interface {
	RecordSnapshot(stats *cacheentry.CacheStats, takenAtMillis int64) error
}

type nopRecorder struct{}

func (nopRecorder) RecordSnapshot(*cacheentry.CacheStats, int64) error { return nil }

// Engine is the Cache Engine. One Engine instance manages all classes.
type Engine struct {
	store *entrystore.Store
	cfg   Config

	stats      *statsTable
	writeCount map[cacheclass.Class]*int

	recorder StatsRecorder

	emergencyMode bool
	lastRollover  int64

	clock func() int64

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
}

// New constructs an Engine over store using cfg. Load must have already been
// called on store (bootstrap's responsibility, not the engine's).
func New(store *entrystore.Store, cfg Config) *Engine {
	e := &Engine{
		store:      store,
		cfg:        cfg,
		stats:      newStatsTable(),
		writeCount: make(map[cacheclass.Class]*int),
		recorder:   nopRecorder{},
		clock:      func() int64 { return time.Now().UnixMilli() },
		stopChan:   make(chan struct{}),
	}
	for _, c := range cacheclass.All {
		n := 0
		e.writeCount[c] = &n
	}
	return e
}

// WithStatsRecorder wires the Stats History sink used on each rollover.
func (e *Engine) WithStatsRecorder(r StatsRecorder) *Engine {
	if r != nil {
		e.recorder = r
	}
	return e
}

// WithClock overrides the time source; used by tests to control TTL math.
func (e *Engine) WithClock(clock func() int64) *Engine {
	if clock != nil {
		e.clock = clock
	}
	return e
}

func (e *Engine) now() int64 { return e.clock() }

// SetEmergencyMode toggles whether High/OfflinePriority entries are
// eviction-eligible (spec §4.3 evict).
func (e *Engine) SetEmergencyMode(on bool) { e.emergencyMode = on }

// GetOptions controls Get's behavior (spec §4.3).
type GetOptions struct {
	// Version, if non-empty and different from the entry's current version,
	// looks the value up in versionHistory instead of returning the live body.
	Version string
	// IncludeMetadata controls whether the returned entry keeps its full
	// version history attached (callers that don't need it get a lighter copy).
	IncludeMetadata bool
}

// GetResult is what Get returns on a hit, either the live entry or a
// restricted view reconstructed from version history (spec §4.3).
type GetResult struct {
	Entry   *cacheentry.CacheEntry
	History *cacheentry.VersionRecord
	Limited bool
}

// Get implements the Cache Engine's get operation (spec §4.3).
func (e *Engine) Get(class cacheclass.Class, key string, opts GetOptions) (GetResult, error) {
	if !cacheclass.Valid(class) {
		return GetResult{}, fmt.Errorf("cacheengine: get: %w", edgeerr.InvalidClass)
	}
	if !e.cfg.Enabled {
		return GetResult{}, edgeerr.CacheDisabled
	}

	entry, ok := e.store.Get(class, key)
	if !ok {
		e.stats.recordMiss(class)
		return GetResult{}, edgeerr.NotFound
	}

	now := e.now()
	effectiveTTL := entry.TTLMillis
	if effectiveTTL <= 0 {
		effectiveTTL = e.cfg.DefaultTTL.Milliseconds()
	}

	if now-entry.CreatedAt > effectiveTTL {
		if entry.Criticality >= cacheentry.High {
			entry.NeedsRefresh = true
			_ = e.store.Put(class, entry)
			log.Warn().Str("class", class.String()).Str("key", key).Msg("cacheengine: retaining expired critical entry")
		} else {
			_ = e.store.Delete(class, key)
			e.stats.recordMiss(class)
			return GetResult{}, edgeerr.NotFound
		}
	}

	if opts.Version != "" && opts.Version != entry.Version {
		for i := range entry.VersionHistory {
			if entry.VersionHistory[i].Version == opts.Version {
				rec := entry.VersionHistory[i]
				e.stats.recordHit(class)
				return GetResult{History: &rec, Limited: true}, nil
			}
		}
		e.stats.recordMiss(class)
		return GetResult{}, edgeerr.NotFound
	}

	entry.LastAccessedAt = now
	entry.HitCount++
	if entry.HitCount >= e.cfg.OfflinePriorityThreshold && !entry.OfflinePriority {
		entry.OfflinePriority = true
	}
	_ = e.store.Put(class, entry)
	e.stats.recordHit(class)

	if !opts.IncludeMetadata {
		light := entry.Clone()
		light.VersionHistory = nil
		return GetResult{Entry: light}, nil
	}
	return GetResult{Entry: entry}, nil
}

// SetOptions controls Set's behavior (spec §4.3).
type SetOptions struct {
	TTLMillis   int64
	Criticality cacheentry.Criticality
	NeedsSync   bool
	// Context is the translation request's logical context
	// ("emergency","diagnosis",...), used for criticality auto-promotion.
	Context string
	// Confidence is the engine result's confidence tier
	// ("high"|"medium"|"low"), used for the one-level promotion bump.
	Confidence string
	// Version, if set, is used verbatim instead of generating one.
	Version string
}

// Set implements the Cache Engine's set operation (spec §4.3).
func (e *Engine) Set(class cacheclass.Class, key string, body any, opts SetOptions) error {
	if !cacheclass.Valid(class) {
		return fmt.Errorf("cacheengine: set: %w", edgeerr.InvalidClass)
	}
	if !e.cfg.Enabled {
		return nil
	}

	if e.store.Size(class) >= e.cfg.SizeLimit {
		if _, ok := e.store.Get(class, key); !ok {
			if _, err := e.Evict(class, EvictOptions{}); err != nil {
				log.Error().Err(err).Str("class", class.String()).Msg("cacheengine: pre-set eviction failed")
			}
		}
	}

	now := e.now()
	criticality := opts.Criticality
	if criticality == 0 {
		criticality = derivedCriticality(class, opts.Context, opts.Confidence)
	}

	enc, err := codec.Encode(body, codec.EncodeOptions{
		CompressionEnabled: e.cfg.CompressionEnabled,
		Threshold:          e.cfg.CompressionThreshold,
		Level:              e.cfg.CompressionLevel,
	})
	if err != nil {
		return fmt.Errorf("cacheengine: encode: %w", err)
	}

	ttl := opts.TTLMillis
	if ttl <= 0 {
		ttl = e.cfg.DefaultTTL.Milliseconds()
	}

	version := opts.Version
	if version == "" {
		version = "v-" + fmt.Sprint(now) + "-" + uuid.NewString()[:8]
	}

	existing, hadExisting := e.store.Get(class, key)
	entry := &cacheentry.CacheEntry{
		Key:             key,
		Class:           class,
		Payload:         enc.Payload,
		IsCompressed:    enc.IsCompressed,
		OriginalSize:    enc.OriginalSize,
		StoredSize:      enc.StoredSize,
		CreatedAt:       now,
		LastModifiedAt:  now,
		LastAccessedAt:  now,
		TTLMillis:       ttl,
		Criticality:     criticality,
		Version:         version,
		NeedsSync:       opts.NeedsSync,
		OfflinePriority: false,
	}

	if hadExisting {
		entry.CreatedAt = existing.CreatedAt
		entry.HitCount = existing.HitCount
		entry.OfflinePriority = existing.OfflinePriority
		// existing is a clone from the store, so archiving its own version
		// into its history does not touch the stored entry.
		existing.AppendVersionHistory(minimalMetadata(existing))
		entry.VersionHistory = existing.VersionHistory
	}

	if err := e.store.Put(class, entry); err != nil {
		return fmt.Errorf("cacheengine: put: %w", err)
	}

	e.stats.recordWrite(class, enc, criticality)

	if e.shouldFlush(class) {
		if err := e.store.Snapshot(class); err != nil {
			log.Error().Err(err).Str("class", class.String()).Msg("cacheengine: periodic snapshot failed")
		}
	}
	return nil
}

// shouldFlush reports true on every 10th write per class, when Set snapshots
// that class (spec §4.3 set). Only the entry snapshot is written; stats are
// not saved to disk here.
func (e *Engine) shouldFlush(class cacheclass.Class) bool {
	n := e.writeCount[class]
	*n++
	if *n >= 10 {
		*n = 0
		return true
	}
	return false
}

// minimalMetadata extracts the small, non-authoritative preview recorded in
// versionHistory for a superseded entry (spec §3: "only metadata is
// retained"). Decode failures degrade gracefully to criticality/hitCount only.
func minimalMetadata(e *cacheentry.CacheEntry) map[string]any {
	meta := map[string]any{
		"criticality": int(e.Criticality),
		"hitCount":    e.HitCount,
	}
	raw, err := codec.Decode(e.Payload, e.IsCompressed, nil)
	if err == nil {
		if confidence, ok := codec.PeekString(raw, "confidence"); ok {
			meta["confidence"] = confidence
		}
	}
	return meta
}

// derivedCriticality implements the Translation auto-promotion rule (spec §4.3).
func derivedCriticality(class cacheclass.Class, context, confidence string) cacheentry.Criticality {
	level := cacheentry.Low
	if class == cacheclass.Translation {
		switch context {
		case "emergency", "critical_care":
			return cacheentry.Critical
		case "diagnosis", "medication":
			level = cacheentry.High
		case "", "general", "conversation":
			level = cacheentry.Low
		default:
			level = cacheentry.Medium
		}
		if confidence == "high" {
			level = level.Bump()
		}
	}
	return level
}

// Clear empties one class, or every class if class is nil.
func (e *Engine) Clear(class *cacheclass.Class) error {
	classes := cacheclass.All
	if class != nil {
		classes = []cacheclass.Class{*class}
	}
	for _, c := range classes {
		var keys []string
		_ = e.store.Iterate(c, func(entry *cacheentry.CacheEntry) bool {
			keys = append(keys, entry.Key)
			return true
		})
		for _, k := range keys {
			_ = e.store.Delete(c, k)
		}
		e.stats.reset(c)
	}
	return nil
}

// Stats returns a snapshot of the current CacheStats (spec §3).
func (e *Engine) Stats() *cacheentry.CacheStats {
	return e.stats.snapshot()
}

// SaveToDisk snapshots one class, or every class if class is nil.
func (e *Engine) SaveToDisk(class *cacheclass.Class) error {
	if class != nil {
		return e.store.Snapshot(*class)
	}
	return e.store.SnapshotAll()
}
