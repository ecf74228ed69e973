// Package cacheentry defines the data model shared by the Entry Store,
// Cache Engine, Sync Manager and Pipeline (spec §3): CacheEntry, its
// version history, SyncRecord, ModelDescriptor and CacheStats.
package cacheentry

import "github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheclass"

// Criticality is the ordinal importance controlling retention under TTL
// and eviction pressure (spec §3, Glossary).
type Criticality int

const (
	Low      Criticality = 1
	Medium   Criticality = 2
	High     Criticality = 3
	Critical Criticality = 4
)

func (c Criticality) Valid() bool { return c >= Low && c <= Critical }

// Bump returns c promoted by one level, capped at High - used by the
// confidence=high auto-promotion rule (spec §4.3), which is explicitly
// capped below Critical (Critical is reserved for explicit context-based
// promotion, not confidence-based).
func (c Criticality) Bump() Criticality {
	if c >= High {
		return High
	}
	return c + 1
}

// VersionRecord is one archived (version, timestamp, minimal metadata)
// tuple in a CacheEntry's bounded version history (spec §3, invariant 3).
type VersionRecord struct {
	Version   string         `json:"version"`
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MaxVersionHistory is the bound on len(VersionHistory) (spec §3 invariant 3, P8).
const MaxVersionHistory = 5

// CacheEntry is the persisted unit the Cache Engine exclusively owns (spec §3).
type CacheEntry struct {
	Key   string            `json:"key"`
	Class cacheclass.Class  `json:"class"`

	// Payload is the entry body as encoded by the Codec layer: either
	// canonical JSON or a deflate-compressed serialization of it.
	Payload      []byte `json:"payload"`
	IsCompressed bool   `json:"isCompressed"`
	OriginalSize int    `json:"originalSize"`
	StoredSize   int    `json:"storedSize"`

	CreatedAt      int64 `json:"createdAt"`
	LastModifiedAt int64 `json:"lastModifiedAt"`
	LastAccessedAt int64 `json:"lastAccessedAt"`

	TTLMillis int64 `json:"ttlMillis"`
	HitCount  int   `json:"hitCount"`

	OfflinePriority bool        `json:"offlinePriority"`
	Criticality     Criticality `json:"criticality"`

	Version        string          `json:"version"`
	VersionHistory []VersionRecord `json:"versionHistory,omitempty"`

	NeedsSync    bool  `json:"needsSync"`
	NeedsRefresh bool  `json:"needsRefresh"`
	SyncedAt     int64 `json:"syncedAt,omitempty"`
}

// Clone returns a deep-enough copy suitable for handing to a caller without
// risking mutation of the engine's authoritative copy (version history is
// copied; Payload is shared since it is treated as immutable once written).
func (e *CacheEntry) Clone() *CacheEntry {
	if e == nil {
		return nil
	}
	cp := *e
	if e.VersionHistory != nil {
		cp.VersionHistory = append([]VersionRecord(nil), e.VersionHistory...)
	}
	return &cp
}

// AppendVersionHistory records the entry's current (version, timestamp,
// minimal metadata) before it is overwritten by a new Set, truncating to
// the MaxVersionHistory most recent entries, oldest first (spec §3
// invariant 3, §4.3).
func (e *CacheEntry) AppendVersionHistory(metadata map[string]any) {
	rec := VersionRecord{Version: e.Version, Timestamp: e.LastModifiedAt, Metadata: metadata}
	e.VersionHistory = append(e.VersionHistory, rec)
	if len(e.VersionHistory) > MaxVersionHistory {
		e.VersionHistory = e.VersionHistory[len(e.VersionHistory)-MaxVersionHistory:]
	}
}

// SyncRecord is a durable outbound-queue element (spec §3): a snapshot of
// the logical CacheEntry body plus identifying context, pending upload.
type SyncRecord struct {
	ID         string `json:"id"`
	EnqueuedAt int64  `json:"enqueuedAt"`
	Kind       string `json:"kind"` // "translation" | "audio"
	Class      cacheclass.Class `json:"class"`
	Key        string `json:"key"`
	// Payload is the raw JSON body snapshot (pre-compression) submitted to
	// the cloud, plus whatever identifying context the Pipeline attached.
	Payload []byte `json:"payload"`
}

// ModelDescriptor describes a model file offered by the cloud manifest
// (spec §3). The Sync Manager compares it against the local model directory
// by size only: a file that is absent or has a different size is fetched.
type ModelDescriptor struct {
	Filename    string `json:"filename"`
	Version     string `json:"version"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"downloadUrl"`
}

// ClassStats holds the per-class counters that make up CacheStats (spec §3).
type ClassStats struct {
	Hits           int64 `json:"hits"`
	Misses         int64 `json:"misses"`
	Evictions      int64 `json:"evictions"`
	TotalRequests  int64 `json:"totalRequests"`
	CompressedItems int64 `json:"compressedItems"`
	OriginalBytes  int64 `json:"originalBytes"`
	StoredBytes    int64 `json:"storedBytes"`
	Criticality    [5]int64 `json:"-"` // index by Criticality (1-4 used)
}

// HitRate returns hits / totalRequests, or 0 if there have been no requests.
func (s ClassStats) HitRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.TotalRequests)
}

// CompressionRatio returns 1 - (storedBytes/originalBytes) (spec invariant 7).
func (s ClassStats) CompressionRatio() float64 {
	if s.OriginalBytes == 0 {
		return 0
	}
	return 1 - (float64(s.StoredBytes) / float64(s.OriginalBytes))
}

// SyncStats holds the sync-side counters of CacheStats (spec §3).
type SyncStats struct {
	PendingSync       int64 `json:"pendingSync"`
	LastSyncTime      int64 `json:"lastSyncTime,omitempty"`
	SyncErrors        int64 `json:"syncErrors"`
	VersionConflicts  int64 `json:"versionConflicts"`
	VersionsResolved  int64 `json:"versionsResolved"`
}

// CacheStats is the full stats structure from spec §3. It lives in memory
// and is snapshotted into Stats History (C7) on each rollover; it is not
// written to a stats JSON file.
type CacheStats struct {
	PerClass map[string]ClassStats `json:"perClass"`
	Sync     SyncStats             `json:"sync"`
	// PreservedMetrics holds cumulative compression/versioning/criticality/
	// sync totals across a stats rollover (spec §4.3's 7-day rollover job).
	PreservedMetrics *CacheStats `json:"preservedMetrics,omitempty"`
}

// NewCacheStats returns a zeroed CacheStats with an entry for every known class.
func NewCacheStats() *CacheStats {
	cs := &CacheStats{PerClass: make(map[string]ClassStats)}
	for _, c := range cacheclass.All {
		cs.PerClass[c.String()] = ClassStats{}
	}
	return cs
}
