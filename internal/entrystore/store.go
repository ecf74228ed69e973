// Package entrystore is the Entry Store (spec §4.1): the sole owner of
// CacheEntry bytes on disk and in memory, keyed per cache class. It knows
// nothing about TTL, eviction or sync — those policies live in the Cache
// Engine, which is the only caller of this package.
package entrystore

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheclass"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/edgeerr"
)

// snapshotFile is the on-disk shape of a per-class snapshot (spec §4.1):
// the cache table keyed by entry key, the millis timestamp of the write,
// and the entry count. Other language implementations of this node read
// and write this exact object, so the shape is a cross-implementation
// contract, not an internal choice.
type snapshotFile struct {
	Cache     map[string]*cacheentry.CacheEntry `json:"cache"`
	LastSaved int64                              `json:"lastSaved"`
	Size      int                                `json:"size"`
}

var errInvalidClass = edgeerr.InvalidClass

// classState holds one cache class's in-memory table behind its own
// reader/writer lock, so Translation and Audio traffic never contend.
type classState struct {
	mu      sync.RWMutex
	entries map[string]*cacheentry.CacheEntry
}

// Store is the disk-backed, per-class entry table (spec §4.1).
type Store struct {
	dir     string
	classes map[cacheclass.Class]*classState
}

// New returns a Store rooted at dir. Call Load before first use to recover
// any snapshots from a prior run.
func New(dir string) *Store {
	s := &Store{dir: dir, classes: make(map[cacheclass.Class]*classState)}
	for _, c := range cacheclass.All {
		s.classes[c] = &classState{entries: make(map[string]*cacheentry.CacheEntry)}
	}
	return s
}

func (s *Store) stateFor(class cacheclass.Class) (*classState, error) {
	cs, ok := s.classes[class]
	if !ok {
		return nil, fmt.Errorf("entrystore: %w: %v", errInvalidClass, class)
	}
	return cs, nil
}

// Load reads every class's snapshot file from disk, if present, populating
// the in-memory table. Missing files are not an error (first run).
func (s *Store) Load() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("entrystore: create cache dir: %w", err)
	}
	for _, c := range cacheclass.All {
		if err := s.loadClass(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadClass(class cacheclass.Class) error {
	path := cacheclass.SnapshotPath(s.dir, class)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("entrystore: read snapshot %s: %w", path, err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Error().Err(err).Str("path", path).Msg("entrystore: corrupt snapshot, starting empty")
		return nil
	}

	cs, err := s.stateFor(class)
	if err != nil {
		return err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for key, e := range snap.Cache {
		e.Key = key
		cs.entries[key] = e
	}
	log.Info().Str("class", class.String()).Int("count", len(snap.Cache)).Msg("entrystore: loaded snapshot")
	return nil
}

// Get returns a clone of the entry for key, so callers can mutate it freely
// before calling Put to persist changes.
func (s *Store) Get(class cacheclass.Class, key string) (*cacheentry.CacheEntry, bool) {
	cs, err := s.stateFor(class)
	if err != nil {
		return nil, false
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	e, ok := cs.entries[key]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Put writes (or overwrites) an entry in memory. It does not touch disk;
// callers drive persistence explicitly via Snapshot.
func (s *Store) Put(class cacheclass.Class, entry *cacheentry.CacheEntry) error {
	cs, err := s.stateFor(class)
	if err != nil {
		return err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.entries[entry.Key] = entry
	return nil
}

// Delete removes an entry from memory.
func (s *Store) Delete(class cacheclass.Class, key string) error {
	cs, err := s.stateFor(class)
	if err != nil {
		return err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.entries, key)
	return nil
}

// Iterate calls fn for every entry of class in an unspecified order. fn
// returning false stops the iteration early. The snapshot iterated is a
// consistent read-locked view; fn must not call back into the Store.
func (s *Store) Iterate(class cacheclass.Class, fn func(e *cacheentry.CacheEntry) bool) error {
	cs, err := s.stateFor(class)
	if err != nil {
		return err
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	for _, e := range cs.entries {
		if !fn(e) {
			break
		}
	}
	return nil
}

// Size returns the number of entries currently held for class.
func (s *Store) Size(class cacheclass.Class) int {
	cs, err := s.stateFor(class)
	if err != nil {
		return 0
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.entries)
}

// TotalSize returns the sum of StoredSize across every entry of class. The
// Cache Engine's eviction check uses Size (the entry count), not this.
func (s *Store) TotalSize(class cacheclass.Class) int {
	total := 0
	_ = s.Iterate(class, func(e *cacheentry.CacheEntry) bool {
		total += e.StoredSize
		return true
	})
	return total
}

// Snapshot persists every entry of class to disk atomically: it writes to a
// temp file in the same directory and renames over the target, so a reader
// never observes a partially-written file (spec invariant 5).
func (s *Store) Snapshot(class cacheclass.Class) error {
	cs, err := s.stateFor(class)
	if err != nil {
		return err
	}

	cs.mu.RLock()
	entries := make(map[string]*cacheentry.CacheEntry, len(cs.entries))
	for k, e := range cs.entries {
		entries[k] = e
	}
	cs.mu.RUnlock()

	snap := snapshotFile{
		Cache:     entries,
		LastSaved: time.Now().UnixMilli(),
		Size:      len(entries),
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("entrystore: marshal snapshot: %w", err)
	}

	path := cacheclass.SnapshotPath(s.dir, class)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("entrystore: write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("entrystore: rename snapshot: %w", err)
	}
	return nil
}

// SnapshotAll persists every known class, stopping at the first error.
func (s *Store) SnapshotAll() error {
	for _, c := range cacheclass.All {
		if err := s.Snapshot(c); err != nil {
			return err
		}
	}
	return nil
}

// SnapshotDir exposes the root directory snapshots are written under, so
// the Sync Manager can share the same on-disk root for its own queue files.
func (s *Store) SnapshotDir() string { return s.dir }
