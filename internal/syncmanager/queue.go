package syncmanager

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
)

// Queue is the durable outbound queue (spec §4.4): each SyncRecord lives in
// its own file under dir, named "<id>.json", so the queue survives a crash
// and is reconstructable purely by listing the directory.
type Queue struct {
	dir string
	mu  sync.Mutex
}

// NewQueue returns a Queue rooted at dir, creating it if necessary.
func NewQueue(dir string) (*Queue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("syncmanager: create queue dir: %w", err)
	}
	return &Queue{dir: dir}, nil
}

func (q *Queue) path(id string) string {
	return filepath.Join(q.dir, id+".json")
}

// Enqueue durably persists rec, write-temp-then-rename so a crash never
// leaves a half-written record file (spec P9: sync durability).
func (q *Queue) Enqueue(rec *cacheentry.SyncRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("syncmanager: marshal record: %w", err)
	}
	target := q.path(rec.ID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("syncmanager: write record: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("syncmanager: rename record: %w", err)
	}
	return nil
}

// Load reconstructs the queue from disk truth, ordered oldest-enqueued
// first. Called before and after every drain cycle and by Len and Clear
// (spec §4.4); the queue keeps no in-memory copy, so a restart needs no
// separate reload.
func (q *Queue) Load() ([]*cacheentry.SyncRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, fmt.Errorf("syncmanager: read queue dir: %w", err)
	}

	var records []*cacheentry.SyncRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(q.dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec cacheentry.SyncRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].EnqueuedAt < records[j].EnqueuedAt
	})
	return records, nil
}

// Delete removes a record's file after its upload has been acknowledged
// (spec §4.4: upload-ack-happens-before-file-delete). Deleting an
// already-absent file is not an error (P10: upload idempotence).
func (q *Queue) Delete(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := os.Remove(q.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("syncmanager: delete record %s: %w", id, err)
	}
	return nil
}

// Len returns the number of records currently on disk.
func (q *Queue) Len() (int, error) {
	records, err := q.Load()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Clear removes every queued record file.
func (q *Queue) Clear() error {
	records, err := q.Load()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := q.Delete(rec.ID); err != nil {
			return err
		}
	}
	return nil
}
