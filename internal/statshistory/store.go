// Package statshistory is the Stats History component (C7): an
// append-only side channel that snapshots CacheStats on every rollover so
// the node's hit-rate/compression/sync trends can be queried over time
// without perturbing the in-memory counters the Cache Engine owns.
package statshistory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
)

// Store is a SQLite-backed append-only log of CacheStats snapshots.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the stats history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statshistory: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid pool contention

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("statshistory: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS stats_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at_millis INTEGER NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stats_snapshots_taken_at ON stats_snapshots(taken_at_millis);
`

// RecordSnapshot persists one CacheStats observation (satisfies
// cacheengine.StatsRecorder, invoked on every stats rollover).
func (s *Store) RecordSnapshot(stats *cacheentry.CacheStats, takenAtMillis int64) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("statshistory: marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(context.Background(),
		`INSERT INTO stats_snapshots (taken_at_millis, payload) VALUES (?, ?)`, takenAtMillis, string(raw))
	if err != nil {
		return fmt.Errorf("statshistory: insert snapshot: %w", err)
	}
	return nil
}

// Snapshot is one row returned by QueryRange.
type Snapshot struct {
	TakenAtMillis int64
	Stats         *cacheentry.CacheStats
}

// QueryRange returns every snapshot with takenAtMillis in [fromMillis, toMillis],
// ordered oldest first.
func (s *Store) QueryRange(ctx context.Context, fromMillis, toMillis int64) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT taken_at_millis, payload FROM stats_snapshots WHERE taken_at_millis BETWEEN ? AND ? ORDER BY taken_at_millis ASC`,
		fromMillis, toMillis)
	if err != nil {
		return nil, fmt.Errorf("statshistory: query range: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var takenAt int64
		var payload string
		if err := rows.Scan(&takenAt, &payload); err != nil {
			return nil, fmt.Errorf("statshistory: scan row: %w", err)
		}
		var stats cacheentry.CacheStats
		if err := json.Unmarshal([]byte(payload), &stats); err != nil {
			return nil, fmt.Errorf("statshistory: decode row: %w", err)
		}
		out = append(out, Snapshot{TakenAtMillis: takenAt, Stats: &stats})
	}
	return out, rows.Err()
}

// Latest returns the most recent snapshot, or nil if none exist yet.
func (s *Store) Latest(ctx context.Context) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT taken_at_millis, payload FROM stats_snapshots ORDER BY taken_at_millis DESC LIMIT 1`)
	var takenAt int64
	var payload string
	if err := row.Scan(&takenAt, &payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("statshistory: latest: %w", err)
	}
	var stats cacheentry.CacheStats
	if err := json.Unmarshal([]byte(payload), &stats); err != nil {
		return nil, fmt.Errorf("statshistory: decode latest: %w", err)
	}
	return &Snapshot{TakenAtMillis: takenAt, Stats: &stats}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
