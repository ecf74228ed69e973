// Package edgeerr defines the sentinel error values shared across the cache
// engine, sync manager, and request pipeline.
//
// Callers compare with errors.Is; lower layers wrap with fmt.Errorf("...: %w", ...)
// so context survives the trip up to the pipeline boundary. Only these
// sentinels (plus BadRequest/InvalidClass/NotFound) are allowed to cross the
// pipeline boundary - everything else (I/O, codec) is handled where it occurs.
package edgeerr

import "errors"

var (
	// NotFound is returned for an ordinary cache miss. Not logged as an error.
	NotFound = errors.New("edgeerr: not found")

	// InvalidClass is returned when a caller references an unknown CacheClass.
	InvalidClass = errors.New("edgeerr: invalid cache class")

	// CacheDisabled is returned when CACHE_ENABLED=false; reads behave as a
	// clean miss and writes are a no-op.
	CacheDisabled = errors.New("edgeerr: cache disabled")

	// BadRequest is returned by the pipeline when a request fails basic
	// validation (empty text/src/tgt).
	BadRequest = errors.New("edgeerr: bad request")

	// UpstreamUnreachable is returned when the cloud probe or upload fails;
	// the sync cycle aborts cleanly and queued records are left in place.
	UpstreamUnreachable = errors.New("edgeerr: upstream unreachable")

	// ConflictUnresolved is returned when a conflict resolution strategy is
	// not recognized. A merge where both sides lack confidence/timestamp does
	// not return it: the resolver falls back to remote-wins and counts a
	// sync error itself.
	ConflictUnresolved = errors.New("edgeerr: conflict unresolved")

	// EngineFailed is returned by the pipeline when the local engine is
	// absent or failed and no cloud engine is configured to fall back to.
	EngineFailed = errors.New("edgeerr: local engine failed")
)
