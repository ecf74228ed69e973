package cacheengine

import (
	"time"

	"github.com/rs/zerolog/log"
)

const (
	statsRolloverInterval = 7 * 24 * time.Hour
	snapshotInterval      = 1 * time.Hour
)

// Start launches the engine's single periodic-job loop: cleanup every
// TTL/4, a full snapshot every hour, and a stats rollover every 7 days
// (spec §4.3 periodic jobs). One ticker drives all three checks rather than
// three independent timers, so there is exactly one background goroutine
// to reason about and stop. The ticker itself wakes at the shortest job
// period (the hourly snapshot) so the elapsed-time checks inside the loop
// can still honor each job's own, coarser cadence.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.started = true

	cleanupEvery := e.cfg.DefaultTTL / 4
	if cleanupEvery <= 0 {
		cleanupEvery = 6 * time.Hour
	}

	tick := snapshotInterval
	if cleanupEvery < tick {
		tick = cleanupEvery
	}

	e.wg.Add(1)
	go e.loop(tick, cleanupEvery)
}

func (e *Engine) loop(tick, cleanupEvery time.Duration) {
	defer e.wg.Done()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var lastCleanup, lastSnapshot int64
	lastRollover := e.now()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			now := e.now()

			if now-lastCleanup >= cleanupEvery.Milliseconds() {
				if n, err := e.CleanupExpired(nil, CleanupOptions{}); err != nil {
					log.Error().Err(err).Msg("cacheengine: periodic cleanup failed")
				} else if n > 0 {
					log.Info().Int("removed", n).Msg("cacheengine: periodic cleanup")
				}
				lastCleanup = now
			}

			if now-lastSnapshot >= snapshotInterval.Milliseconds() {
				if err := e.store.SnapshotAll(); err != nil {
					log.Error().Err(err).Msg("cacheengine: periodic snapshot failed")
				}
				lastSnapshot = now
			}

			if now-lastRollover >= statsRolloverInterval.Milliseconds() {
				e.stats.rollover()
				if err := e.recorder.RecordSnapshot(e.stats.snapshot(), now); err != nil {
					log.Error().Err(err).Msg("cacheengine: stats rollover recording failed")
				}
				lastRollover = now
			}
		}
	}
}

// Stop halts the periodic-job loop and waits for it to exit.
func (e *Engine) Stop() {
	if !e.started {
		return
	}
	close(e.stopChan)
	e.wg.Wait()
	e.started = false
}
