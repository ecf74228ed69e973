package syncmanager

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Start launches the single tick loop driving RunCycle every SyncInterval
// (spec §4.4). A tick that lands while a cycle is already running is simply
// dropped by RunCycle's syncInProgress guard, never queued up.
func (m *Manager) Start(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true

	m.wg.Add(1)
	go m.loop(ctx)
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.RunCycle(ctx); err != nil {
				log.Warn().Err(err).Msg("syncmanager: sync cycle did not complete")
			}
		}
	}
}

// Stop halts the tick loop and waits for the in-flight cycle, if any, to
// return control (it does not interrupt an in-progress cycle).
func (m *Manager) Stop() {
	if !m.started {
		return
	}
	close(m.stopChan)
	m.wg.Wait()
	m.started = false
}
