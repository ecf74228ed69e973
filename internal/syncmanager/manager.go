// Package syncmanager is the Sync Manager (spec §4.4): a durable outbound
// queue, an online/offline-driven state machine, batched cloud upload,
// model-manifest pull and conflict-ready cloud reachability detection.
package syncmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
)

// State is one state of the per-cycle state machine (spec §4.4).
type State string

const (
	StateIdle          State = "idle"
	StateProbing       State = "probing"
	StateUploading     State = "uploading"
	StatePullingModels State = "pulling_models"
)

const batchSize = 10

// Config carries the sync-policy knobs read from the environment (spec §6).
type Config struct {
	DeviceID      string
	SyncInterval  time.Duration
	ProbeTimeout  time.Duration
	UploadTimeout time.Duration
	ModelTimeout  time.Duration
}

// ConfigState is the persisted sync-config.json (spec §6).
type ConfigState struct {
	Enabled        bool   `json:"enabled"`
	LastSyncTime   int64  `json:"lastSyncTime,omitempty"`
	LastSyncStatus string `json:"lastSyncStatus,omitempty"`
	DeviceID       string `json:"deviceId"`
}

// Manager is the Sync Manager (spec §4.4).
type Manager struct {
	queue     *Queue
	client    CloudClient
	cfg       Config
	modelDir  string
	statePath string

	mu             sync.Mutex
	state          State
	syncInProgress bool
	configState    ConfigState

	clock func() int64

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
}

// New constructs a Manager. queueDir holds per-record queue files, modelDir
// the locally cached model files, statePath the sync-config.json location.
func New(queueDir, modelDir, statePath string, client CloudClient, cfg Config) (*Manager, error) {
	queue, err := NewQueue(queueDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return nil, fmt.Errorf("syncmanager: create model dir: %w", err)
	}

	m := &Manager{
		queue:     queue,
		client:    client,
		cfg:       cfg,
		modelDir:  modelDir,
		statePath: statePath,
		state:     StateIdle,
		clock:     func() int64 { return time.Now().UnixMilli() },
		stopChan:  make(chan struct{}),
	}
	m.configState = m.loadConfigState()
	return m, nil
}

// WithClock overrides the time source; used by tests.
func (m *Manager) WithClock(clock func() int64) *Manager {
	if clock != nil {
		m.clock = clock
	}
	return m
}

func (m *Manager) loadConfigState() ConfigState {
	raw, err := os.ReadFile(m.statePath)
	if err != nil {
		return ConfigState{Enabled: true, DeviceID: m.cfg.DeviceID}
	}
	var cs ConfigState
	if err := json.Unmarshal(raw, &cs); err != nil {
		return ConfigState{Enabled: true, DeviceID: m.cfg.DeviceID}
	}
	return cs
}

func (m *Manager) persistConfigState() {
	raw, err := json.Marshal(m.configState)
	if err != nil {
		log.Error().Err(err).Msg("syncmanager: marshal config state failed")
		return
	}
	tmp := m.statePath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		log.Error().Err(err).Msg("syncmanager: write config state failed")
		return
	}
	if err := os.Rename(tmp, m.statePath); err != nil {
		log.Error().Err(err).Msg("syncmanager: rename config state failed")
	}
}

// Status returns the current persisted sync-config state (spec §6 getSyncStatus).
func (m *Manager) Status() ConfigState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configState
}

// SetEnabled toggles whether RunCycle performs any work (spec §6 setSyncEnabled).
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configState.Enabled = enabled
	m.persistConfigState()
}

// Enqueue durably queues rec for upload (spec §6 queueTranslation).
func (m *Manager) Enqueue(rec *cacheentry.SyncRecord) error {
	return m.queue.Enqueue(rec)
}

// QueueLength reports how many records are pending upload.
func (m *Manager) QueueLength() (int, error) {
	return m.queue.Len()
}

// ClearQueue deletes every queued record (spec §6 clearSyncQueue).
func (m *Manager) ClearQueue() error {
	return m.queue.Clear()
}

// TestConnection probes cloud reachability without running a full cycle
// (spec §6 testConnection).
func (m *Manager) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	return m.client.Probe(ctx)
}

// RunCycle drives one pass of the state machine (spec §4.4). It is a no-op
// if a cycle is already in progress (the ticker drops overlapping ticks) or
// sync has been disabled via SetEnabled(false).
func (m *Manager) RunCycle(ctx context.Context) error {
	m.mu.Lock()
	if m.syncInProgress || !m.configState.Enabled {
		m.mu.Unlock()
		return nil
	}
	m.syncInProgress = true
	m.state = StateProbing
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.syncInProgress = false
		m.state = StateIdle
		m.mu.Unlock()
	}()

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	err := m.client.Probe(probeCtx)
	cancel()
	if err != nil {
		m.finishCycle("failed")
		return fmt.Errorf("syncmanager: probe: %w", err)
	}

	m.mu.Lock()
	m.state = StateUploading
	m.mu.Unlock()

	if err := m.drainQueue(ctx); err != nil {
		m.finishCycle("failed")
		return fmt.Errorf("syncmanager: drain: %w", err)
	}

	m.mu.Lock()
	m.state = StatePullingModels
	m.mu.Unlock()

	if err := m.pullModels(ctx); err != nil {
		m.finishCycle("failed")
		return fmt.Errorf("syncmanager: pull models: %w", err)
	}

	m.finishCycle("success")
	return nil
}

func (m *Manager) finishCycle(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configState.LastSyncStatus = status
	if status == "success" {
		m.configState.LastSyncTime = m.clock()
	}
	m.persistConfigState()
}

// drainQueue uploads the queue in batches of up to 10 (spec §4.4 batching).
// The queue is reloaded from disk before batching and again after the drain
// completes, so it always reflects disk truth (P9, P10).
func (m *Manager) drainQueue(ctx context.Context) error {
	records, err := m.queue.Load()
	if err != nil {
		return err
	}

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		uploadCtx, cancel := context.WithTimeout(ctx, m.cfg.UploadTimeout)
		err := m.client.Upload(uploadCtx, m.cfg.DeviceID, batch)
		cancel()
		if err != nil {
			return err
		}
		for _, rec := range batch {
			if err := m.queue.Delete(rec.ID); err != nil {
				log.Error().Err(err).Str("id", rec.ID).Msg("syncmanager: delete acked record failed")
			}
		}
	}

	// Reflect disk truth after the drain cycle (spec §4.4).
	_, err = m.queue.Load()
	return err
}

// pullModels compares the remote manifest against the local model
// directory and streams down anything missing or size-mismatched (spec §4.4).
func (m *Manager) pullModels(ctx context.Context) error {
	manifestCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	manifest, err := m.client.FetchManifest(manifestCtx, m.cfg.DeviceID)
	cancel()
	if err != nil {
		return err
	}

	local, err := m.localModelSizes()
	if err != nil {
		return err
	}

	for filename, desc := range manifest {
		if localSize, ok := local[filename]; ok && localSize == desc.Size {
			continue
		}
		if err := m.downloadModel(ctx, filename); err != nil {
			return fmt.Errorf("download %s: %w", filename, err)
		}
	}

	return m.persistManifest(manifest)
}

func (m *Manager) localModelSizes() (map[string]int64, error) {
	entries, err := os.ReadDir(m.modelDir)
	if err != nil {
		return nil, fmt.Errorf("syncmanager: read model dir: %w", err)
	}
	sizes := make(map[string]int64, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sizes[entry.Name()] = info.Size()
	}
	return sizes, nil
}

func (m *Manager) downloadModel(ctx context.Context, filename string) error {
	downloadCtx, cancel := context.WithTimeout(ctx, m.cfg.ModelTimeout)
	defer cancel()

	body, err := m.client.DownloadModel(downloadCtx, filename)
	if err != nil {
		return err
	}
	defer body.Close()

	dest := filepath.Join(m.modelDir, filename)
	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("syncmanager: create model file: %w", err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		return fmt.Errorf("syncmanager: stream model: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("syncmanager: close model file: %w", err)
	}
	return os.Rename(tmp, dest)
}

func (m *Manager) persistManifest(manifest map[string]cacheentry.ModelDescriptor) error {
	raw, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("syncmanager: marshal manifest: %w", err)
	}
	path := filepath.Join(m.modelDir, "manifest.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("syncmanager: write manifest: %w", err)
	}
	return os.Rename(tmp, path)
}
