// Package main is the entry point for the edge translation cache/sync node.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/api"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheengine"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/config"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/entrystore"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/logging"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/pipeline"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/statshistory"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/syncmanager"
)

// ANSI color codes for the startup banner.
const (
	medGreen = "\033[38;2;23;142;92m"
	bold     = "\033[1m"
	reset    = "\033[0m"
)

const banner = `
 ███╗   ███╗███████╗██████╗ ████████╗██████╗  █████╗ ███╗   ██╗███████╗██╗      █████╗ ████████╗███████╗
 ████╗ ████║██╔════╝██╔══██╗╚══██╔══╝██╔══██╗██╔══██╗████╗  ██║██╔════╝██║     ██╔══██╗╚══██╔══╝██╔════╝
 ██╔████╔██║█████╗  ██║  ██║   ██║   ██████╔╝███████║██╔██╗ ██║███████╗██║     ███████║   ██║   █████╗
 ██║╚██╔╝██║██╔══╝  ██║  ██║   ██║   ██╔══██╗██╔══██║██║╚██╗██║╚════██║██║     ██╔══██║   ██║   ██╔══╝
 ██║ ╚═╝ ██║███████╗██████╔╝   ██║   ██║  ██║██║  ██║██║ ╚████║███████║███████╗██║  ██║   ██║   ███████╗
 ╚═╝     ╚═╝╚══════╝╚═════╝    ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═══╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝   ╚══════╝
                                  edge cache & sync node
`

func printBanner() {
	fmt.Print(medGreen + bold + banner + reset + "\n")
}

// loadEnvFiles loads .env from standard locations, mirroring the ancestor
// lineage's multi-location search: a per-user config dir first, then the
// working directory, both silently ignored when absent.
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}
	userEnv := filepath.Join(homeDir, ".config", "medtranslate-edge", ".env")
	if _, err := os.Stat(userEnv); err == nil {
		_ = godotenv.Load(userEnv)
	}
	_ = godotenv.Load()
}

func main() {
	loadEnvFiles()

	noBanner := os.Getenv("NO_BANNER") == "true"
	if !noBanner {
		printBanner()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "medtranslate-edge: invalid configuration:", err)
		os.Exit(1)
	}

	logging.Global(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Info().Str("cache_dir", cfg.CacheDir).Str("sync_dir", cfg.SyncDir).Msg("medtranslate-edge starting")

	node, err := bootstrap(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap failed")
	}

	node.start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	node.shutdown(ctx)

	log.Info().Msg("medtranslate-edge stopped")
}

// node bundles every long-lived collaborator so main can start and stop
// them as one unit (spec.md §9: single-cancel shutdown).
type node struct {
	store       *entrystore.Store
	engine      *cacheengine.Engine
	statsStore  *statshistory.Store
	syncManager *syncmanager.Manager
	apiServer   *api.Server
}

func bootstrap(cfg *config.Config) (*node, error) {
	store := entrystore.New(cfg.CacheDir)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("load entry store: %w", err)
	}

	statsStore, err := statshistory.Open(cfg.StatsHistoryDB)
	if err != nil {
		return nil, fmt.Errorf("open stats history: %w", err)
	}

	engine := cacheengine.New(store, cacheengine.Config{
		SizeLimit:                cfg.CacheSizeLimit,
		DefaultTTL:               cfg.CacheTTL,
		OfflinePriorityThreshold: cfg.OfflinePriorityThreshold,
		CompressionEnabled:       cfg.CompressionEnabled,
		CompressionThreshold:     cfg.CompressionThreshold,
		CompressionLevel:         cfg.CompressionLevel,
		Enabled:                  cfg.CacheEnabled,
	}).WithStatsRecorder(statsStore)

	var signer *syncmanager.RequestSigner
	if cfg.CloudAuthMode == config.CloudAuthSigV4 {
		signer = syncmanager.NewRequestSigner(context.Background())
	}
	cloudClient := syncmanager.NewHTTPClient(cfg.APIBaseURL, &http.Client{}, signer)

	syncMgr, err := syncmanager.New(
		filepath.Join(cfg.SyncDir, "queue"),
		filepath.Join(cfg.SyncDir, "models"),
		filepath.Join(cfg.SyncDir, "sync-config.json"),
		cloudClient,
		syncmanager.Config{
			DeviceID:      cfg.DeviceID,
			SyncInterval:  cfg.SyncInterval,
			ProbeTimeout:  cfg.CloudProbeTimeout,
			UploadTimeout: cfg.CloudUploadTimeout,
			ModelTimeout:  cfg.CloudModelTimeout,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("construct sync manager: %w", err)
	}

	pl := pipeline.New(engine, syncMgr, nil, nil, nil, nil)

	apiServer := api.New(getString("API_LISTEN_ADDR", ":8088"), pl, engine, syncMgr)

	return &node{
		store:       store,
		engine:      engine,
		statsStore:  statsStore,
		syncManager: syncMgr,
		apiServer:   apiServer,
	}, nil
}

func (n *node) start() {
	n.engine.Start()
	n.syncManager.Start(context.Background())

	go func() {
		if err := n.apiServer.Start(); err != nil {
			log.Error().Err(err).Msg("api server stopped unexpectedly")
		}
	}()
}

// shutdown flushes and stops every collaborator in the order that avoids
// losing in-flight writes: API first (stop accepting new work), then the
// sync ticker, then the engine's snapshot flush, then the stats store.
func (n *node) shutdown(ctx context.Context) {
	if err := n.apiServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("api shutdown error")
	}
	n.syncManager.Stop()
	n.engine.Stop()
	if err := n.engine.SaveToDisk(nil); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	}
	if err := n.statsStore.Close(); err != nil {
		log.Error().Err(err).Msg("stats history close failed")
	}
}

func getString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
