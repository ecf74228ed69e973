// Package config loads and validates the edge node configuration.
//
// DESIGN: All configuration comes from the process environment (spec §6).
// There is no config file - every field except API_BASE_URL has a
// documented default, so ops can override individual knobs without
// maintaining a full file; Load fails while API_BASE_URL is unset.
// Load() reads os.Getenv directly; Validate() rejects
// structurally invalid values before the rest of the node starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// CloudAuthMode selects how outbound cloud requests are authenticated.
type CloudAuthMode string

const (
	CloudAuthNone  CloudAuthMode = "none"
	CloudAuthSigV4 CloudAuthMode = "sigv4"
)

// Config is the root configuration for the edge node, assembled entirely
// from environment variables (spec §6, §6[FULL]).
type Config struct {
	// Cache Engine / Entry Store
	CacheDir                 string
	CacheSizeLimit           int
	CacheTTL                 time.Duration
	CacheEnabled             bool
	OfflinePriorityThreshold int

	// Codec
	CompressionEnabled   bool
	CompressionThreshold int
	CompressionLevel     int

	// Sync Manager
	SyncDir             string
	SyncInterval        time.Duration
	APIBaseURL          string
	DeviceID            string
	CloudAuthMode       CloudAuthMode
	CloudUploadTimeout  time.Duration
	CloudProbeTimeout   time.Duration
	CloudModelTimeout   time.Duration

	// Stats History (C7)
	StatsHistoryDB string

	// Logging (C6)
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, applying spec §6's
// defaults, then validates it.
func Load() (*Config, error) {
	cacheDir := getString("CACHE_DIR", "../../cache")
	cfg := &Config{
		CacheDir:                 cacheDir,
		CacheSizeLimit:           getInt("CACHE_SIZE_LIMIT", 1000),
		CacheTTL:                 getMillisDuration("CACHE_TTL", 86_400_000),
		CacheEnabled:             getBool("CACHE_ENABLED", true),
		OfflinePriorityThreshold: getInt("OFFLINE_PRIORITY_THRESHOLD", 5),

		CompressionEnabled:   getBool("COMPRESSION_ENABLED", true),
		CompressionThreshold: getInt("COMPRESSION_THRESHOLD", 1024),
		CompressionLevel:     getInt("COMPRESSION_LEVEL", 6),

		SyncDir:            getString("SYNC_DIR", "../../sync"),
		SyncInterval:       getMillisDuration("SYNC_INTERVAL", 300_000),
		APIBaseURL:         getString("API_BASE_URL", ""),
		DeviceID:           getString("DEVICE_ID", "dev-edge-device"),
		CloudAuthMode:      CloudAuthMode(getString("CLOUD_AUTH_MODE", string(CloudAuthNone))),
		CloudUploadTimeout: getMillisDuration("CLOUD_UPLOAD_TIMEOUT", 10_000),
		CloudProbeTimeout:  getMillisDuration("CLOUD_PROBE_TIMEOUT", 5_000),
		CloudModelTimeout:  getMillisDuration("CLOUD_MODEL_TIMEOUT", 300_000),

		StatsHistoryDB: getString("STATS_HISTORY_DB", cacheDir+"/stats-history.db"),

		LogLevel:  getString("LOG_LEVEL", "info"),
		LogFormat: getString("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration is structurally sound.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if c.CacheSizeLimit <= 0 {
		return fmt.Errorf("CACHE_SIZE_LIMIT must be > 0, got %d", c.CacheSizeLimit)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be > 0, got %s", c.CacheTTL)
	}
	if c.OfflinePriorityThreshold <= 0 {
		return fmt.Errorf("OFFLINE_PRIORITY_THRESHOLD must be > 0, got %d", c.OfflinePriorityThreshold)
	}
	if c.CompressionThreshold < 0 {
		return fmt.Errorf("COMPRESSION_THRESHOLD must be >= 0, got %d", c.CompressionThreshold)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return fmt.Errorf("COMPRESSION_LEVEL must be 0-9, got %d", c.CompressionLevel)
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be > 0, got %s", c.SyncInterval)
	}
	switch c.CloudAuthMode {
	case CloudAuthNone, CloudAuthSigV4:
	default:
		return fmt.Errorf("CLOUD_AUTH_MODE must be 'none' or 'sigv4', got %q", c.CloudAuthMode)
	}
	return nil
}

func getString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func getInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getMillisDuration reads an env var expressed in milliseconds (spec §6's
// convention for every *_TTL/*_INTERVAL/*_TIMEOUT knob) and returns a
// time.Duration.
func getMillisDuration(name string, defMillis int64) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return time.Duration(defMillis) * time.Millisecond
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Duration(defMillis) * time.Millisecond
	}
	return time.Duration(n) * time.Millisecond
}
