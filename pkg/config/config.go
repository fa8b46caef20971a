// Package config handles the storage engine's configuration via
// environment variables, following the same NEO4J_*/NORNICDB_* naming
// convention the rest of the project uses for its configuration surface.
//
// Configuration is loaded from environment variables using LoadFromEnv()
// and can be validated with Validate() before use.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// Environment Variables:
//
//   - NORNICDB_SNAPSHOT_DIRECTORY="./data/snapshots"
//   - NORNICDB_RECOVER_ON_STARTUP=true
//   - NORNICDB_SNAPSHOT_INTERVAL=5m
//   - NORNICDB_SNAPSHOT_WAL_MODE="periodic" or "disabled"
//   - NORNICDB_MEMORY_LIMIT_HARD="0" (unlimited) or "2GB"
//   - NORNICDB_MEMORY_WARNING_THRESHOLD=0.9
//   - NORNICDB_PROPERTIES_ON_EDGES=true
//   - NORNICDB_ENABLE_SCHEMA_METADATA=true
//   - NORNICDB_ISOLATION_LEVEL_DEFAULT="snapshot", "read_committed", "read_uncommitted"
//   - NORNICDB_STORAGE_MODE_DEFAULT="transactional" or "analytical"
//   - NORNICDB_GC_PERIOD=30s
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-configurable storage-engine setting.
type Config struct {
	Snapshot SnapshotConfig
	Memory   MemoryConfig
	Storage  StorageConfig
}

// SnapshotConfig controls the durability pipeline's snapshot and WAL
// behavior.
type SnapshotConfig struct {
	// Directory where snapshot and WAL segment files are written and,
	// on startup, discovered for recovery.
	Directory string
	// RecoverOnStartup controls whether the engine loads the latest
	// snapshot and replays WAL segments before accepting transactions.
	RecoverOnStartup bool
	// Interval is the configured time between automatic snapshots.
	// Nothing in this module schedules snapshots from it; storectl's
	// snapshot command writes one on demand.
	Interval time.Duration
	// WALMode is "periodic" or "disabled"; Validate accepts only these.
	// No other code reads it: durability.Writer flushes and fsyncs on
	// every AppendCommit, and storectl opens its engine without a WAL.
	WALMode string
}

// MemoryConfig controls the memory tracker's accounting.
type MemoryConfig struct {
	// HardLimitBytes is the ceiling MemoryTracker.Reserve enforces; 0
	// means unlimited.
	HardLimitBytes int64
	// HardLimitStr is the human-readable form the value was parsed from
	// (e.g. "2GB"), kept for logging.
	HardLimitStr string
	// WarningThreshold is a fraction of HardLimitBytes (0 < t <= 1) that
	// Validate range-checks; no other code reads it, so no capacity
	// warning is logged from it.
	WarningThreshold float64
}

// StorageConfig controls the record-store-level defaults.
type StorageConfig struct {
	// PropertiesOnEdges is passed to storage.Config; when false,
	// Engine.SetEdgeProperty returns ErrPropertiesDisabled (edge property
	// reads are not checked).
	PropertiesOnEdges bool
	// EnableSchemaMetadata is loaded from the environment but not read by
	// any other package; index and constraint introspection are always
	// available.
	EnableSchemaMetadata bool
	// IsolationLevelDefault is the isolation new transactions get when
	// Engine.Begin is called without an explicit override.
	IsolationLevelDefault string
	// StorageModeDefault is "transactional" or "analytical".
	StorageModeDefault string
	// GCPeriod is the configured background reclaimer period. storectl
	// does not pass it on and starts no background reclaimer; its gc
	// command runs ReclaimOnce once.
	GCPeriod time.Duration
}

// LoadFromEnv reads every recognized environment variable, applying the
// documented defaults for anything unset.
func LoadFromEnv() *Config {
	cfg := &Config{}

	cfg.Snapshot.Directory = getEnv("NORNICDB_SNAPSHOT_DIRECTORY", "./data/snapshots")
	cfg.Snapshot.RecoverOnStartup = getEnvBool("NORNICDB_RECOVER_ON_STARTUP", true)
	cfg.Snapshot.Interval = getEnvDuration("NORNICDB_SNAPSHOT_INTERVAL", 5*time.Minute)
	cfg.Snapshot.WALMode = getEnv("NORNICDB_SNAPSHOT_WAL_MODE", "periodic")

	cfg.Memory.HardLimitStr = getEnv("NORNICDB_MEMORY_LIMIT_HARD", "0")
	cfg.Memory.HardLimitBytes = parseMemorySize(cfg.Memory.HardLimitStr)
	cfg.Memory.WarningThreshold = getEnvFloat("NORNICDB_MEMORY_WARNING_THRESHOLD", 0.9)

	cfg.Storage.PropertiesOnEdges = getEnvBool("NORNICDB_PROPERTIES_ON_EDGES", true)
	cfg.Storage.EnableSchemaMetadata = getEnvBool("NORNICDB_ENABLE_SCHEMA_METADATA", true)
	cfg.Storage.IsolationLevelDefault = getEnv("NORNICDB_ISOLATION_LEVEL_DEFAULT", "snapshot")
	cfg.Storage.StorageModeDefault = getEnv("NORNICDB_STORAGE_MODE_DEFAULT", "transactional")
	cfg.Storage.GCPeriod = getEnvDuration("NORNICDB_GC_PERIOD", 30*time.Second)

	return cfg
}

// Validate rejects a Config whose settings could not be turned into a
// running engine. Returns nil if the configuration is usable.
func (c *Config) Validate() error {
	if c.Memory.HardLimitBytes < 0 {
		return fmt.Errorf("config: negative memory hard limit")
	}
	if c.Memory.WarningThreshold <= 0 || c.Memory.WarningThreshold > 1 {
		return fmt.Errorf("config: memory warning threshold must be in (0, 1], got %v", c.Memory.WarningThreshold)
	}
	switch c.Storage.IsolationLevelDefault {
	case "snapshot", "read_committed", "read_uncommitted":
	default:
		return fmt.Errorf("config: unknown isolation level %q", c.Storage.IsolationLevelDefault)
	}
	switch c.Storage.StorageModeDefault {
	case "transactional", "analytical":
	default:
		return fmt.Errorf("config: unknown storage mode %q", c.Storage.StorageModeDefault)
	}
	switch c.Snapshot.WALMode {
	case "periodic", "disabled":
	default:
		return fmt.Errorf("config: unknown snapshot WAL mode %q", c.Snapshot.WALMode)
	}
	if c.Snapshot.Directory == "" {
		return fmt.Errorf("config: snapshot directory must not be empty")
	}
	return nil
}

// String returns a log-safe summary (no values here are sensitive, but
// the method is kept for parity with the logging convention the rest of
// the project follows).
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{SnapshotDir: %s, MemoryLimit: %s, Isolation: %s, Mode: %s}",
		c.Snapshot.Directory, c.Memory.HardLimitStr, c.Storage.IsolationLevelDefault, c.Storage.StorageModeDefault,
	)
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string.
// Supports: "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited".
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as a human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
