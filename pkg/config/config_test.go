package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "./data/snapshots", cfg.Snapshot.Directory)
	assert.True(t, cfg.Snapshot.RecoverOnStartup)
	assert.Equal(t, 5*time.Minute, cfg.Snapshot.Interval)
	assert.Equal(t, "periodic", cfg.Snapshot.WALMode)

	assert.Equal(t, int64(0), cfg.Memory.HardLimitBytes)
	assert.InDelta(t, 0.9, cfg.Memory.WarningThreshold, 0.0001)

	assert.True(t, cfg.Storage.PropertiesOnEdges)
	assert.Equal(t, "snapshot", cfg.Storage.IsolationLevelDefault)
	assert.Equal(t, "transactional", cfg.Storage.StorageModeDefault)
}

func TestValidateRejectsUnknownIsolationLevel(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Storage.IsolationLevelDefault = "serializable"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownStorageMode(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Storage.StorageModeDefault = "bulk"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadWarningThreshold(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Memory.WarningThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg.Memory.WarningThreshold = 1.5
	assert.Error(t, cfg.Validate())
}

func TestParseMemorySize(t *testing.T) {
	cases := map[string]int64{
		"0":         0,
		"unlimited": 0,
		"1024":      1024,
		"1KB":       1024,
		"2MB":       2 * 1024 * 1024,
		"1GB":       1024 * 1024 * 1024,
	}
	for input, want := range cases {
		assert.Equal(t, want, parseMemorySize(input), "input %q", input)
	}
}

func TestFormatMemorySize(t *testing.T) {
	assert.Equal(t, "512 B", FormatMemorySize(512))
	assert.Equal(t, "1.00 KB", FormatMemorySize(1024))
	assert.Equal(t, "2.00 MB", FormatMemorySize(2*1024*1024))
}
