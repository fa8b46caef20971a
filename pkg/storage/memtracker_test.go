package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTrackerReserveRespectsHardLimit(t *testing.T) {
	mt := NewMemoryTracker(100)
	require.NoError(t, mt.Reserve(60))
	err := mt.Reserve(50)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, int64(60), mt.Used(), "a rejected reservation must not change the tracked total")
}

func TestMemoryTrackerReleaseFreesBudget(t *testing.T) {
	mt := NewMemoryTracker(100)
	require.NoError(t, mt.Reserve(60))
	mt.Release(60)
	assert.Equal(t, int64(0), mt.Used())
	require.NoError(t, mt.Reserve(90))
}

func TestMemoryTrackerUnlimitedWhenZero(t *testing.T) {
	mt := NewMemoryTracker(0)
	require.NoError(t, mt.Reserve(1<<40))
}

func TestMemoryTrackerPeakNeverDecreasesOnRelease(t *testing.T) {
	mt := NewMemoryTracker(0)
	require.NoError(t, mt.Reserve(100))
	mt.Release(40)
	require.NoError(t, mt.Reserve(10))
	assert.Equal(t, int64(100), mt.Peak())
	assert.Equal(t, int64(70), mt.Used())
}

func TestMemoryTrackerSetLimitAppliesImmediately(t *testing.T) {
	mt := NewMemoryTracker(0)
	require.NoError(t, mt.Reserve(50))
	mt.SetLimit(40)
	err := mt.Reserve(1)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}
