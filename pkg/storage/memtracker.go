package storage

import (
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// MemoryTracker accounts for storage-layer allocations against a
// configured hard limit. It does not itself allocate or free anything.
// The Engine reserves a fixed approxRecordSize estimate in CreateVertex
// and CreateEdge only; nothing in this module outside the tests calls
// Release, so Used does not fall when records are deleted or reclaimed.
type MemoryTracker struct {
	used  atomic.Int64
	peak  atomic.Int64
	limit atomic.Int64 // 0 means unlimited
}

func NewMemoryTracker(hardLimitBytes int64) *MemoryTracker {
	mt := &MemoryTracker{}
	mt.limit.Store(hardLimitBytes)
	return mt
}

// Reserve accounts for n additional bytes, failing with ErrOutOfMemory
// without changing the tracked total if the hard limit would be exceeded.
// Callers that receive this error must abort their transaction.
func (mt *MemoryTracker) Reserve(n int64) error {
	limit := mt.limit.Load()
	for {
		cur := mt.used.Load()
		next := cur + n
		if limit > 0 && next > limit {
			return ErrOutOfMemory
		}
		if mt.used.CompareAndSwap(cur, next) {
			mt.bumpPeak(next)
			return nil
		}
	}
}

func (mt *MemoryTracker) bumpPeak(next int64) {
	for {
		peak := mt.peak.Load()
		if next <= peak {
			return
		}
		if mt.peak.CompareAndSwap(peak, next) {
			return
		}
	}
}

// Release gives back n bytes previously reserved.
func (mt *MemoryTracker) Release(n int64) {
	mt.used.Add(-n)
}

func (mt *MemoryTracker) Used() int64  { return mt.used.Load() }
func (mt *MemoryTracker) Peak() int64  { return mt.peak.Load() }
func (mt *MemoryTracker) Limit() int64 { return mt.limit.Load() }

// SetLimit adjusts the hard limit at runtime (configuration reload);
// 0 disables enforcement.
func (mt *MemoryTracker) SetLimit(n int64) { mt.limit.Store(n) }

// String reports usage in the humanize package's short form, matching the
// teacher's convention of logging byte counts as "12.3 MB" instead of raw
// integers.
func (mt *MemoryTracker) String() string {
	limit := mt.Limit()
	if limit <= 0 {
		return humanize.Bytes(uint64(mt.Used())) + " / unlimited"
	}
	return humanize.Bytes(uint64(mt.Used())) + " / " + humanize.Bytes(uint64(limit))
}

// approxRecordSize gives engine.go a rough per-object byte estimate
// to charge against the tracker; it is not exact (PropertyValue strings
// and lists have variable backing size), only an order-of-magnitude guard
// against runaway growth, same role the budget plays in the original
// implementation's allocator-level accounting.
func approxRecordSize(labelCount, propCount, edgeCount int) int64 {
	const base = 96
	return int64(base + labelCount*4 + propCount*32 + edgeCount*24)
}
