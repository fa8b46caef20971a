package procedure

import "sync"

// Arena is a caller-supplied allocator standing in for the
// arena-allocated scratch memory the C ABI hands a plugin for its call
// duration: every byte slice a plugin asks for comes out of one
// Arena, and freeing happens once, in bulk, at Reset, instead of per
// allocation. This mirrors the allocation discipline without needing
// unsafe or cgo: the Arena is just a list of Go slices it owns, one
// freshly allocated slice per Alloc call.
type Arena struct {
	mu     sync.Mutex
	blocks [][]byte
	cap    int
}

// NewArena creates an arena, recording blockSize (64 KiB when <= 0).
// Alloc does not use it: every request gets its own block of exactly
// the requested size, and no block is shared between requests.
func NewArena(blockSize int) *Arena {
	if blockSize <= 0 {
		blockSize = 64 * 1024
	}
	return &Arena{cap: blockSize}
}

// Alloc returns an n-byte slice valid until the next Reset. Never
// returns an error: an Arena has no hard ceiling of its own, the
// storage.MemoryTracker the caller charges against does.
func (a *Arena) Alloc(n int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	block := make([]byte, n)
	a.blocks = append(a.blocks, block)
	return block
}

// Reset releases every block the arena has handed out; slices returned
// by prior Alloc calls must not be used afterward.
func (a *Arena) Reset() {
	a.mu.Lock()
	a.blocks = nil
	a.mu.Unlock()
}

// Allocated reports the arena's current total outstanding allocation, for
// charging against a storage.MemoryTracker.
func (a *Arena) Allocated() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total int64
	for _, b := range a.blocks {
		total += int64(len(b))
	}
	return total
}
