package procedure

import (
	"sync"
	"sync/atomic"

	"github.com/mimirgraph/corestore/pkg/storage"
)

// Handle is an opaque reference a plugin holds instead of a Go pointer.
// The zero Handle is never valid; HandleTable.Put always returns a
// nonzero value. Keeping plugin-visible state behind an integer handle
// table (rather than handing out *storage.Vertex directly) means a
// misbehaving plugin can never dereference or retain a Go pointer past
// the call it received it in.
type Handle uint64

// HandleTable maps Handles to the Go values they stand in for. One table
// per open procedure call; every handle it issued becomes invalid the
// moment the call returns, enforced by Release rather than by any
// language-level lifetime (the ABI has no such concept).
type HandleTable struct {
	mu   sync.RWMutex
	next atomic.Uint64
	vals map[Handle]any
}

func NewHandleTable() *HandleTable {
	return &HandleTable{vals: make(map[Handle]any)}
}

func (ht *HandleTable) Put(v any) Handle {
	h := Handle(ht.next.Add(1))
	ht.mu.Lock()
	ht.vals[h] = v
	ht.mu.Unlock()
	return h
}

func (ht *HandleTable) Get(h Handle) (any, bool) {
	ht.mu.RLock()
	defer ht.mu.RUnlock()
	v, ok := ht.vals[h]
	return v, ok
}

// Release invalidates h. Calling any bridge function with a released
// handle returns ErrorInvalidArgument.
func (ht *HandleTable) Release(h Handle) {
	ht.mu.Lock()
	delete(ht.vals, h)
	ht.mu.Unlock()
}

// ReleaseAll invalidates every handle the table has issued, called once
// when the procedure call that owns this table returns.
func (ht *HandleTable) ReleaseAll() {
	ht.mu.Lock()
	ht.vals = make(map[Handle]any)
	ht.mu.Unlock()
}

func (ht *HandleTable) vertex(h Handle) (*storage.Vertex, bool) {
	v, ok := ht.Get(h)
	if !ok {
		return nil, false
	}
	vert, ok := v.(*storage.Vertex)
	return vert, ok
}

func (ht *HandleTable) edge(h Handle) (*storage.Edge, bool) {
	v, ok := ht.Get(h)
	if !ok {
		return nil, false
	}
	e, ok := v.(*storage.Edge)
	return e, ok
}
