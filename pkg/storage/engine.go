package storage

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WAL is the durability hook Commit calls before marking deltas
// committed. pkg/durability implements it; tests may supply a no-op or
// in-memory fake.
type WAL interface {
	AppendCommit(ctx context.Context, t *Transaction, commitTS uint64) error
}

// Config carries the subset of storage-relevant settings from
// pkg/config: whether edges carry properties, the default isolation
// level and storage mode, and the memory hard limit.
type Config struct {
	PropertiesOnEdges    bool
	DefaultIsolation     IsolationLevel
	DefaultMode          StorageMode
	MemoryHardLimitBytes int64
	GCPeriod             int64 // nanoseconds; not read by Engine (NewReclaimer takes its own period)
}

// Engine is the top-level record store: owns every vertex and
// edge, the id generators that hand out VertexID/EdgeID, the transaction
// manager, the index and constraint managers, and the memory tracker. One
// Engine corresponds to one open database.
type Engine struct {
	cfg Config

	mu       sync.RWMutex
	vertices map[VertexID]*Vertex
	edges    map[EdgeID]*Edge

	nextVertexID atomic.Uint64
	nextEdgeID   atomic.Uint64

	txManager   *TransactionManager
	indexes     *IndexManager
	constraints *ConstraintManager
	memory      *MemoryTracker
	mode        atomic.Uint32 // StorageMode

	wal WAL

	log    logr.Logger
	tracer trace.Tracer
	meter  metric.Meter
}

// NewEngine constructs an empty Engine. wal may be nil, in which case
// commits are not durably logged (used by in-memory tests).
func NewEngine(cfg Config, wal WAL, log logr.Logger, tracer trace.Tracer, meter metric.Meter) *Engine {
	e := &Engine{
		cfg:         cfg,
		vertices:    make(map[VertexID]*Vertex),
		edges:       make(map[EdgeID]*Edge),
		txManager:   newTransactionManager(log, tracer, meter),
		indexes:     newIndexManager(),
		constraints: newConstraintManager(),
		memory:      NewMemoryTracker(cfg.MemoryHardLimitBytes),
		wal:         wal,
		log:         log,
		tracer:      tracer,
		meter:       meter,
	}
	e.mode.Store(uint32(cfg.DefaultMode))
	return e
}

func (e *Engine) Mode() StorageMode    { return StorageMode(e.mode.Load()) }
func (e *Engine) SetMode(m StorageMode) { e.mode.Store(uint32(m)) }

func (e *Engine) Memory() *MemoryTracker      { return e.memory }
func (e *Engine) Indexes() *IndexManager      { return e.indexes }
func (e *Engine) Constraints() *ConstraintManager { return e.constraints }

// Begin starts a new transaction at the engine's default isolation level.
func (e *Engine) Begin() *Transaction {
	return e.txManager.Begin(e.cfg.DefaultIsolation, e)
}

// BeginWithIsolation starts a transaction at an explicit isolation level,
// used by callers that need READ COMMITTED semantics for a single long
// scan.
func (e *Engine) BeginWithIsolation(isolation IsolationLevel) *Transaction {
	return e.txManager.Begin(isolation, e)
}

func (e *Engine) Commit(ctx context.Context, t *Transaction) error {
	return e.txManager.Commit(ctx, t, e)
}

func (e *Engine) Abort(t *Transaction) { e.txManager.Abort(t) }

func (e *Engine) lookupVertex(id VertexID) (*Vertex, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vertices[id]
	return v, ok
}

func (e *Engine) lookupEdge(id EdgeID) (*Edge, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	edge, ok := e.edges[id]
	return edge, ok
}

// CreateVertex allocates a new vertex, visible immediately under View NEW
// of t and under no other transaction's view until t commits.
func (e *Engine) CreateVertex(t *Transaction) (*Vertex, error) {
	if err := t.checkMustAbort(); err != nil {
		return nil, err
	}
	if err := e.memory.Reserve(approxRecordSize(0, 0, 0)); err != nil {
		return nil, err
	}

	id := VertexID(e.nextVertexID.Add(1))
	v := newVertex(id)

	if e.Mode() == Transactional {
		if err := t.acquireVertexLock(v); err != nil {
			return nil, err
		}
		d := t.nextDelta(DeltaDeleteObject) // inverse of "create" is "delete"
		v.mu.Lock()
		linkVertex(v, d)
		v.mu.Unlock()
		t.track(d)
	}

	e.mu.Lock()
	e.vertices[id] = v
	e.mu.Unlock()
	return v, nil
}

// DeleteVertex marks v deleted under t's view. Returns ErrVertexHasEdges
// if v still has adjacency; callers that want cascading deletion use
// DetachDeleteVertex.
func (e *Engine) DeleteVertex(t *Transaction, v *Vertex) error {
	if err := t.checkMustAbort(); err != nil {
		return err
	}
	if e.Mode() == Transactional {
		if err := t.acquireVertexLock(v); err != nil {
			return err
		}
	}

	v.mu.Lock()
	if v.deleted {
		v.mu.Unlock()
		return ErrDeletedObject
	}
	if len(v.inEdges) > 0 || len(v.outEdges) > 0 {
		v.mu.Unlock()
		return ErrVertexHasEdges
	}
	v.deleted = true
	if e.Mode() == Transactional {
		d := t.nextDelta(DeltaRecreateObject)
		linkVertex(v, d)
		t.track(d)
	}
	v.mu.Unlock()
	return nil
}

// DetachDeleteVertex deletes v along with every incident edge, a
// convenience composing DeleteEdge and DeleteVertex atomically within t.
func (e *Engine) DetachDeleteVertex(t *Transaction, v *Vertex) error {
	v.mu.Lock()
	incident := make([]*Edge, 0, len(v.inEdges)+len(v.outEdges))
	for _, r := range v.inEdges {
		incident = append(incident, r.edge)
	}
	for _, r := range v.outEdges {
		incident = append(incident, r.edge)
	}
	v.mu.Unlock()

	for _, edge := range incident {
		if err := e.DeleteEdge(t, edge); err != nil && err != ErrDeletedObject {
			return err
		}
	}
	return e.forceDeleteVertex(t, v)
}

func (e *Engine) forceDeleteVertex(t *Transaction, v *Vertex) error {
	if e.Mode() == Transactional {
		if err := t.acquireVertexLock(v); err != nil {
			return err
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.deleted {
		return ErrDeletedObject
	}
	v.deleted = true
	if e.Mode() == Transactional {
		d := t.nextDelta(DeltaRecreateObject)
		linkVertex(v, d)
		t.track(d)
	}
	return nil
}

// CreateEdge allocates an edge between from and to, updating both
// vertices' adjacency lists.
func (e *Engine) CreateEdge(t *Transaction, from, to *Vertex, edgeType uint32) (*Edge, error) {
	if err := t.checkMustAbort(); err != nil {
		return nil, err
	}
	if err := e.memory.Reserve(approxRecordSize(0, 0, 0)); err != nil {
		return nil, err
	}

	id := EdgeID(e.nextEdgeID.Add(1))
	edge := newEdge(id, from, to, edgeType)

	if e.Mode() == Transactional {
		if err := t.acquireEdgeLock(edge); err != nil {
			return nil, err
		}
		if err := t.acquireVertexLock(from); err != nil {
			return nil, err
		}
		if from != to {
			if err := t.acquireVertexLock(to); err != nil {
				return nil, err
			}
		}
	}

	if e.Mode() == Transactional {
		edge.mu.Lock()
		d := t.nextDelta(DeltaDeleteObject)
		linkEdge(edge, d)
		edge.mu.Unlock()
		t.track(d)
	}

	from.mu.Lock()
	from.outEdges = appendEdgeRef(from.outEdges, edgeRef{edgeType: edgeType, other: to.id, edge: edge})
	if e.Mode() == Transactional {
		dOut := t.nextDelta(DeltaRemoveOutEdge)
		dOut.edge, dOut.edgeType, dOut.other = edge, edgeType, to.id
		linkVertex(from, dOut)
		t.track(dOut)
	}
	from.mu.Unlock()

	to.mu.Lock()
	to.inEdges = appendEdgeRef(to.inEdges, edgeRef{edgeType: edgeType, other: from.id, edge: edge})
	if e.Mode() == Transactional {
		dIn := t.nextDelta(DeltaRemoveInEdge)
		dIn.edge, dIn.edgeType, dIn.other = edge, edgeType, from.id
		linkVertex(to, dIn)
		t.track(dIn)
	}
	to.mu.Unlock()

	e.mu.Lock()
	e.edges[id] = edge
	e.mu.Unlock()
	return edge, nil
}

// DeleteEdge removes edge from both endpoints' adjacency and marks it
// deleted.
func (e *Engine) DeleteEdge(t *Transaction, edge *Edge) error {
	if err := t.checkMustAbort(); err != nil {
		return err
	}
	if e.Mode() == Transactional {
		if err := t.acquireEdgeLock(edge); err != nil {
			return err
		}
		if err := t.acquireVertexLock(edge.from); err != nil {
			return err
		}
		if edge.from != edge.to {
			if err := t.acquireVertexLock(edge.to); err != nil {
				return err
			}
		}
	}

	edge.mu.Lock()
	if edge.deleted {
		edge.mu.Unlock()
		return ErrDeletedObject
	}
	edge.deleted = true
	if e.Mode() == Transactional {
		d := t.nextDelta(DeltaRecreateObject)
		linkEdge(edge, d)
		t.track(d)
	}
	edge.mu.Unlock()

	edge.from.mu.Lock()
	edge.from.outEdges = removeEdgeRef(edge.from.outEdges, edge)
	if e.Mode() == Transactional {
		dOut := t.nextDelta(DeltaAddOutEdge)
		dOut.edge, dOut.edgeType, dOut.other = edge, edge.edgeType, edge.to.id
		linkVertex(edge.from, dOut)
		t.track(dOut)
	}
	edge.from.mu.Unlock()

	edge.to.mu.Lock()
	edge.to.inEdges = removeEdgeRef(edge.to.inEdges, edge)
	if e.Mode() == Transactional {
		dIn := t.nextDelta(DeltaAddInEdge)
		dIn.edge, dIn.edgeType, dIn.other = edge, edge.edgeType, edge.from.id
		linkVertex(edge.to, dIn)
		t.track(dIn)
	}
	edge.to.mu.Unlock()
	return nil
}

// SetVertexProperty sets prop to value on v, recording the previous value
// for undo: a DeltaSetProperty's payload is the value being overwritten,
// not the new one, since the new one is simply v's current state.
func (e *Engine) SetVertexProperty(t *Transaction, v *Vertex, prop uint32, value PropertyValue) error {
	if err := t.checkMustAbort(); err != nil {
		return err
	}
	if e.Mode() == Transactional {
		if err := t.acquireVertexLock(v); err != nil {
			return err
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.deleted {
		return ErrDeletedObject
	}
	newProps, old, _ := v.props.set(prop, value)
	v.props = newProps
	if e.Mode() == Transactional {
		d := t.nextDelta(DeltaSetProperty)
		d.prop, d.oldValue = prop, old
		linkVertex(v, d)
		t.track(d)
	}
	return nil
}

func (e *Engine) SetEdgeProperty(t *Transaction, edge *Edge, prop uint32, value PropertyValue) error {
	if !e.cfg.PropertiesOnEdges {
		return ErrPropertiesDisabled
	}
	if err := t.checkMustAbort(); err != nil {
		return err
	}
	if e.Mode() == Transactional {
		if err := t.acquireEdgeLock(edge); err != nil {
			return err
		}
	}
	edge.mu.Lock()
	defer edge.mu.Unlock()
	if edge.deleted {
		return ErrDeletedObject
	}
	newProps, old, _ := edge.props.set(prop, value)
	edge.props = newProps
	if e.Mode() == Transactional {
		d := t.nextDelta(DeltaSetProperty)
		d.prop, d.oldValue = prop, old
		linkEdge(edge, d)
		t.track(d)
	}
	return nil
}

func (e *Engine) AddLabel(t *Transaction, v *Vertex, label uint32) error {
	if err := t.checkMustAbort(); err != nil {
		return err
	}
	if e.Mode() == Transactional {
		if err := t.acquireVertexLock(v); err != nil {
			return err
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.deleted {
		return ErrDeletedObject
	}
	if hasLabel(v.labels, label) {
		return nil
	}
	v.labels = addLabel(v.labels, label)
	if e.Mode() == Transactional {
		d := t.nextDelta(DeltaRemoveLabel)
		d.label = label
		linkVertex(v, d)
		t.track(d)
	}
	return nil
}

func (e *Engine) RemoveLabel(t *Transaction, v *Vertex, label uint32) error {
	if err := t.checkMustAbort(); err != nil {
		return err
	}
	if e.Mode() == Transactional {
		if err := t.acquireVertexLock(v); err != nil {
			return err
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.deleted {
		return ErrDeletedObject
	}
	if !hasLabel(v.labels, label) {
		return nil
	}
	v.labels = removeLabel(v.labels, label)
	if e.Mode() == Transactional {
		d := t.nextDelta(DeltaAddLabel)
		d.label = label
		linkVertex(v, d)
		t.track(d)
	}
	return nil
}

// VertexCount and EdgeCount give a total-population estimate, not
// filtered by any view (a point-in-time read of the global maps' sizes).
func (e *Engine) VertexCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.vertices)
}

func (e *Engine) EdgeCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.edges)
}

// GetVertex and GetEdge resolve an id to its record, independent of any
// view (existence-under-view is checked separately by the accessors in
// visibility.go).
func (e *Engine) GetVertex(id VertexID) (*Vertex, error) {
	v, ok := e.lookupVertex(id)
	if !ok {
		return nil, ErrNonexistentObject
	}
	return v, nil
}

func (e *Engine) GetEdge(id EdgeID) (*Edge, error) {
	edge, ok := e.lookupEdge(id)
	if !ok {
		return nil, ErrNonexistentObject
	}
	return edge, nil
}

// AllVertices and AllEdges give the reclaimer and index-rebuild paths a
// stable snapshot of every record currently tracked by the engine.
func (e *Engine) AllVertices() []*Vertex {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Vertex, 0, len(e.vertices))
	for _, v := range e.vertices {
		out = append(out, v)
	}
	return out
}

func (e *Engine) AllEdges() []*Edge {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Edge, 0, len(e.edges))
	for _, edge := range e.edges {
		out = append(out, edge)
	}
	return out
}

// RebuildIndexes does a full scan, reindexing every live vertex and edge.
// Used after CreateLabelIndex/CreateEdgeTypeIndex on a populated store,
// and by durability's recovery path once the snapshot+WAL replay finishes.
func (e *Engine) RebuildIndexes() {
	for _, v := range e.AllVertices() {
		e.indexes.reindexVertex(v)
	}
	for _, edge := range e.AllEdges() {
		e.indexes.reindexEdge(edge)
	}
}

// OldestActiveStart delegates to the transaction manager; gc.go uses it.
func (e *Engine) OldestActiveStart() uint64 { return e.txManager.OldestActiveStart() }

// RestoreVertex and RestoreEdge reinsert a record exactly as a snapshot
// loader read it, with no delta chain and no write lock acquisition,
// since a freshly loading engine has no concurrent readers or writers
// to isolate from. Callers must restore vertices before the
// edges that reference them, and must not call these once the engine is
// open for ordinary transactions.
func (e *Engine) RestoreVertex(id VertexID, labels []uint32, props map[uint32]PropertyValue) *Vertex {
	v := newVertex(id)
	v.labels = append([]uint32(nil), labels...)
	ps := propertyStore{}
	for prop, val := range props {
		ps, _, _ = ps.set(prop, val)
	}
	v.props = ps

	e.mu.Lock()
	e.vertices[id] = v
	e.mu.Unlock()
	bumpCounter(&e.nextVertexID, uint64(id))
	return v
}

func (e *Engine) RestoreEdge(id EdgeID, fromID, toID VertexID, edgeType uint32, props map[uint32]PropertyValue) (*Edge, error) {
	from, ok := e.lookupVertex(fromID)
	if !ok {
		return nil, ErrNonexistentObject
	}
	to, ok := e.lookupVertex(toID)
	if !ok {
		return nil, ErrNonexistentObject
	}

	edge := newEdge(id, from, to, edgeType)
	ps := propertyStore{}
	for prop, val := range props {
		ps, _, _ = ps.set(prop, val)
	}
	edge.props = ps

	from.outEdges = appendEdgeRef(from.outEdges, edgeRef{edgeType: edgeType, other: toID, edge: edge})
	to.inEdges = appendEdgeRef(to.inEdges, edgeRef{edgeType: edgeType, other: fromID, edge: edge})

	e.mu.Lock()
	e.edges[id] = edge
	e.mu.Unlock()
	bumpCounter(&e.nextEdgeID, uint64(id))
	return edge, nil
}

// ApplyDeleteVertex, ApplyDeleteEdge, ApplySetVertexProperty,
// ApplySetEdgeProperty, ApplyAddLabel and ApplyRemoveLabel replay one
// WALOp (walop.go) against an already-restored record: no transaction,
// delta, or lock involved, since WAL replay runs before the engine is
// open for ordinary transactions, same as RestoreVertex/RestoreEdge.
func (e *Engine) ApplyDeleteVertex(id VertexID) error {
	v, ok := e.lookupVertex(id)
	if !ok {
		return ErrNonexistentObject
	}
	v.mu.Lock()
	v.deleted = true
	v.mu.Unlock()
	return nil
}

func (e *Engine) ApplyDeleteEdge(id EdgeID) error {
	edge, ok := e.lookupEdge(id)
	if !ok {
		return ErrNonexistentObject
	}
	edge.mu.Lock()
	edge.deleted = true
	edge.mu.Unlock()

	edge.from.mu.Lock()
	edge.from.outEdges = removeEdgeRef(edge.from.outEdges, edge)
	edge.from.mu.Unlock()

	edge.to.mu.Lock()
	edge.to.inEdges = removeEdgeRef(edge.to.inEdges, edge)
	edge.to.mu.Unlock()
	return nil
}

func (e *Engine) ApplySetVertexProperty(id VertexID, prop uint32, value PropertyValue) error {
	v, ok := e.lookupVertex(id)
	if !ok {
		return ErrNonexistentObject
	}
	v.mu.Lock()
	v.props, _, _ = v.props.set(prop, value)
	v.mu.Unlock()
	return nil
}

func (e *Engine) ApplySetEdgeProperty(id EdgeID, prop uint32, value PropertyValue) error {
	edge, ok := e.lookupEdge(id)
	if !ok {
		return ErrNonexistentObject
	}
	edge.mu.Lock()
	edge.props, _, _ = edge.props.set(prop, value)
	edge.mu.Unlock()
	return nil
}

func (e *Engine) ApplyAddLabel(id VertexID, label uint32) error {
	v, ok := e.lookupVertex(id)
	if !ok {
		return ErrNonexistentObject
	}
	v.mu.Lock()
	if !hasLabel(v.labels, label) {
		v.labels = addLabel(v.labels, label)
	}
	v.mu.Unlock()
	return nil
}

func (e *Engine) ApplyRemoveLabel(id VertexID, label uint32) error {
	v, ok := e.lookupVertex(id)
	if !ok {
		return ErrNonexistentObject
	}
	v.mu.Lock()
	v.labels = removeLabel(v.labels, label)
	v.mu.Unlock()
	return nil
}

func bumpCounter(counter *atomic.Uint64, seen uint64) {
	for {
		cur := counter.Load()
		if seen <= cur {
			return
		}
		if counter.CompareAndSwap(cur, seen) {
			return
		}
	}
}
