package storage

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// IsolationLevel selects how a transaction's reads are insulated from
// concurrent commits.
type IsolationLevel uint8

const (
	Snapshot IsolationLevel = iota
	ReadCommitted
	ReadUncommitted
)

// View selects whether a read sees the caller's own uncommitted writes.
// OLD ignores them (the record state as of the caller's snapshot); NEW
// includes them and is the only view under which a transaction may
// mutate.
type View uint8

const (
	OLD View = iota
	NEW
)

type lockedObject struct {
	vertex *Vertex
	edge   *Edge
}

// Transaction is an in-flight unit of work against an Engine. Zero
// value is never valid; obtain one via Engine.Begin.
type Transaction struct {
	id        uint64
	startTS   uint64
	commitTS  atomic.Uint64
	isolation IsolationLevel

	mu        sync.Mutex
	commandID uint32
	deltas    []*Delta
	locked    []lockedObject
	modified  map[VertexID]struct{}

	mustAbort atomic.Bool
	done      atomic.Bool

	engine *Engine
}

func (t *Transaction) ID() uint64             { return t.id }
func (t *Transaction) StartTimestamp() uint64 { return t.startTS }
func (t *Transaction) Isolation() IsolationLevel { return t.isolation }

// CommitTimestamp returns the timestamp assigned at commit, or 0 before
// the transaction commits.
func (t *Transaction) CommitTimestamp() uint64 { return t.commitTS.Load() }

// AdvanceCommand starts a new command within the transaction, so that
// subsequent writes order after everything visible to prior reads within
// the same transaction.
func (t *Transaction) AdvanceCommand() {
	t.mu.Lock()
	t.commandID++
	t.mu.Unlock()
}

// Shutdown sets the must-abort flag a session uses to cancel a
// long-running transaction; subsequent operations that check it return
// ErrSerialization via checkMustAbort.
func (t *Transaction) Shutdown() { t.mustAbort.Store(true) }

func (t *Transaction) checkMustAbort() error {
	if t.done.Load() {
		return ErrTransactionClosed
	}
	if t.mustAbort.Load() {
		return ErrSerialization
	}
	return nil
}

func (t *Transaction) nextDelta(kind DeltaKind) *Delta {
	return newDelta(kind, t.id, t.commandID)
}

func (t *Transaction) track(d *Delta) {
	t.mu.Lock()
	t.deltas = append(t.deltas, d)
	t.mu.Unlock()
}

func (t *Transaction) trackLockedVertex(v *Vertex) {
	t.mu.Lock()
	t.locked = append(t.locked, lockedObject{vertex: v})
	t.mu.Unlock()
}

func (t *Transaction) trackLockedEdge(e *Edge) {
	t.mu.Lock()
	t.locked = append(t.locked, lockedObject{edge: e})
	t.mu.Unlock()
}

// acquireVertexLock enforces that at most one uncommitted transaction
// may hold an exclusive write lock on a given object.
func (t *Transaction) acquireVertexLock(v *Vertex) error {
	if !v.lock.tryLock(t.id) {
		return ErrSerialization
	}
	t.trackLockedVertex(v)
	return nil
}

func (t *Transaction) acquireEdgeLock(e *Edge) error {
	if !e.lock.tryLock(t.id) {
		return ErrSerialization
	}
	t.trackLockedEdge(e)
	return nil
}

// TransactionManager hands out transaction ids and snapshot start
// timestamps from one atomic counter shared with commit-timestamp
// assignment, and tracks the active-transaction list the reclaimer
// and visibility algorithm both consult.
type TransactionManager struct {
	counter atomic.Uint64 // last-assigned id/timestamp; ids and commit timestamps share this space

	mu     sync.Mutex
	active []*Transaction // ordered by start timestamp

	log    logr.Logger
	tracer trace.Tracer
	meter  metric.Meter

	commitCounter  metric.Int64Counter
	abortCounter   metric.Int64Counter
	commitDuration metric.Float64Histogram
}

func newTransactionManager(log logr.Logger, tracer trace.Tracer, meter metric.Meter) *TransactionManager {
	tm := &TransactionManager{log: log, tracer: tracer, meter: meter}
	if meter != nil {
		tm.commitCounter, _ = meter.Int64Counter("nornicdb.storage.tx.commits")
		tm.abortCounter, _ = meter.Int64Counter("nornicdb.storage.tx.aborts")
		tm.commitDuration, _ = meter.Float64Histogram("nornicdb.storage.tx.commit_latency_ms")
	}
	return tm
}

// OldestActiveStart returns the minimum start timestamp among active
// transactions, or the current counter value if none are active. The
// reclaimer (gc.go) uses this to decide which deltas are safe to free.
func (m *TransactionManager) OldestActiveStart() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldest := m.counter.Load()
	for _, t := range m.active {
		if t.startTS < oldest {
			oldest = t.startTS
		}
	}
	return oldest
}

// Begin atomically assigns a transaction id and a snapshot start
// timestamp equal to the shared counter's previous value (the last id or
// commit timestamp handed out).
func (m *TransactionManager) Begin(isolation IsolationLevel, engine *Engine) *Transaction {
	id := m.counter.Add(1)
	t := &Transaction{
		id:        id,
		startTS:   id - 1,
		isolation: isolation,
		modified:  make(map[VertexID]struct{}),
		engine:    engine,
	}

	m.mu.Lock()
	m.active = append(m.active, t)
	m.mu.Unlock()
	return t
}

func (m *TransactionManager) removeActive(t *Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.active {
		if x == t {
			m.active = append(m.active[:i], m.active[i+1:]...)
			return
		}
	}
}

func (m *TransactionManager) releaseLocks(t *Transaction) {
	for _, lo := range t.locked {
		if lo.vertex != nil {
			lo.vertex.lock.release(t.id)
		}
		if lo.edge != nil {
			lo.edge.lock.release(t.id)
		}
	}
}

// Commit validates constraints, assigns a commit timestamp, durably logs
// the transaction, marks its deltas committed, propagates them into
// indexes, and removes it from the active list.
func (m *TransactionManager) Commit(ctx context.Context, t *Transaction, eng *Engine) error {
	if t.done.Load() {
		return ErrTransactionClosed
	}
	if err := t.checkMustAbort(); err != nil {
		m.Abort(t)
		return err
	}

	var span trace.Span
	if m.tracer != nil {
		ctx, span = m.tracer.Start(ctx, "storage.commit")
		defer span.End()
	}

	// Step 1: constraint validation against pending writes.
	if err := eng.constraints.ValidateTransaction(t); err != nil {
		m.Abort(t)
		if m.abortCounter != nil {
			m.abortCounter.Add(ctx, 1)
		}
		return err
	}
	// Commit is now guaranteed to succeed, so it's safe to release
	// whatever unique claims this transaction's deletes and property
	// changes made obsolete: a vertex deleted or edited before this point
	// that aborted would otherwise lose a claim it was entitled to keep.
	eng.constraints.releaseStaleClaims(t)

	// Step 2: claim a commit timestamp, append to WAL, mark deltas committed.
	commitTS := m.counter.Add(1)
	t.commitTS.Store(commitTS)

	if eng.wal != nil {
		if err := eng.wal.AppendCommit(ctx, t, commitTS); err != nil {
			m.Abort(t)
			return ErrIoError
		}
	}

	t.mu.Lock()
	for _, d := range t.deltas {
		d.MarkCommitted(commitTS)
	}
	t.mu.Unlock()

	// Step 3: propagate into indexes.
	eng.indexes.Propagate(t)

	// Step 4: remove from active list, release write locks.
	m.removeActive(t)
	m.releaseLocks(t)
	t.done.Store(true)

	if m.commitCounter != nil {
		m.commitCounter.Add(ctx, 1, metric.WithAttributes(attribute.Int64("isolation", int64(t.isolation))))
	}
	m.log.V(1).Info("committed transaction", "tx", t.id, "commitTS", commitTS, "deltas", len(t.deltas))
	return nil
}

// Abort walks t's deltas in reverse and applies each inverse to restore
// records, then removes t from the active list.
func (m *TransactionManager) Abort(t *Transaction) {
	if t.done.Load() {
		return
	}

	t.mu.Lock()
	deltas := t.deltas
	t.mu.Unlock()

	for i := len(deltas) - 1; i >= 0; i-- {
		undoDeltaInPlace(deltas[i])
	}

	m.removeActive(t)
	m.releaseLocks(t)
	t.done.Store(true)
	if m.abortCounter != nil {
		m.abortCounter.Add(context.Background(), 1)
	}
	m.log.V(1).Info("aborted transaction", "tx", t.id, "deltas", len(deltas))
}

// undoDeltaInPlace reverts a single delta's effect directly against the
// live record it was recorded on (used only by Abort, never by the
// read-time visibility walk, which reconstructs a throwaway snapshot
// instead of mutating the record).
func undoDeltaInPlace(d *Delta) {
	d.undo()
}
