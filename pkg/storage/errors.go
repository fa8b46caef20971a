// Package storage implements the transactional, MVCC-versioned property
// graph store at the heart of NornicDB: vertex and edge records with
// reversible delta chains, snapshot-isolated transactions, secondary
// indexes guarded by a single RWMutex (not lock-free), and the constraint engine that validates them at
// commit time.
//
// The durability pipeline (WAL + snapshots) lives in the sibling
// pkg/durability package; this package only produces and consumes the
// in-memory state that durability persists.
package storage

import "errors"

// Closed set of storage-layer errors. Every error an operation in this
// package can return is one of these sentinels (or a *ConstraintViolationError
// wrapping one of the three constraint kinds below).
var (
	// ErrDeletedObject is returned when an operation targets a vertex or
	// edge that the caller's view already sees as deleted.
	ErrDeletedObject = errors.New("storage: object deleted")

	// ErrNonexistentObject is returned when an operation targets an id
	// that was never allocated by this store.
	ErrNonexistentObject = errors.New("storage: object does not exist")

	// ErrPropertiesDisabled is returned by property operations on an edge
	// when the store was configured with properties_on_edges=false.
	ErrPropertiesDisabled = errors.New("storage: properties disabled on edges")

	// ErrVertexHasEdges is returned by DeleteVertex when the vertex still
	// has live incident edges; use DetachDeleteVertex instead.
	ErrVertexHasEdges = errors.New("storage: vertex has incident edges")

	// ErrSerialization is returned when a transaction attempts to modify
	// an object already locked by a different, still-running transaction.
	// The transaction that receives this error must abort.
	ErrSerialization = errors.New("storage: serialization conflict")

	// ErrOutOfMemory is returned when the memory tracker's hard limit
	// would be exceeded by the attempted allocation. The transaction that
	// receives this error must abort.
	ErrOutOfMemory = errors.New("storage: out of memory")

	// ErrInvalidArgument names a malformed operation argument. No function
	// in this package returns it; PropertyPath.Empty's doc names it for
	// callers that reject empty paths.
	ErrInvalidArgument = errors.New("storage: invalid argument")

	// ErrOutOfRange names a value outside an operation's accepted range.
	// No function in this package returns it; ScanLabelProperty given a
	// lower bound above its upper bound returns an empty result instead.
	ErrOutOfRange = errors.New("storage: value out of range")

	// ErrLogicError marks an internal invariant violation: a bug, not a
	// caller mistake. Surfacing it rather than panicking keeps the
	// procedure bridge (pkg/procedure) able to translate it deterministically.
	ErrLogicError = errors.New("storage: internal logic error")

	// ErrIoError wraps failures durability reports back into the storage
	// layer (a failed WAL append during commit, for instance).
	ErrIoError = errors.New("storage: io error")

	// ErrRecoveryFailure is returned by the store's recovery entry point
	// when the snapshot + WAL pair cannot be reconstructed into a
	// consistent state.
	ErrRecoveryFailure = errors.New("storage: recovery failed")

	// ErrTransactionClosed is returned by any operation attempted against
	// a transaction that already committed or aborted.
	ErrTransactionClosed = errors.New("storage: transaction already closed")

	// ErrImmutableView names a mutation attempted through a read-only
	// view. No function in this package returns it (the Engine's write
	// methods take no View); pkg/procedure maps it to ErrorImmutableView.
	ErrImmutableView = errors.New("storage: view is immutable")
)

// ConstraintKind identifies which of the three constraint families a
// *ConstraintViolationError or *Constraint refers to.
type ConstraintKind int

const (
	ConstraintExistence ConstraintKind = iota
	ConstraintUnique
	ConstraintType
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintExistence:
		return "existence"
	case ConstraintUnique:
		return "unique"
	case ConstraintType:
		return "type"
	default:
		return "unknown"
	}
}

// ConstraintViolationError reports a commit-time constraint failure.
// Constraint checks run during commit validation; any violation
// forces the transaction to abort with this error.
type ConstraintViolationError struct {
	Kind       ConstraintKind
	Label      uint32
	Properties []uint32
	Message    string
}

func (e *ConstraintViolationError) Error() string {
	return "storage: " + e.Kind.String() + " constraint violation: " + e.Message
}

// Unwrap lets errors.Is(err, storage.ErrConstraintViolation) work without
// forcing callers to type-assert *ConstraintViolationError.
func (e *ConstraintViolationError) Unwrap() error { return ErrConstraintViolation }

// ErrConstraintViolation is the sentinel *ConstraintViolationError wraps,
// so callers that only care "was it a constraint failure" can use errors.Is.
var ErrConstraintViolation = errors.New("storage: constraint violation")
