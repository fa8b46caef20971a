package storage

// StorageMode selects between the fully transactional MVCC engine and a
// bulk-load mode that skips delta-chain bookkeeping entirely. Most
// deployments run Transactional; Analytical trades isolation and undo for
// throughput during large one-shot imports.
type StorageMode uint8

const (
	// Transactional is the default: every write records a Delta, readers
	// get snapshot isolation, and Commit/Abort behave as documented
	// throughout this package.
	Transactional StorageMode = iota

	// Analytical skips delta-chain construction and write-lock
	// acquisition: writes apply directly to the record's current fields,
	// visible to every reader immediately, and Abort cannot undo them.
	// Commit's constraint validation and index propagation visit only the
	// records a transaction locked, and Analytical writes lock nothing, so
	// these writes are not checked against constraints and are not added
	// to indexes until RebuildIndexes runs. Intended for bulk loads performed
	// with no concurrent readers, never for steady-state serving traffic.
	Analytical
)

func (m StorageMode) String() string {
	if m == Analytical {
		return "ANALYTICAL"
	}
	return "TRANSACTIONAL"
}
