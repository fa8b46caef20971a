package storage

import "sync/atomic"

// objectLock is the atomic "locking transaction id" on a record: at most
// one uncommitted transaction may hold it at a time. A second writer attempting
// to acquire it while a different, still-running transaction holds it
// fails with ErrSerialization. The zero value means unlocked.
type objectLock struct {
	holder atomic.Uint64
}

// tryLock attempts to acquire the lock for txID. Succeeds immediately if
// unlocked or already held by txID (re-entrant within one transaction's
// own sequence of writes); fails if another transaction holds it.
func (l *objectLock) tryLock(txID uint64) bool {
	for {
		cur := l.holder.Load()
		if cur == txID {
			return true
		}
		if cur != 0 {
			return false
		}
		if l.holder.CompareAndSwap(0, txID) {
			return true
		}
	}
}

// release drops the lock if held by txID; a no-op otherwise (defensive
// against double-release from abort-after-partial-commit paths).
func (l *objectLock) release(txID uint64) {
	l.holder.CompareAndSwap(txID, 0)
}

func (l *objectLock) heldBy() uint64 { return l.holder.Load() }
