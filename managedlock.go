package lockmgr

import "sync"

// acquisition is one latch/mode pair a ManagedLock took ownership of, in
// the order it was acquired.
type acquisition struct {
	latch *Latch
	path  string
	mode  Mode
}

// ManagedLock is a scoped ownership token for one or two acquired latches.
// It is returned by Manager.AcquireCollectionReadLock and
// AcquireCollectionWriteLock; callers must release it on every exit path
// (success, error, or panic), conventionally with a deferred call
// immediately after a successful acquisition:
//
//	lock, err := mgr.AcquireCollectionReadLock(ctx, path)
//	if err != nil {
//	    return err
//	}
//	defer lock.Release()
//
// Release is idempotent: a second call is a no-op that reports
// ErrUnbalancedRelease as a diagnostic event rather than panicking.
//
// A ManagedLock is not safe to share across goroutines: release must
// happen on the same goroutine that acquired it, because the underlying
// Latch's reentrancy bookkeeping is keyed by goroutine id.
type ManagedLock struct {
	table        *LockTable
	group        uint64
	acquisitions []acquisition
	released     sync.Once
	releasedOnce bool
}

func newManagedLock(table *LockTable, group uint64, acquisitions []acquisition) *ManagedLock {
	return &ManagedLock{table: table, group: group, acquisitions: acquisitions}
}

// Release releases every latch this handle owns, in reverse of acquisition
// order, emitting a Released event for each. Idempotent.
func (m *ManagedLock) Release() {
	m.released.Do(func() {
		for i := len(m.acquisitions) - 1; i >= 0; i-- {
			a := m.acquisitions[i]
			if a.mode == ModeWrite {
				a.latch.ReleaseWrite()
			} else {
				a.latch.ReleaseRead()
			}
			m.table.Released(a.path, a.mode, m.group)
		}
	})
	if !m.firstRelease() {
		m.table.emit(newAction(Released, "", ModeRead, m.group, ErrUnbalancedRelease.Error()))
	}
}

// firstRelease reports whether this call to Release() was the one that ran
// the release logic (vs. a subsequent no-op call).
func (m *ManagedLock) firstRelease() bool {
	// sync.Once doesn't expose whether Do ran on this call, so track it
	// explicitly.
	wasFirst := !m.releasedOnce
	m.releasedOnce = true
	return wasFirst
}

// Paths returns the canonical paths this handle holds latches for, in
// acquisition order. Diagnostic / test use.
func (m *ManagedLock) Paths() []string {
	out := make([]string, len(m.acquisitions))
	for i, a := range m.acquisitions {
		out[i] = a.path
	}
	return out
}
