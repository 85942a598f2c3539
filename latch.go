package lockmgr

import (
	"context"
	"sync"
)

// Mode is a lock mode a Latch may be held in.
type Mode uint8

const (
	// ModeRead grants shared access; any number of readers may hold a latch
	// concurrently.
	ModeRead Mode = iota
	// ModeWrite grants exclusive access.
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "WRITE"
	}
	return "READ"
}

// Latch is a reentrant multi-reader/single-writer primitive. It is the
// building block the stripe pool hands out; identity matters (two
// acquisitions of "the same Latch" are acquisitions of the same object),
// and a Latch is never destroyed for the lifetime of the Manager that owns
// its pool.
//
// Reentrancy: the same goroutine may acquire a Latch it already holds
// (read-on-read, or write-on-write) without blocking on itself. This is
// required by the lock manager's collision tie-break (spec §4.6): when an
// ancestor and descendant path hash to the same stripe, the traversal must
// not self-deadlock.
type Latch struct {
	mu   sync.Mutex
	cond *sync.Cond

	// readers counts read holders by goroutine id, so the same goroutine
	// can re-enter and so is_held_for_read_by can answer precisely.
	readers map[int64]int
	// writer is the goroutine id holding this latch exclusively, or 0.
	writer     int64
	writeDepth int
}

// NewLatch returns an unheld Latch.
func NewLatch() *Latch {
	l := &Latch{readers: make(map[int64]int)}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *Latch) compatibleWithReadLocked(gid int64) bool {
	return l.writer == 0 || l.writer == gid
}

func (l *Latch) compatibleWithWriteLocked(gid int64) bool {
	if l.writer != 0 {
		return l.writer == gid
	}
	if len(l.readers) == 0 {
		return true
	}
	// The only other compatible case is the calling goroutine being the
	// sole reader. This is not a caller-visible lock upgrade — callers
	// never ask to upgrade a held lock — it exists purely so that two
	// distinct logical path nodes that hash onto the same stripe (one
	// needing READ, the other WRITE) don't self-deadlock a single
	// traversal. Any other goroutine holding a read reference blocks a
	// write the normal way.
	if n, ok := l.readers[gid]; ok && n > 0 && len(l.readers) == 1 {
		return true
	}
	return false
}

// AcquireRead blocks until no other goroutine holds the latch for write,
// then registers the calling goroutine as a reader. If ctx is canceled or
// its deadline elapses before the latch becomes available, AcquireRead
// returns ErrLockTimeout.
func (l *Latch) AcquireRead(ctx context.Context) error {
	gid := currentGoroutineID()
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.waitLocked(ctx, func() bool { return l.compatibleWithReadLocked(gid) }); err != nil {
		return err
	}
	l.readers[gid]++
	return nil
}

// AcquireWrite blocks until the latch is unheld (or held exclusively by the
// calling goroutine already), then registers the calling goroutine as the
// writer. If ctx is canceled or its deadline elapses first, AcquireWrite
// returns ErrLockTimeout.
func (l *Latch) AcquireWrite(ctx context.Context) error {
	gid := currentGoroutineID()
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.waitLocked(ctx, func() bool { return l.compatibleWithWriteLocked(gid) }); err != nil {
		return err
	}
	l.writer = gid
	l.writeDepth++
	return nil
}

// ReleaseRead releases one read acquisition taken by the calling goroutine.
func (l *Latch) ReleaseRead() {
	gid := currentGoroutineID()
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.readers[gid]
	if n <= 1 {
		delete(l.readers, gid)
	} else {
		l.readers[gid] = n - 1
	}
	l.cond.Broadcast()
}

// ReleaseWrite releases one write acquisition taken by the calling
// goroutine.
func (l *Latch) ReleaseWrite() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writeDepth--
	if l.writeDepth <= 0 {
		l.writeDepth = 0
		l.writer = 0
	}
	l.cond.Broadcast()
}

// IsHeldForReadBy reports whether the given goroutine currently holds this
// latch for read. Used by the unlock path for document sets (spec §4.7),
// which must release only the acquisitions the calling thread still holds.
func (l *Latch) IsHeldForReadBy(gid int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readers[gid] > 0
}

// IsHeldForWriteBy reports whether the given goroutine currently holds this
// latch exclusively.
func (l *Latch) IsHeldForWriteBy(gid int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer == gid
}

// waitLocked blocks, with l.mu held, until cond() is true or ctx expires.
// It is spurious-wakeup safe: cond() is re-checked after every wake.
func (l *Latch) waitLocked(ctx context.Context, cond func() bool) error {
	if cond() {
		return nil
	}
	if ctx == nil || ctx.Done() == nil {
		for !cond() {
			l.cond.Wait()
		}
		return nil
	}

	done := ctx.Done()
	stopWatcher := make(chan struct{})
	defer close(stopWatcher)
	go func() {
		select {
		case <-done:
			// Wake every waiter so the one racing against this
			// context can re-check and observe expiry.
			l.mu.Lock()
			l.cond.Broadcast()
			l.mu.Unlock()
		case <-stopWatcher:
		}
	}()

	for !cond() {
		select {
		case <-done:
			return ErrLockTimeout
		default:
		}
		l.cond.Wait()
	}
	return nil
}
