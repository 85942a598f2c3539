package lockmgr

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Listener observes LockAction events fanned out by a LockTable. Accept is
// invoked on the table's single dispatcher goroutine, in the order events
// were enqueued; a slow or blocking Accept delays every other listener, so
// implementations that do real work should hand off to their own
// goroutine.
type Listener interface {
	Accept(action LockAction)
}

// RegistrationAware is an optional interface a Listener may also implement
// to be notified when its registration with the LockTable completes or
// ends. Both calls happen on the dispatcher goroutine, asynchronously with
// respect to Register/Deregister; callers observe completion by polling
// the returned *Registration's IsRegistered.
type RegistrationAware interface {
	Registered()
	Unregistered()
}

// Registration is the handle returned by LockTable.Register. Its
// IsRegistered method is safe to poll from any goroutine — this is the
// mechanism the spec's test suite uses to wait for the asynchronous
// registration callback to land.
type Registration struct {
	listener   Listener
	registered atomic.Bool
}

// IsRegistered reports whether this listener's Registered() callback has
// run (and Unregistered() has not since run).
func (r *Registration) IsRegistered() bool { return r.registered.Load() }

// LockTable is the process-wide ledger of lock attempts, acquisitions, and
// releases. It dispatches every event to registered listeners
// asynchronously, on a single dedicated goroutine, preserving per-listener
// delivery order. Listener registration and deregistration are likewise
// asynchronous with respect to the caller, completing on that same
// goroutine so they interleave correctly with in-flight event delivery.
type LockTable struct {
	queue      *eventRing
	doorbell   chan struct{}
	lifecycle  chan func()
	logger     *Logger
	dropped    atomic.Uint64
	groupID    atomic.Uint64

	mu        sync.Mutex
	listeners []*Registration

	stopOnce sync.Once
	stop     chan struct{}
	stopped  chan struct{}
}

var (
	instance     *LockTable
	instanceOnce sync.Once
)

// Instance returns the process-wide LockTable singleton, starting its
// dispatcher on first use.
func Instance() *LockTable {
	instanceOnce.Do(func() {
		instance = NewLockTable(DefaultConfig().EventDispatcherQueueCapacity, NewNopLogger())
	})
	return instance
}

// resetInstanceForTest is a test-only seam: it lets the test suite install
// a fresh singleton (with a small queue capacity, etc.) without leaking
// dispatcher goroutines across test cases.
func resetInstanceForTest(t *LockTable) {
	instance = t
}

// NewLockTable constructs an independent LockTable (not the singleton).
// Production collaborators should use Instance(); tests and cmd/lockprobe
// may want an isolated table.
func NewLockTable(queueCapacity int, logger *Logger) *LockTable {
	if logger == nil {
		logger = NewNopLogger()
	}
	t := &LockTable{
		queue:     newEventRing(queueCapacity),
		doorbell:  make(chan struct{}, 1),
		lifecycle: make(chan func(), 16),
		logger:    logger,
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go t.dispatchLoop()
	return t
}

// nextGroupID mints a new group id, used to correlate every event emitted
// by one top-level acquire_* call.
func (t *LockTable) nextGroupID() uint64 {
	return t.groupID.Add(1)
}

func (t *LockTable) emit(action LockAction) {
	if t.queue.Push(action) {
		t.dropped.Add(1)
	}
	t.ring()
}

// ring signals the dispatcher that new work may be available, without
// blocking if it's already been signaled and not yet drained.
func (t *LockTable) ring() {
	select {
	case t.doorbell <- struct{}{}:
	default:
	}
}

// Attempt records that a latch acquisition is about to be attempted.
func (t *LockTable) Attempt(path string, mode Mode, group uint64) {
	t.emit(newAction(Attempt, path, mode, group, ""))
}

// Acquired records that a latch acquisition succeeded.
func (t *LockTable) Acquired(path string, mode Mode, group uint64) {
	t.emit(newAction(Acquired, path, mode, group, ""))
}

// AcquireFailed records that a latch acquisition failed.
func (t *LockTable) AcquireFailed(path string, mode Mode, group uint64, reason string) {
	t.emit(newAction(Failed, path, mode, group, reason))
}

// Released records that a held latch was released.
func (t *LockTable) Released(path string, mode Mode, group uint64) {
	t.emit(newAction(Released, path, mode, group, ""))
}

// DroppedEvents returns the number of events dropped so far because the
// dispatch queue was full. Events are diagnostic, not correctness
// critical, so this is exposed only for monitoring.
func (t *LockTable) DroppedEvents() uint64 {
	return t.dropped.Load()
}

// Register adds listener to the table's registry and, asynchronously on
// the dispatcher goroutine, invokes its Registered callback (if it
// implements RegistrationAware). The returned Registration's IsRegistered
// becomes true once that callback has run; callers that need to know
// registration has taken effect before proceeding should poll it.
func (t *LockTable) Register(listener Listener) *Registration {
	reg := &Registration{listener: listener}

	t.mu.Lock()
	t.listeners = append(t.listeners, reg)
	t.mu.Unlock()

	t.lifecycle <- func() {
		if aware, ok := listener.(RegistrationAware); ok {
			aware.Registered()
		}
		reg.registered.Store(true)
	}
	t.ring()
	return reg
}

// Deregister removes listener from the registry and, asynchronously on the
// dispatcher goroutine, invokes its Unregistered callback.
func (t *LockTable) Deregister(reg *Registration) {
	t.mu.Lock()
	for i, r := range t.listeners {
		if r == reg {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			break
		}
	}
	t.mu.Unlock()

	t.lifecycle <- func() {
		if aware, ok := reg.listener.(RegistrationAware); ok {
			aware.Unregistered()
		}
		reg.registered.Store(false)
	}
	t.ring()
}

func (t *LockTable) dispatchLoop() {
	defer close(t.stopped)
	for {
		t.drainPending()

		select {
		case <-t.doorbell:
			t.drainPending()
		case <-t.stop:
			t.drainPending()
			return
		}
	}
}

// drainPending runs every queued lifecycle callback and delivers every
// queued event, both in enqueue order, until both are empty.
func (t *LockTable) drainPending() {
	for {
		didWork := false

		select {
		case fn := <-t.lifecycle:
			t.safeCall(fn)
			didWork = true
		default:
		}

		for _, action := range t.queue.DrainAll() {
			t.deliver(action)
			didWork = true
		}

		if !didWork {
			return
		}
	}
}

func (t *LockTable) deliver(action LockAction) {
	t.mu.Lock()
	listeners := make([]*Registration, len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, reg := range listeners {
		l := reg.listener
		t.safeCall(func() { l.Accept(action) })
	}
}

func (t *LockTable) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.warn("listener fault", zap.Any("panic", r))
		}
	}()
	fn()
}

// Shutdown stops the dispatcher goroutine after draining any events and
// lifecycle calls already queued, or until ctx is done, whichever is
// first.
func (t *LockTable) Shutdown(ctx context.Context) error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stop)
		select {
		case <-t.stopped:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}
