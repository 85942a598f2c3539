package lockmgr

import "context"

// Manager orchestrates lock-coupling traversal of the collection path tree
// and is the top-level API collaborators (query evaluators, the storage
// layer, administrative tooling) use to acquire and release collection
// locks. It never allocates a latch per path: both the collection-path
// pool and the document-id pool used by LockDocuments/UnlockDocuments are
// fixed-size stripe pools sized at construction.
type Manager struct {
	pool    *StripePool
	docPool *StripePool
	table   *LockTable
	cfg     Config
	owns    bool
}

// NewManager constructs a Manager backed by the process-wide LockTable
// singleton (Instance()). cfg.ConcurrencyLevel and cfg.DocumentConcurrency
// must both be >= 1.
func NewManager(cfg Config) (*Manager, error) {
	return newManager(cfg, Instance(), false)
}

// NewIsolatedManager constructs a Manager backed by its own private
// LockTable rather than the process-wide singleton. Tests and
// cmd/lockprobe use this so each run gets a deterministic, independently
// shut-downable event stream instead of sharing global state.
func NewIsolatedManager(cfg Config) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = NewNopLogger()
	}
	table := NewLockTable(cfg.EventDispatcherQueueCapacity, logger)
	return newManager(cfg, table, true)
}

func newManager(cfg Config, table *LockTable, owns bool) (*Manager, error) {
	if cfg.EventDispatcherQueueCapacity <= 0 {
		cfg.EventDispatcherQueueCapacity = DefaultConfig().EventDispatcherQueueCapacity
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pool, err := NewStripePool(cfg.ConcurrencyLevel)
	if err != nil {
		return nil, err
	}
	docPool, err := NewStripePool(cfg.DocumentConcurrency)
	if err != nil {
		return nil, err
	}
	return &Manager{pool: pool, docPool: docPool, table: table, cfg: cfg, owns: owns}, nil
}

// Table returns the LockTable this manager reports events to.
func (m *Manager) Table() *LockTable { return m.table }

// Close shuts down this manager's LockTable dispatcher if the manager owns
// a private one (see NewIsolatedManager). It is a no-op for a Manager
// backed by the process-wide singleton.
func (m *Manager) Close(ctx context.Context) error {
	if !m.owns {
		return nil
	}
	return m.table.Shutdown(ctx)
}

// GetCollectionLatch is a raw accessor for diagnostics and tests: it
// returns the stripe latch a path maps to without acquiring it.
func (m *Manager) GetCollectionLatch(path string) (*Latch, error) {
	canon, err := Canonicalize(path)
	if err != nil {
		return nil, err
	}
	return m.pool.Get(canon), nil
}

// AcquireCollectionReadLock acquires a READ lock on path by coupling down
// its ancestor chain: each ancestor is briefly held in READ mode only long
// enough to acquire its child, then released, so the returned handle ends
// up owning a single latch — the one for path itself.
func (m *Manager) AcquireCollectionReadLock(ctx context.Context, path string) (*ManagedLock, error) {
	ancestors, err := Ancestors(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.withDeadline(ctx)
	defer cancel()

	group := m.table.nextGroupID()

	var held *Latch
	var heldPath string

	for i, p := range ancestors {
		latch := m.pool.Get(p)
		if err := m.acquire(ctx, group, latch, p, ModeRead); err != nil {
			if held != nil {
				m.release(group, held, heldPath, ModeRead)
			}
			return nil, err
		}
		if i > 0 {
			m.release(group, held, heldPath, ModeRead)
		}
		held, heldPath = latch, p
	}

	return newManagedLock(m.table, group, []acquisition{{latch: held, path: heldPath, mode: ModeRead}}), nil
}

// AcquireCollectionWriteLock acquires a WRITE lock on path. Ancestors
// strictly above the direct parent are always READ-coupled. The direct
// parent is acquired in WRITE and retained alongside the target when
// lockParent is true; otherwise it is READ-coupled like any other
// ancestor. path == "/db" is always acquired in WRITE regardless of
// lockParent, since the root has no parent to distinguish.
func (m *Manager) AcquireCollectionWriteLock(ctx context.Context, path string, lockParent bool) (*ManagedLock, error) {
	ancestors, err := Ancestors(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.withDeadline(ctx)
	defer cancel()

	group := m.table.nextGroupID()
	k := len(ancestors) - 1

	if k == 0 {
		latch := m.pool.Get(ancestors[0])
		if err := m.acquire(ctx, group, latch, ancestors[0], ModeWrite); err != nil {
			return nil, err
		}
		return newManagedLock(m.table, group, []acquisition{{latch: latch, path: ancestors[0], mode: ModeWrite}}), nil
	}

	var held *Latch
	var heldPath string
	var heldMode Mode
	var retained []acquisition

	for i := 0; i <= k-1; i++ {
		isParent := i == k-1
		mode := ModeRead
		if isParent && lockParent {
			mode = ModeWrite
		}

		latch := m.pool.Get(ancestors[i])
		if err := m.acquire(ctx, group, latch, ancestors[i], mode); err != nil {
			if held != nil {
				m.release(group, held, heldPath, heldMode)
			}
			return nil, err
		}
		if i > 0 {
			m.release(group, held, heldPath, heldMode)
		}
		if isParent && lockParent {
			retained = append(retained, acquisition{latch: latch, path: ancestors[i], mode: ModeWrite})
		}
		held, heldPath, heldMode = latch, ancestors[i], mode
	}

	target := m.pool.Get(ancestors[k])
	if err := m.acquire(ctx, group, target, ancestors[k], ModeWrite); err != nil {
		m.release(group, held, heldPath, heldMode)
		return nil, err
	}
	if !lockParent {
		m.release(group, held, heldPath, heldMode)
	}
	retained = append(retained, acquisition{latch: target, path: ancestors[k], mode: ModeWrite})

	return newManagedLock(m.table, group, retained), nil
}

func (m *Manager) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && m.cfg.LockTimeout > 0 {
		return context.WithTimeout(ctx, m.cfg.LockTimeout)
	}
	return ctx, func() {}
}

func (m *Manager) acquire(ctx context.Context, group uint64, latch *Latch, path string, mode Mode) error {
	m.table.Attempt(path, mode, group)

	var err error
	if mode == ModeWrite {
		err = latch.AcquireWrite(ctx)
	} else {
		err = latch.AcquireRead(ctx)
	}

	if err != nil {
		m.table.AcquireFailed(path, mode, group, err.Error())
		return &TimeoutError{Path: path, Mode: mode}
	}
	m.table.Acquired(path, mode, group)
	return nil
}

func (m *Manager) release(group uint64, latch *Latch, path string, mode Mode) {
	if mode == ModeWrite {
		latch.ReleaseWrite()
	} else {
		latch.ReleaseRead()
	}
	m.table.Released(path, mode, group)
}
