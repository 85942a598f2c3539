package lockmgr

import "time"

// Config tunes a Manager and its LockTable. Construct via DefaultConfig and
// the WithXxx options, or unmarshal one from YAML (struct tags below) the
// way cmd/lockprobe loads operator-facing overrides from a file.
type Config struct {
	// ConcurrencyLevel is the number of stripes in the collection-path
	// latch pool. Must be >= 1.
	ConcurrencyLevel uint32 `yaml:"concurrency_level"`

	// DocumentConcurrency is the number of stripes in the document-id
	// latch pool used by LockDocuments/UnlockDocuments. Must be >= 1.
	DocumentConcurrency uint32 `yaml:"document_concurrency"`

	// LockTimeout is the default per-acquisition deadline applied when a
	// caller's context carries none. Zero means infinite (no default
	// deadline).
	LockTimeout time.Duration `yaml:"lock_timeout_ms"`

	// EventDispatcherQueueCapacity bounds the LockTable's dispatch
	// queue. On overflow, the oldest queued event is dropped and
	// DroppedEvents is incremented; events are diagnostic, not
	// correctness-critical. Only NewIsolatedManager sizes its table from
	// this; NewManager uses the Instance() singleton, which has the default
	// capacity.
	EventDispatcherQueueCapacity int `yaml:"event_dispatcher_queue_capacity"`

	// Logger receives dispatcher/listener-fault diagnostics. Defaults to
	// a no-op logger. Like the queue capacity, it is used only by
	// NewIsolatedManager's private table.
	Logger *Logger `yaml:"-"`
}

// DefaultConfig returns the manager's documented defaults.
func DefaultConfig() Config {
	return Config{
		ConcurrencyLevel:             100,
		DocumentConcurrency:          100,
		LockTimeout:                  0,
		EventDispatcherQueueCapacity: 4096,
		Logger:                       NewNopLogger(),
	}
}

// Option mutates a Config. Options are applied in order over a starting
// Config (typically DefaultConfig()).
type Option func(*Config)

// WithConcurrencyLevel overrides the collection-path stripe count.
func WithConcurrencyLevel(n uint32) Option {
	return func(c *Config) { c.ConcurrencyLevel = n }
}

// WithDocumentConcurrency overrides the document-id stripe count.
func WithDocumentConcurrency(n uint32) Option {
	return func(c *Config) { c.DocumentConcurrency = n }
}

// WithLockTimeout overrides the default per-acquisition deadline.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Config) { c.LockTimeout = d }
}

// WithEventQueueCapacity overrides the dispatch queue bound.
func WithEventQueueCapacity(n int) Option {
	return func(c *Config) { c.EventDispatcherQueueCapacity = n }
}

// WithLogger overrides the diagnostics logger.
func WithLogger(l *Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Apply returns DefaultConfig() with every opt applied in order.
func Apply(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c Config) validate() error {
	if c.ConcurrencyLevel == 0 {
		return ErrConcurrencyLevel
	}
	if c.DocumentConcurrency == 0 {
		return ErrConcurrencyLevel
	}
	return nil
}
