package lockmgr

import (
	"go.uber.org/zap"
)

// Logger is the structured logger the lock manager uses for diagnostics
// that must never interrupt a caller. The LockTable logs recovered listener
// faults through it; dropped dispatch events are only counted (see
// DroppedEvents) and acquisition timeouts are not logged. Nil-safe: a nil
// *Logger discards everything, so callers that don't configure one pay no
// observability tax.
type Logger struct {
	zap *zap.Logger
}

// NewLogger wraps a zap.Logger for use by the lock manager.
func NewLogger(z *zap.Logger) *Logger {
	if z == nil {
		return nil
	}
	return &Logger{zap: z}
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func (l *Logger) warn(msg string, fields ...zap.Field) {
	if l == nil || l.zap == nil {
		return
	}
	l.zap.Warn(msg, fields...)
}

func (l *Logger) error(msg string, fields ...zap.Field) {
	if l == nil || l.zap == nil {
		return
	}
	l.zap.Error(msg, fields...)
}
