package lockmgr

import (
	"bytes"
	"runtime"
	"strconv"
)

// currentGoroutineID recovers the calling goroutine's numeric id.
//
// Go deliberately does not expose this as public API, and no library in
// this module's dependency set ships a working extractor for it (see
// DESIGN.md). The standard-library-only fallback used across the Go
// ecosystem for exactly this purpose — debug middleware, goroutine-local
// diagnostics — is to parse the "goroutine N [...]" header that
// runtime.Stack always writes first. LockAction thread ids use it for
// event-stream correlation and deadlock analysis, and the Latch keys its
// holder bookkeeping (reentrancy, the sole-reader write check) on it, so
// latch correctness relies on it being distinct among live goroutines; it
// never needs to be unique beyond one goroutine's lifetime.
func currentGoroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]

	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}

	id, err := strconv.ParseInt(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
