// Copyright 2020 Nathan Taylor (nbtaylor@gmail.com)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package lockmgr implements the collection lock manager of a native XML
// database: the subsystem that serializes concurrent access to the
// hierarchical collection namespace, a tree of named containers holding XML
// documents.
//
// Every read or write touching a collection or its documents traverses this
// package before touching storage. The manager enforces hierarchical lock
// coupling (crabbing): to lock a path it acquires latches root-to-leaf,
// releasing an ancestor only once its child is held, so a traversal never
// observes a half-updated ancestor and never deadlocks against another
// traversal descending the same tree (both walk root-to-leaf, so the
// partial order induced by path prefix is always respected).
//
// Latches are not allocated per path. They live in a fixed-size stripe pool
// (see StripePool): a path is mapped to one of N latches by a stable hash,
// so memory is bounded by N regardless of how many collections exist. Two
// unrelated paths may collide onto the same stripe; this costs parallelism,
// never correctness, because the manager's traversal order is derived from
// path ancestry, not latch identity.
//
// Callers acquire a ManagedLock, a scoped handle bundling the one or two
// latches a traversal ended up holding, and release it with a single
// deferred call:
//
//	lock, err := mgr.AcquireCollectionReadLock(ctx, "/db/books/fiction")
//	if err != nil {
//	    return err
//	}
//	defer lock.Release()
//
// Every attempt, acquisition, failure, and release is reported to the
// process-wide LockTable, which fans the events out asynchronously to
// registered listeners for diagnostics, deadlock analysis, and tests.
package lockmgr
