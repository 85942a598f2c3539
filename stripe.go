package lockmgr

import (
	"encoding/binary"
	"hash/fnv"
)

// StripePool is a bounded array of latches. A path is mapped onto one of
// the N latches by a stable hash; the same path string always maps to the
// same latch for the pool's lifetime. Path collisions onto one stripe are
// permitted — they reduce parallelism between the colliding paths, never
// correctness, because the Manager's traversal order is derived from path
// ancestry, not latch identity.
//
// StripePool is not safe to resize, and resize is not supported: the
// mapping's stability for the process lifetime is part of its contract.
type StripePool struct {
	latches []*Latch
}

// NewStripePool constructs a pool of n latches. n must be >= 1.
func NewStripePool(n uint32) (*StripePool, error) {
	if n == 0 {
		return nil, ErrConcurrencyLevel
	}
	latches := make([]*Latch, n)
	for i := range latches {
		latches[i] = NewLatch()
	}
	return &StripePool{latches: latches}, nil
}

// Len returns the number of stripes in the pool.
func (p *StripePool) Len() int { return len(p.latches) }

// Get returns the latch path hashes onto.
func (p *StripePool) Get(path string) *Latch {
	return p.latches[p.index(path)]
}

// index computes the stripe index for path using FNV-1a, the same
// non-cryptographic string hash the standard library reaches for
// elsewhere (e.g. maphash's documented comparison point) and the one the
// reference sharded-lock-manager implementations in this module's lineage
// use for joining path segments into a shard key.
func (p *StripePool) index(path string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return h.Sum32() % uint32(len(p.latches))
}

// sameStripe reports whether two paths hash to the same latch in this
// pool. The Manager does not call it: colliding paths are handled by the
// Latch's per-goroutine reentrancy, not by a special case in the traversal.
func (p *StripePool) sameStripe(a, b string) bool {
	return p.index(a) == p.index(b)
}

// GetUint64 returns the latch a document id hashes onto. Used by the
// document-id pool, where keys are numeric rather than path strings.
func (p *StripePool) GetUint64(id uint64) *Latch {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	h := fnv.New32a()
	_, _ = h.Write(buf[:])
	return p.latches[h.Sum32()%uint32(len(p.latches))]
}
