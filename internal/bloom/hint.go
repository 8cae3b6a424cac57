// Package bloom provides a probabilistic hint of which instances are
// already cached.
//
// The preload worker marks every instance it stores or verifies. A
// negative answer proves the worker never handled the instance, letting it
// project fresh arrivals without a remote existence check first; a
// positive answer may be a false positive, so the worker confirms it
// against the record store.
package bloom

import (
	"math"
	"sync"

	"github.com/spaolacci/murmur3"
)

// CachedHint is a bloom filter over instance identifiers.
type CachedHint struct {
	mu        sync.RWMutex
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// NewCachedHint sizes a filter for the expected number of cached
// instances and target false positive rate.
func NewCachedHint(expectedInstances int, targetFPR float64) *CachedHint {
	if expectedInstances <= 0 {
		expectedInstances = 100000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedInstances)
	ln2Sq := math.Ln2 * math.Ln2

	// m = -n * ln(p) / (ln(2)^2), k = (m/n) * ln(2)
	m := -n * math.Log(targetFPR) / ln2Sq
	numBits := int(math.Ceil(m))
	numHashes := int(math.Ceil((m / n) * math.Ln2))

	if numBits < 64 {
		numBits = 64
	}
	if numHashes < 1 {
		numHashes = 1
	}

	numWords := (numBits + 63) / 64
	return &CachedHint{
		bits:      make([]uint64, numWords),
		numBits:   uint64(numWords * 64),
		numHashes: uint64(numHashes),
	}
}

// MarkCached records that a record exists for the instance.
func (h *CachedHint) MarkCached(instanceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h1, h2 := hash128(instanceID)
	for i := uint64(0); i < h.numHashes; i++ {
		// Double hashing: h(i) = h1 + i*h2
		pos := (h1 + i*h2) % h.numBits
		h.bits[pos/64] |= 1 << (pos % 64)
	}
	h.count++
}

// MaybeCached reports whether a record might exist for the instance.
// False means the instance has definitely not been marked.
func (h *CachedHint) MaybeCached(instanceID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h1, h2 := hash128(instanceID)
	for i := uint64(0); i < h.numHashes; i++ {
		pos := (h1 + i*h2) % h.numBits
		if h.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// Count returns the number of instances marked so far.
func (h *CachedHint) Count() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// FalsePositiveRate estimates the current false positive rate from the
// fill ratio: (1 - e^(-k*n/m))^k.
func (h *CachedHint) FalsePositiveRate() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return 0
	}
	k := float64(h.numHashes)
	n := float64(h.count)
	m := float64(h.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}

func hash128(instanceID string) (uint64, uint64) {
	hash := murmur3.New128()
	hash.Write([]byte(instanceID))
	return hash.Sum128()
}
