package verifier

import (
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
)

// Cache capacity and staleness windows.
const (
	cacheCapacity     = 10000
	cacheMaxAge       = 30 * time.Minute
	cacheMaxHeightGap = 100
)

// verifyMode distinguishes cache entries produced under different skip
// flags, so a cheaper verification never masquerades as a full one.
type verifyMode byte

func modeOf(ctx VerificationContext) verifyMode {
	var m verifyMode
	if ctx.SkipSignatureVerification {
		m |= 1
	}
	if ctx.SkipWitnessVerification {
		m |= 2
	}
	return m
}

type cacheKey struct {
	hash transaction.Hash256
	mode verifyMode
}

type cacheEntry struct {
	outcome Outcome
	height  uint32
	storedAt time.Time
}

// cache is the bounded, LRU-evicted verification cache.
type cache struct {
	lru *lru.Cache
	now func() time.Time
}

func newCache() *cache {
	c, _ := lru.New(cacheCapacity)
	return &cache{lru: c, now: time.Now}
}

// lookup returns the cached outcome if present and not stale relative to
// currentHeight.
func (c *cache) lookup(key cacheKey, currentHeight uint32) (Outcome, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return Outcome{}, false
	}
	entry := v.(cacheEntry)
	if c.now().Sub(entry.storedAt) > cacheMaxAge {
		c.lru.Remove(key)
		return Outcome{}, false
	}
	if currentHeight > entry.height && currentHeight-entry.height > cacheMaxHeightGap {
		c.lru.Remove(key)
		return Outcome{}, false
	}
	return entry.outcome, true
}

func (c *cache) store(key cacheKey, outcome Outcome, height uint32) {
	if !outcome.Result.Cacheable() {
		return
	}
	c.lru.Add(key, cacheEntry{outcome: outcome, height: height, storedAt: c.now()})
}
