// Package ratelimit implements the token bucket shared by the sender and
// poller (§4.7, §4.8's refill formula). No library in the retrieval pack
// reaches for a rate-limiting dependency for this (the one pack repo with an
// adaptive rate limiter, ariadne/engine, hand-rolls its own internal
// package rather than importing one), so this is a deliberate stdlib-only
// part.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a simple token bucket: tokens refill continuously at rate
// tokens/second up to burst, and Wait returns how long the caller must sleep
// until its token is available (it does not sleep itself).
type Bucket struct {
	mu         sync.Mutex
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

// New creates a bucket starting full (tokens = burst).
func New(rate, burst float64) *Bucket {
	return &Bucket{rate: rate, burst: burst, tokens: burst, lastRefill: time.Now(), now: time.Now}
}

// Wait reports how long the caller must sleep before a token is available,
// and immediately reserves that token (so concurrent callers each get a
// distinct, increasing wait rather than all waking for the same token).
func (b *Bucket) Wait() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now
	b.tokens = min(b.burst, b.tokens+elapsed*b.rate)

	b.tokens--
	if b.tokens >= 0 {
		return 0
	}

	if b.rate <= 0 {
		b.tokens = 0
		return 0
	}
	return time.Duration(-b.tokens / b.rate * float64(time.Second))
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
