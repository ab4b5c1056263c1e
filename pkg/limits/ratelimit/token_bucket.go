package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock returns the current time. Tests substitute a manual clock.
type Clock func() time.Time

// TokenBucket implements the token bucket rate limiting algorithm.
//
// The bucket starts full and holds at most capacity tokens. Each admitted
// request consumes one token. Tokens come back in whole seconds at the
// refill rate, which is capacity/60 per second with a floor of one.
//
// # Algorithm
//
//  1. Refill: add elapsedWholeSeconds * rate tokens, capped at capacity
//  2. Read the current count; reject when it is zero
//  3. Compare-and-swap count -> count-1, retry on contention
//
// The refill timestamp only moves when tokens were added, so frequent
// sub-second calls cannot starve the bucket by resetting the clock.
//
// # Thread Safety
//
// The token count is an atomic integer. TryConsume never takes a lock on the
// decrement path; the mutex only guards lastRefill.
type TokenBucket struct {
	tokens   atomic.Int64
	capacity int64
	rate     int64 // tokens per second
	clock    Clock

	mu         sync.Mutex
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket holding capacity tokens.
//
// Example:
//
//	// 30 requests per minute, refilled at 1 token/sec
//	bucket := NewTokenBucket(30)
//
//	// 300 requests per minute, refilled at 5 tokens/sec
//	bucket := NewTokenBucket(300)
func NewTokenBucket(capacity int64) *TokenBucket {
	return newTokenBucket(capacity, time.Now)
}

func newTokenBucket(capacity int64, clock Clock) *TokenBucket {
	if capacity < 0 {
		capacity = 0
	}
	tb := &TokenBucket{
		capacity:   capacity,
		rate:       refillRate(capacity),
		clock:      clock,
		lastRefill: clock(),
	}
	tb.tokens.Store(capacity)
	return tb
}

// refillRate guarantees forward progress for tiny capacities.
func refillRate(capacity int64) int64 {
	return max(1, capacity/60)
}

// TryConsume takes one token if one is available and reports whether it did.
// It never blocks.
func (tb *TokenBucket) TryConsume() bool {
	// A concurrent refill already covers this instant.
	if tb.mu.TryLock() {
		tb.refillLocked()
		tb.mu.Unlock()
	}

	for {
		current := tb.tokens.Load()
		if current <= 0 {
			return false
		}
		if tb.tokens.CompareAndSwap(current, current-1) {
			return true
		}
	}
}

// Refill adds the tokens earned since the last refill.
func (tb *TokenBucket) Refill() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked()
}

// Remaining returns the number of tokens currently available.
// It does not trigger a refill.
func (tb *TokenBucket) Remaining() int64 {
	return tb.tokens.Load()
}

// Capacity returns the maximum bucket capacity.
func (tb *TokenBucket) Capacity() int64 {
	return tb.capacity
}

// Rate returns the number of tokens added per elapsed second.
func (tb *TokenBucket) Rate() int64 {
	return tb.rate
}

// refillLocked adds tokens based on whole seconds elapsed since lastRefill.
// Caller must hold mu.
func (tb *TokenBucket) refillLocked() {
	now := tb.clock()
	elapsed := int64(now.Sub(tb.lastRefill) / time.Second)
	if elapsed <= 0 {
		return
	}

	// Saturate before multiplying so long idle periods cannot overflow.
	toAdd := tb.capacity
	if elapsed < tb.capacity/tb.rate+1 {
		toAdd = min(elapsed*tb.rate, tb.capacity)
	}
	if toAdd <= 0 {
		return
	}

	for {
		current := tb.tokens.Load()
		next := min(current+toAdd, tb.capacity)
		if tb.tokens.CompareAndSwap(current, next) {
			break
		}
	}
	tb.lastRefill = now
}
