// Package ratelimit provides admission control for inbound card requests.
//
// # Overview
//
// Two scopes of token buckets protect the service:
//
//   - Global: one bucket shared by every request the process serves
//   - Client: one bucket per client key (normally the client IP address)
//
// The global bucket is always consulted first. A request it rejects never
// creates or consumes a per-client bucket.
//
// # Token Bucket
//
// Buckets are created full and refilled in whole seconds at
// max(1, capacity/60) tokens per second, so a bucket sized for a minute of
// traffic recovers fully within that minute:
//
//	bucket := ratelimit.NewTokenBucket(30)
//	if bucket.TryConsume() {
//	    // Request allowed
//	}
//
// # Limiter
//
//	limiter := ratelimit.NewLimiter(ratelimit.Config{
//	    GlobalPerMinute: 300,
//	    ClientPerMinute: 30,
//	    ClientMemory:    time.Hour,
//	    RefillInterval:  time.Second,
//	})
//	limiter.Start(ctx)
//	defer limiter.Stop()
//
//	switch limiter.Check(clientIP) {
//	case ratelimit.Allowed:
//	case ratelimit.GlobalLimitExceeded, ratelimit.ClientLimitExceeded:
//	    // Reject with 429
//	}
//
// # Thread Safety
//
// Token consumption is a compare-and-swap loop and never takes a lock.
// Refill takes a per-bucket mutex that only guards the refill timestamp.
// Per-client buckets live in a bounded expiring LRU; entries idle for longer
// than Config.ClientMemory disappear and are rebuilt full on the next request.
package ratelimit
