package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Limiter performs two-scope admission control.
//
// One global TokenBucket is shared by every request. Per-client buckets are
// created lazily on a client's first request and kept in an expiring LRU
// bounded by Config.MaxClients. Every access re-inserts the bucket, so a
// client is forgotten only after Config.ClientMemory of inactivity.
//
// A single background goroutine started by Start refills the global bucket
// and every live client bucket each Config.RefillInterval. Buckets also
// refill lazily on TryConsume, so the limiter is correct without Start.
type Limiter struct {
	config  Config
	clock   Clock
	global  *TokenBucket
	clients *expirable.LRU[string, *TokenBucket]

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock sets the time source used by every bucket the limiter creates.
func WithClock(clock Clock) Option {
	return func(l *Limiter) {
		l.clock = clock
	}
}

// NewLimiter creates a limiter. Zero config fields take their defaults.
//
// Example:
//
//	limiter := NewLimiter(Config{GlobalPerMinute: 300, ClientPerMinute: 30})
func NewLimiter(config Config, opts ...Option) *Limiter {
	config = config.withDefaults()

	l := &Limiter{
		config: config,
		clock:  time.Now,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.global = newTokenBucket(config.GlobalPerMinute, l.clock)
	l.clients = expirable.NewLRU[string, *TokenBucket](config.MaxClients, nil, config.ClientMemory)
	return l
}

// Check decides whether a request from clientKey may proceed.
//
// The global bucket is consulted first; when it is empty the result is
// GlobalLimitExceeded and the client bucket is neither created nor touched.
// Check never fails, it only reports one of the three results.
func (l *Limiter) Check(clientKey string) Result {
	if !l.global.TryConsume() {
		return GlobalLimitExceeded
	}

	bucket, ok := l.clients.Get(clientKey)
	if !ok {
		// Two first requests from the same client may both get here; the
		// bucket added last wins and the other is never consulted again.
		bucket = newTokenBucket(l.config.ClientPerMinute, l.clock)
	}
	// Re-adding refreshes the entry's expiry.
	l.clients.Add(clientKey, bucket)

	if !bucket.TryConsume() {
		return ClientLimitExceeded
	}
	return Allowed
}

// Start launches the background refill goroutine. It runs until ctx is
// cancelled or Stop is called. Calling Start more than once has no effect.
func (l *Limiter) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		ctx, l.cancel = context.WithCancel(ctx)
		go l.refillLoop(ctx)
	})
}

// Stop terminates the refill goroutine and waits for it to exit.
// It is safe to call Stop multiple times or without Start.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		started := true
		l.startOnce.Do(func() { started = false })
		if !started {
			close(l.done)
			return
		}
		l.cancel()
		<-l.done
	})
}

func (l *Limiter) refillLoop(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.config.RefillInterval)
	defer ticker.Stop()

	slog.Debug("rate limiter refill started",
		"interval", l.config.RefillInterval,
		"global_capacity", l.config.GlobalPerMinute,
		"client_capacity", l.config.ClientPerMinute,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("rate limiter refill stopped")
			return
		case <-ticker.C:
			l.refillAll()
		}
	}
}

// refillAll refills the global bucket and each client bucket still live in
// the LRU. Expired clients are simply absent from Values.
func (l *Limiter) refillAll() {
	l.global.Refill()
	for _, bucket := range l.clients.Values() {
		bucket.Refill()
	}
}

// Status returns a snapshot for health and status endpoints.
func (l *Limiter) Status() Status {
	return Status{
		GlobalRemaining: l.global.Remaining(),
		GlobalCapacity:  l.global.Capacity(),
		ActiveClients:   len(l.clients.Keys()),
		ClientCapacity:  l.config.ClientPerMinute,
	}
}

// Config returns the effective configuration after defaults.
func (l *Limiter) Config() Config {
	return l.config
}
