package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// ============================================================================
// Limiter Tests
// ============================================================================

func TestLimiter_GlobalLimitCheckedFirst(t *testing.T) {
	limiter := NewLimiter(Config{GlobalPerMinute: 2, ClientPerMinute: 10}, WithClock(newManualClock().Now))

	want := []Result{Allowed, Allowed, GlobalLimitExceeded}
	for i, expected := range want {
		if got := limiter.Check("1.2.3.4"); got != expected {
			t.Errorf("check %d: expected %s, got %s", i+1, expected, got)
		}
	}
}

func TestLimiter_GlobalDenialDoesNotCreateClientBucket(t *testing.T) {
	limiter := NewLimiter(Config{GlobalPerMinute: 1, ClientPerMinute: 10}, WithClock(newManualClock().Now))

	if got := limiter.Check("a"); got != Allowed {
		t.Fatalf("Expected first check allowed, got %s", got)
	}
	if got := limiter.Check("b"); got != GlobalLimitExceeded {
		t.Fatalf("Expected global denial, got %s", got)
	}

	if status := limiter.Status(); status.ActiveClients != 1 {
		t.Errorf("Expected 1 active client, got %d", status.ActiveClients)
	}
}

func TestLimiter_PerClientIsolation(t *testing.T) {
	limiter := NewLimiter(Config{GlobalPerMinute: 100, ClientPerMinute: 1}, WithClock(newManualClock().Now))

	tests := []struct {
		client string
		want   Result
	}{
		{"client-a", Allowed},
		{"client-a", ClientLimitExceeded},
		{"client-b", Allowed},
		{"client-b", ClientLimitExceeded},
		{"client-a", ClientLimitExceeded},
	}

	for i, tt := range tests {
		if got := limiter.Check(tt.client); got != tt.want {
			t.Errorf("step %d (%s): expected %s, got %s", i, tt.client, tt.want, got)
		}
	}
}

func TestLimiter_ClientBucketRefills(t *testing.T) {
	clock := newManualClock()
	limiter := NewLimiter(Config{GlobalPerMinute: 100, ClientPerMinute: 1}, WithClock(clock.Now))

	limiter.Check("a")
	if got := limiter.Check("a"); got != ClientLimitExceeded {
		t.Fatalf("Expected client denial, got %s", got)
	}

	clock.Advance(time.Second)
	if got := limiter.Check("a"); got != Allowed {
		t.Errorf("Expected refill after one second, got %s", got)
	}
}

func TestLimiter_ClientExpiresAfterInactivity(t *testing.T) {
	limiter := NewLimiter(Config{
		GlobalPerMinute: 100,
		ClientPerMinute: 1,
		ClientMemory:    50 * time.Millisecond,
	}, WithClock(newManualClock().Now))

	limiter.Check("a")
	if got := limiter.Check("a"); got != ClientLimitExceeded {
		t.Fatalf("Expected client denial, got %s", got)
	}

	time.Sleep(120 * time.Millisecond)

	// The expired bucket is gone, a fresh full one replaces it.
	if got := limiter.Check("a"); got != Allowed {
		t.Errorf("Expected allowed after expiry, got %s", got)
	}
}

func TestLimiter_MaxClients(t *testing.T) {
	limiter := NewLimiter(Config{GlobalPerMinute: 100, MaxClients: 3}, WithClock(newManualClock().Now))

	for i := 0; i < 10; i++ {
		limiter.Check(fmt.Sprintf("client-%d", i))
	}

	if got := limiter.Status().ActiveClients; got != 3 {
		t.Errorf("Expected 3 active clients, got %d", got)
	}
}

func TestLimiter_Status(t *testing.T) {
	limiter := NewLimiter(Config{GlobalPerMinute: 10, ClientPerMinute: 5}, WithClock(newManualClock().Now))

	limiter.Check("a")
	limiter.Check("b")
	limiter.Check("a")

	status := limiter.Status()
	if status.GlobalRemaining != 7 {
		t.Errorf("Expected 7 global tokens remaining, got %d", status.GlobalRemaining)
	}
	if status.GlobalCapacity != 10 {
		t.Errorf("Expected global capacity 10, got %d", status.GlobalCapacity)
	}
	if status.ActiveClients != 2 {
		t.Errorf("Expected 2 active clients, got %d", status.ActiveClients)
	}
	if status.ClientCapacity != 5 {
		t.Errorf("Expected client capacity 5, got %d", status.ClientCapacity)
	}
}

func TestLimiter_Defaults(t *testing.T) {
	limiter := NewLimiter(Config{})
	cfg := limiter.Config()

	if cfg.GlobalPerMinute != DefaultGlobalPerMinute {
		t.Errorf("Expected global default %d, got %d", DefaultGlobalPerMinute, cfg.GlobalPerMinute)
	}
	if cfg.ClientPerMinute != DefaultClientPerMinute {
		t.Errorf("Expected client default %d, got %d", DefaultClientPerMinute, cfg.ClientPerMinute)
	}
	if cfg.ClientMemory != DefaultClientMemory {
		t.Errorf("Expected memory default %v, got %v", DefaultClientMemory, cfg.ClientMemory)
	}
	if cfg.RefillInterval != DefaultRefillInterval {
		t.Errorf("Expected refill default %v, got %v", DefaultRefillInterval, cfg.RefillInterval)
	}
	if cfg.MaxClients != DefaultMaxClients {
		t.Errorf("Expected max clients default %d, got %d", DefaultMaxClients, cfg.MaxClients)
	}
}

func TestLimiter_BackgroundRefill(t *testing.T) {
	clock := newManualClock()
	limiter := NewLimiter(Config{
		GlobalPerMinute: 60,
		RefillInterval:  5 * time.Millisecond,
	}, WithClock(clock.Now))

	for limiter.global.TryConsume() {
	}
	clock.Advance(3 * time.Second)

	limiter.Start(context.Background())
	defer limiter.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for limiter.Status().GlobalRemaining == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected background refill to add tokens")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := limiter.Status().GlobalRemaining; got != 3 {
		t.Errorf("Expected 3 tokens after 3 seconds, got %d", got)
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	limiter := NewLimiter(Config{RefillInterval: time.Millisecond})
	// The client map runs its own expiry goroutine for its whole life.
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	limiter.Start(context.Background())

	limiter.Stop()
	limiter.Stop()

	select {
	case <-limiter.done:
	default:
		t.Error("Expected refill goroutine to have exited")
	}
}

func TestLimiter_StopWithoutStart(t *testing.T) {
	limiter := NewLimiter(Config{})
	limiter.Stop()

	// Start after Stop must not launch a goroutine.
	limiter.Start(context.Background())
	if limiter.cancel != nil {
		t.Error("Expected Start after Stop to be a no-op")
	}
}

func TestLimiter_ContextCancellationStopsRefill(t *testing.T) {
	limiter := NewLimiter(Config{RefillInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	limiter.Start(ctx)
	cancel()

	select {
	case <-limiter.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected refill goroutine to exit on context cancellation")
	}
	limiter.Stop()
}

func TestLimiter_ConcurrentChecks(t *testing.T) {
	limiter := NewLimiter(Config{GlobalPerMinute: 1000, ClientPerMinute: 10}, WithClock(newManualClock().Now))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed = map[string]int{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(client string) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if limiter.Check(client) == Allowed {
					mu.Lock()
					allowed[client]++
					mu.Unlock()
				}
			}
		}(fmt.Sprintf("client-%d", i%4))
	}
	wg.Wait()

	// Racing first requests may each create a bucket, so a client can
	// be granted slightly more than its capacity, never unboundedly more.
	for client, n := range allowed {
		if n < 10 || n > 10*5 {
			t.Errorf("%s: unexpected allowed count %d", client, n)
		}
	}
}

func TestResult_Err(t *testing.T) {
	if Allowed.Err() != nil {
		t.Error("Expected nil error for Allowed")
	}

	tests := []struct {
		result Result
		scope  Scope
	}{
		{GlobalLimitExceeded, ScopeGlobal},
		{ClientLimitExceeded, ScopeClient},
	}
	for _, tt := range tests {
		t.Run(tt.result.String(), func(t *testing.T) {
			var denied *AdmissionDeniedError
			if !errors.As(tt.result.Err(), &denied) {
				t.Fatalf("Expected AdmissionDeniedError, got %T", tt.result.Err())
			}
			if denied.Scope != tt.scope {
				t.Errorf("Expected scope %s, got %s", tt.scope, denied.Scope)
			}
		})
	}
}
