package breaker

import (
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// noJitter always picks the lower bound of the backoff window.
func noJitter(int64) int64 { return 0 }

func newTestBreaker(clock *testClock, cfg Config, opts ...Option) *Breaker {
	opts = append([]Option{WithClock(clock.Now), WithJitter(noJitter)}, opts...)
	return New(cfg, opts...)
}

func TestBreaker_ConsecutiveFailuresTrip(t *testing.T) {
	clock := newTestClock()
	cb := newTestBreaker(clock, Config{MinSamples: 100})

	for i := 0; i < 4; i++ {
		cb.OnFailure()
		if cb.State() != Closed {
			t.Fatalf("Expected closed after %d failures, got %s", i+1, cb.State())
		}
	}

	cb.OnFailure()
	if cb.State() != Open {
		t.Fatalf("Expected open after 5 consecutive failures, got %s", cb.State())
	}
	if cb.AllowCall() {
		t.Error("Expected open breaker to reject calls")
	}
}

func TestBreaker_SuccessResetsConsecutiveCount(t *testing.T) {
	clock := newTestClock()
	cb := newTestBreaker(clock, Config{MinSamples: 100})

	for i := 0; i < 10; i++ {
		cb.OnFailure()
		cb.OnFailure()
		cb.OnFailure()
		cb.OnFailure()
		cb.OnSuccess()
	}

	if cb.State() != Closed {
		t.Errorf("Expected closed when failures never run 5 in a row, got %s", cb.State())
	}
}

func TestBreaker_SuccessRateTrip(t *testing.T) {
	clock := newTestClock()
	cb := newTestBreaker(clock, Config{
		SuccessRateThreshold: 0.8,
		MinSamples:           10,
		Window:               30 * time.Second,
		ConsecutiveFailures:  100,
	})

	// 7 successes, 2 failures: below min samples.
	for i := 0; i < 7; i++ {
		cb.OnSuccess()
	}
	cb.OnFailure()
	cb.OnFailure()
	if cb.State() != Closed {
		t.Fatalf("Expected closed below min samples, got %s", cb.State())
	}

	// 10th sample gives 70% success.
	cb.OnFailure()
	if cb.State() != Open {
		t.Fatalf("Expected open at 70%% success rate, got %s", cb.State())
	}
}

func TestBreaker_SuccessRateWindowExpires(t *testing.T) {
	clock := newTestClock()
	cb := newTestBreaker(clock, Config{
		MinSamples:          4,
		Window:              10 * time.Second,
		ConsecutiveFailures: 100,
	})

	cb.OnFailure()
	cb.OnFailure()
	cb.OnFailure()

	clock.Advance(11 * time.Second)

	// The old failures aged out; a single new failure is below min samples.
	cb.OnFailure()
	if cb.State() != Closed {
		t.Errorf("Expected closed after window expiry, got %s", cb.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	tests := []struct {
		name      string
		probeOK   bool
		wantState State
	}{
		{name: "probe success closes", probeOK: true, wantState: Closed},
		{name: "probe failure reopens", probeOK: false, wantState: Open},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newTestClock()
			cb := newTestBreaker(clock, Config{
				ConsecutiveFailures: 1,
				MinBackoff:          time.Second,
				MaxBackoff:          8 * time.Second,
			})

			cb.OnFailure()
			if cb.AllowCall() {
				t.Fatal("Expected rejection while open")
			}

			clock.Advance(time.Second)
			if cb.State() != HalfOpen {
				t.Fatalf("Expected half-open after delay, got %s", cb.State())
			}
			if !cb.AllowCall() {
				t.Fatal("Expected probe to be admitted")
			}
			if cb.AllowCall() {
				t.Fatal("Expected second call rejected while probe in flight")
			}

			if tt.probeOK {
				cb.OnSuccess()
			} else {
				cb.OnFailure()
			}

			if cb.State() != tt.wantState {
				t.Errorf("Expected %s, got %s", tt.wantState, cb.State())
			}
		})
	}
}

func TestBreaker_ProbeTimeoutFreesSlot(t *testing.T) {
	clock := newTestClock()
	cb := newTestBreaker(clock, Config{
		ConsecutiveFailures: 1,
		MinBackoff:          time.Second,
		ProbeTimeout:        5 * time.Second,
	})

	cb.OnFailure()
	clock.Advance(time.Second)
	if !cb.AllowCall() {
		t.Fatal("Expected probe admitted")
	}

	// The probe never reports back.
	clock.Advance(5 * time.Second)
	if !cb.AllowCall() {
		t.Error("Expected a new probe after the probe timeout")
	}
}

func TestBreaker_BackoffGrowsAndResets(t *testing.T) {
	clock := newTestClock()
	var maxJitter = func(n int64) int64 { return n - 1 }
	cb := New(Config{
		ConsecutiveFailures: 1,
		MinBackoff:          time.Second,
		MaxBackoff:          5 * time.Second,
	}, WithClock(clock.Now), WithJitter(maxJitter))

	wantDelays := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}

	cb.OnFailure()
	for i, want := range wantDelays {
		got := cb.OpenUntil().Sub(clock.Now())
		if got != want {
			t.Fatalf("trip %d: expected delay %v, got %v", i+1, want, got)
		}
		clock.Advance(got)
		if !cb.AllowCall() {
			t.Fatalf("trip %d: expected probe admitted", i+1)
		}
		if i < len(wantDelays)-1 {
			cb.OnFailure()
		}
	}

	cb.OnSuccess()
	cb.OnFailure()
	if got := cb.OpenUntil().Sub(clock.Now()); got != 2*time.Second {
		t.Errorf("Expected ceiling reset after close, got %v", got)
	}
}

func TestBreaker_DelayStaysWithinBounds(t *testing.T) {
	clock := newTestClock()
	cb := New(Config{
		ConsecutiveFailures: 1,
		MinBackoff:          time.Second,
		MaxBackoff:          4 * time.Second,
	}, WithClock(clock.Now))

	cb.OnFailure()
	for i := 0; i < 50; i++ {
		delay := cb.OpenUntil().Sub(clock.Now())
		if delay < time.Second || delay > 4*time.Second {
			t.Fatalf("trip %d: delay %v outside [1s, 4s]", i, delay)
		}
		clock.Advance(delay)
		cb.AllowCall()
		cb.OnFailure()
	}
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	clock := newTestClock()

	var transitions []string
	cb := newTestBreaker(clock, Config{ConsecutiveFailures: 1, MinBackoff: time.Second},
		WithStateChange(func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}))

	cb.OnFailure()
	clock.Advance(time.Second)
	cb.AllowCall()
	cb.OnSuccess()

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("Expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestBreaker_LateOutcomesWhileOpenIgnored(t *testing.T) {
	clock := newTestClock()
	cb := newTestBreaker(clock, Config{ConsecutiveFailures: 1, MinBackoff: time.Second})

	cb.OnFailure()
	until := cb.OpenUntil()

	cb.OnSuccess()
	cb.OnFailure()

	if cb.State() != Open {
		t.Errorf("Expected still open, got %s", cb.State())
	}
	if !cb.OpenUntil().Equal(until) {
		t.Error("Expected open period unchanged by late outcomes")
	}
}

func TestBreaker_ConcurrentUse(t *testing.T) {
	cb := New(Config{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if cb.AllowCall() {
					if (i+j)%3 == 0 {
						cb.OnFailure()
					} else {
						cb.OnSuccess()
					}
				}
				_ = cb.State()
			}
		}(i)
	}
	wg.Wait()
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		Closed:    "closed",
		Open:      "open",
		HalfOpen:  "half-open",
		State(42): "unknown",
	}
	for state, want := range tests {
		if state.String() != want {
			t.Errorf("Expected %q, got %q", want, state.String())
		}
	}
}
