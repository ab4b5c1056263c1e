package breaker

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// State is the circuit state.
type State int32

const (
	// Closed permits calls and tracks their outcomes.
	Closed State = iota
	// Open rejects calls until the backoff delay has elapsed.
	Open
	// HalfOpen admits a single probe call to test recovery.
	HalfOpen
)

// String returns a human-readable state label.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Default breaker settings.
const (
	DefaultSuccessRateThreshold = 0.8
	DefaultMinSamples           = 10
	DefaultWindow               = 30 * time.Second
	DefaultConsecutiveFailures  = 5
	DefaultMinBackoff           = 10 * time.Second
	DefaultMaxBackoff           = 60 * time.Second
	DefaultProbeTimeout         = 30 * time.Second
)

// Config configures a Breaker.
type Config struct {
	// SuccessRateThreshold trips the circuit when the success ratio inside
	// Window falls below it.
	SuccessRateThreshold float64

	// MinSamples is the number of outcomes Window must hold before the
	// success rate is evaluated.
	MinSamples int

	// Window is the trailing period for the success rate.
	Window time.Duration

	// ConsecutiveFailures trips the circuit after this many failures in a row.
	ConsecutiveFailures int

	// MinBackoff and MaxBackoff bound the time spent Open before a probe.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// ProbeTimeout frees the half-open probe slot when the probe never
	// reported an outcome.
	ProbeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SuccessRateThreshold <= 0 {
		c.SuccessRateThreshold = DefaultSuccessRateThreshold
	}
	if c.MinSamples <= 0 {
		c.MinSamples = DefaultMinSamples
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.ConsecutiveFailures <= 0 {
		c.ConsecutiveFailures = DefaultConsecutiveFailures
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = DefaultMinBackoff
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = max(DefaultMaxBackoff, c.MinBackoff)
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	return c
}

// Breaker is a three-state circuit breaker guarding calls to one dependency.
//
// # States
//
//   - Closed: every call is allowed; outcomes feed the failure policies.
//   - Open: calls fail fast until a jittered backoff delay elapses.
//   - HalfOpen: one probe call is admitted. Success closes the circuit,
//     failure reopens it with a longer backoff ceiling.
//
// # Failure Policies
//
// A success-rate policy and a consecutive-failures policy are evaluated
// after every failure; the circuit opens on whichever fires first.
//
// # Backoff
//
// Each trip draws the open delay uniformly from [MinBackoff, ceiling], where
// ceiling doubles on every consecutive trip up to MaxBackoff. Closing the
// circuit resets the ceiling.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Breaker struct {
	mu           sync.Mutex
	config       Config
	state        State
	policies     []Policy
	ceiling      *backoff.ExponentialBackOff
	openUntil    time.Time
	probeStarted time.Time

	clock    func() time.Time
	jitter   func(n int64) int64
	onChange func(from, to State)
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithClock sets the time source.
func WithClock(clock func() time.Time) Option {
	return func(b *Breaker) {
		b.clock = clock
	}
}

// WithJitter sets the source of randomness for backoff delays. fn must
// return a value in [0, n).
func WithJitter(fn func(n int64) int64) Option {
	return func(b *Breaker) {
		b.jitter = fn
	}
}

// WithStateChange registers a callback invoked after every transition.
// It runs outside the breaker's lock.
func WithStateChange(fn func(from, to State)) Option {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

// New creates a closed Breaker. Zero config fields take their defaults.
func New(config Config, opts ...Option) *Breaker {
	config = config.withDefaults()

	b := &Breaker{
		config: config,
		state:  Closed,
		policies: []Policy{
			NewSuccessRatePolicy(config.SuccessRateThreshold, config.MinSamples, config.Window),
			NewConsecutiveFailuresPolicy(config.ConsecutiveFailures),
		},
		ceiling: &backoff.ExponentialBackOff{
			// The first open window already spans [min, 2*min].
			InitialInterval:     min(2*config.MinBackoff, config.MaxBackoff),
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         config.MaxBackoff,
		},
		clock:  time.Now,
		jitter: rand.Int64N,
	}
	b.ceiling.Reset()

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AllowCall reports whether a call may proceed. An Open circuit whose delay
// has elapsed moves to HalfOpen and admits the caller as its probe.
func (b *Breaker) AllowCall() bool {
	b.mu.Lock()
	now := b.clock()

	var (
		allowed bool
		from    = b.state
	)
	switch b.state {
	case Closed:
		allowed = true
	case Open:
		if !now.Before(b.openUntil) {
			b.state = HalfOpen
			b.probeStarted = now
			allowed = true
		}
	case HalfOpen:
		if b.probeStarted.IsZero() || now.Sub(b.probeStarted) >= b.config.ProbeTimeout {
			b.probeStarted = now
			allowed = true
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return allowed
}

// OnSuccess records a successful call.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	from := b.state
	switch b.state {
	case Closed:
		now := b.clock()
		for _, p := range b.policies {
			p.Record(now, true)
		}
	case HalfOpen:
		b.closeLocked()
	case Open:
		// Late result of a call admitted before the trip.
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// OnFailure records a failed call that reflects on the dependency's health.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	now := b.clock()
	from := b.state
	switch b.state {
	case Closed:
		tripped := false
		for _, p := range b.policies {
			p.Record(now, false)
			if p.Tripped(now) {
				tripped = true
			}
		}
		if tripped {
			b.openLocked(now)
		}
	case HalfOpen:
		b.openLocked(now)
	case Open:
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// State returns the current state. An Open circuit whose delay has elapsed
// is reported as HalfOpen, matching what the next AllowCall will see.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && !b.clock().Before(b.openUntil) {
		return HalfOpen
	}
	return b.state
}

// OpenUntil returns when the current open period ends. It is the zero time
// unless the circuit is Open.
func (b *Breaker) OpenUntil() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return time.Time{}
	}
	return b.openUntil
}

func (b *Breaker) openLocked(now time.Time) {
	ceiling := b.ceiling.NextBackOff()
	delay := b.config.MinBackoff
	if span := ceiling - b.config.MinBackoff; span > 0 {
		delay += time.Duration(b.jitter(int64(span) + 1))
	}

	b.state = Open
	b.openUntil = now.Add(delay)
	b.probeStarted = time.Time{}
}

func (b *Breaker) closeLocked() {
	b.state = Closed
	b.openUntil = time.Time{}
	b.probeStarted = time.Time{}
	b.ceiling.Reset()
	for _, p := range b.policies {
		p.Reset()
	}
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onChange != nil {
		b.onChange(from, to)
	}
}
