package ratelimit

import (
	"fmt"
	"time"
)

// Default limiter settings.
const (
	DefaultGlobalPerMinute = 300
	DefaultClientPerMinute = 30
	DefaultClientMemory    = time.Hour
	DefaultRefillInterval  = time.Second
	DefaultMaxClients      = 10000
)

// Config configures a Limiter.
type Config struct {
	// GlobalPerMinute is the capacity of the bucket shared by all clients.
	GlobalPerMinute int64

	// ClientPerMinute is the capacity of each per-client bucket.
	ClientPerMinute int64

	// ClientMemory is how long an idle client bucket is remembered.
	ClientMemory time.Duration

	// RefillInterval is the period of the background refill task.
	RefillInterval time.Duration

	// MaxClients bounds the number of remembered client buckets.
	// The least recently used bucket is dropped when the bound is hit.
	MaxClients int
}

func (c Config) withDefaults() Config {
	if c.GlobalPerMinute <= 0 {
		c.GlobalPerMinute = DefaultGlobalPerMinute
	}
	if c.ClientPerMinute <= 0 {
		c.ClientPerMinute = DefaultClientPerMinute
	}
	if c.ClientMemory <= 0 {
		c.ClientMemory = DefaultClientMemory
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = DefaultRefillInterval
	}
	if c.MaxClients <= 0 {
		c.MaxClients = DefaultMaxClients
	}
	return c
}

// Result is the outcome of an admission check.
type Result int

const (
	// Allowed means both the global and the client bucket had a token.
	Allowed Result = iota
	// GlobalLimitExceeded means the shared bucket was empty.
	GlobalLimitExceeded
	// ClientLimitExceeded means the client's own bucket was empty.
	ClientLimitExceeded
)

// String returns the metric/log label for the result.
func (r Result) String() string {
	switch r {
	case Allowed:
		return "allowed"
	case GlobalLimitExceeded:
		return "global_limit_exceeded"
	case ClientLimitExceeded:
		return "client_limit_exceeded"
	default:
		return "unknown"
	}
}

// Err converts a denial into an *AdmissionDeniedError. It returns nil for Allowed.
func (r Result) Err() error {
	switch r {
	case GlobalLimitExceeded:
		return &AdmissionDeniedError{Scope: ScopeGlobal}
	case ClientLimitExceeded:
		return &AdmissionDeniedError{Scope: ScopeClient}
	default:
		return nil
	}
}

// Scope names the bucket that rejected a request.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeClient Scope = "client"
)

// AdmissionDeniedError is returned to callers whose request was rejected
// before any upstream or rendering work started.
type AdmissionDeniedError struct {
	Scope Scope
}

// Error implements the error interface.
func (e *AdmissionDeniedError) Error() string {
	if e.Scope == ScopeGlobal {
		return "rate limit exceeded: service is receiving too many requests"
	}
	return fmt.Sprintf("rate limit exceeded for %s", e.Scope)
}

// Status is a read-only snapshot of limiter state for status endpoints.
type Status struct {
	GlobalRemaining int64 `json:"global_remaining"`
	GlobalCapacity  int64 `json:"global_capacity"`
	ActiveClients   int   `json:"active_clients"`
	ClientCapacity  int64 `json:"client_capacity"`
}
