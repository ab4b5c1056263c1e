package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Meaning is the set of semantic parameters that fully determines a
// generated artifact. Two meanings with the same CacheKey are the same entry.
type Meaning interface {
	// CacheKey returns a stable, deterministic serialization of the meaning.
	// It must not depend on map iteration order or process-local state.
	CacheKey() string

	// Weight returns the eviction cost of the entry. Higher weights are
	// evicted sooner. See ValueWeight.
	Weight() int64
}

// Key derives the 64-bit cache key of m. The hash is xxhash64 of
// m.CacheKey(), which is stable across processes and platforms.
func Key(m Meaning) uint64 {
	return xxhash.Sum64String(m.CacheKey())
}

// ValueWeight is the weighting used for repository cards: entries whose
// owner and repository names are short score lower and cost more, so they
// are evicted first.
//
//	cost = max(1, 10000 / (len(owner) + len(repo) + 1))
func ValueWeight(owner, repo string) int64 {
	score := len(owner) + len(repo)
	return max(1, int64(10000/(score+1)))
}

// GenerateFunc produces the artifact bytes for a cache miss. The context is
// detached from the cancellation of any single caller.
type GenerateFunc func(ctx context.Context) ([]byte, error)

// Entry is a cached artifact as returned to callers.
type Entry struct {
	// Data is the artifact. Callers must not modify it.
	Data []byte

	// Meaning is the CacheKey of the meaning that produced Data.
	Meaning string

	// AccessCount is the number of times the entry was served, including
	// the request that created it.
	AccessCount uint32

	// CreatedAt is when the artifact was generated.
	CreatedAt time.Time

	// Tier is where the entry was found: "memory", "disk" or "generated".
	Tier string
}

// record is the value held by the memory tier.
type record struct {
	data      []byte
	meaning   string
	cost      int64
	createdAt time.Time
	accesses  atomic.Uint32
}

func (r *record) snapshot(tier string) *Entry {
	return &Entry{
		Data:        r.data,
		Meaning:     r.meaning,
		AccessCount: r.accesses.Load(),
		CreatedAt:   r.createdAt,
		Tier:        tier,
	}
}

// GenerationFailedError is returned to every waiter when the generate
// function fails. Failures are never cached.
type GenerationFailedError struct {
	// Meaning is the CacheKey of the failed entry
	Meaning string

	// Cause is the error returned by the generate function
	Cause error
}

// Error implements the error interface.
func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation failed for %q: %v", e.Meaning, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *GenerationFailedError) Unwrap() error {
	return e.Cause
}

// InitError is returned by New when a tier cannot be initialized. The
// service must not start without its cache.
type InitError struct {
	// Tier is "memory" or "disk"
	Tier string

	// Path is the disk directory, if relevant
	Path string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *InitError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("cache init failed (%s tier at %s): %v", e.Tier, e.Path, e.Cause)
	}
	return fmt.Sprintf("cache init failed (%s tier): %v", e.Tier, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *InitError) Unwrap() error {
	return e.Cause
}

// Observer receives cache events. metrics.Collector implements it.
type Observer interface {
	// ObserveLookup records a hit or miss in tier ("memory" or "disk").
	ObserveLookup(tier string, hit bool)

	// ObserveGeneration records one generate call. outcome is "ok" or "error".
	ObserveGeneration(outcome string, latency time.Duration)

	// ObserveEviction records an entry evicted from tier.
	ObserveEviction(tier string)

	// ObserveDiskUsage records the disk tier's size after a change.
	ObserveDiskUsage(bytes int64, entries int)
}

type nopObserver struct{}

func (nopObserver) ObserveLookup(string, bool) {}
func (nopObserver) ObserveGeneration(string, time.Duration) {}
func (nopObserver) ObserveEviction(string) {}
func (nopObserver) ObserveDiskUsage(int64, int) {}
