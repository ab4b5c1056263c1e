package upstream

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	gocache "github.com/patrickmn/go-cache"
)

// Entry is the cached outcome for one repository key. It is exactly one of
// Valid, Retryable or Exhausted.
type Entry interface {
	isEntry()
}

// Valid holds repository metadata from a successful lookup.
type Valid struct {
	Repository *Repository
}

// Retryable holds a failure that the next independent request may retry.
// Remaining counts the retries left before the failure becomes Exhausted.
type Retryable struct {
	Err       error
	Remaining int
}

// Exhausted holds a failure returned to every caller without contacting
// GitHub until the entry expires or is replaced.
type Exhausted struct {
	Err error
}

func (Valid) isEntry()     {}
func (Retryable) isEntry() {}
func (Exhausted) isEntry() {}

// nextFailureEntry computes the entry that replaces prev after err.
//
// Terminal errors go straight to Exhausted. Otherwise a fresh failure starts
// with budget-1 retries left and each further failure spends one; the
// failure that spends the last retry stores Exhausted.
func nextFailureEntry(prev Entry, err error, budget int) Entry {
	if isTerminal(err) {
		return Exhausted{Err: err}
	}

	remaining := budget - 1
	if r, ok := prev.(Retryable); ok {
		remaining = r.Remaining - 1
	}
	if remaining <= 0 {
		return Exhausted{Err: err}
	}
	return Retryable{Err: err, Remaining: remaining}
}

const entryShards = 16

// entryStore is a sharded TTL map of Entry values. Reads never contend
// across shards; Update is atomic per shard.
type entryStore struct {
	shards [entryShards]entryShard
	ttl    time.Duration
}

type entryShard struct {
	mu    sync.Mutex
	items *gocache.Cache
}

func newEntryStore(ttl, cleanupInterval time.Duration) *entryStore {
	s := &entryStore{ttl: ttl}
	for i := range s.shards {
		s.shards[i].items = gocache.New(ttl, cleanupInterval)
	}
	return s
}

func (s *entryStore) shard(key string) *entryShard {
	return &s.shards[xxhash.Sum64String(key)%entryShards]
}

// Get returns the live entry for key.
func (s *entryStore) Get(key string) (Entry, bool) {
	v, ok := s.shard(key).items.Get(key)
	if !ok {
		return nil, false
	}
	return v.(Entry), true
}

// Set replaces the entry for key and restarts its TTL.
func (s *entryStore) Set(key string, entry Entry) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.items.Set(key, entry, gocache.DefaultExpiration)
}

// Update replaces the entry for key with fn(current). current is nil when
// no live entry exists.
func (s *entryStore) Update(key string, fn func(current Entry) Entry) Entry {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var current Entry
	if v, ok := sh.items.Get(key); ok {
		current = v.(Entry)
	}
	next := fn(current)
	sh.items.Set(key, next, gocache.DefaultExpiration)
	return next
}

// Delete removes key.
func (s *entryStore) Delete(key string) {
	s.shard(key).items.Delete(key)
}

// Len returns the number of stored entries, including expired entries the
// janitor has not yet removed.
func (s *entryStore) Len() int {
	n := 0
	for i := range s.shards {
		n += s.shards[i].items.ItemCount()
	}
	return n
}
