package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Tier names reported in Entry.Tier and to the Observer.
const (
	TierMemory    = "memory"
	TierDisk      = "disk"
	TierGenerated = "generated"
)

// memoryStore is the in-process tier. Ristretto accounts each record at
// its Meaning weight, so the cost budget fills up faster with high-cost
// entries and admission pressure falls on them first.
type memoryStore struct {
	cache *ristretto.Cache[uint64, *record]
	ttl   time.Duration
}

func newMemoryStore(maxCost, numCounters int64, ttl time.Duration, onEvict func()) (*memoryStore, error) {
	if maxCost <= 0 {
		return nil, fmt.Errorf("memory cost budget must be positive")
	}
	if numCounters <= 0 {
		// ~10x the expected number of items at the smallest useful weight.
		numCounters = max(maxCost/100, 1000) * 10
	}

	c, err := ristretto.NewCache(&ristretto.Config[uint64, *record]{
		NumCounters:        numCounters,
		MaxCost:            maxCost,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
		OnEvict: func(*ristretto.Item[*record]) {
			onEvict()
		},
	})
	if err != nil {
		return nil, err
	}
	return &memoryStore{cache: c, ttl: ttl}, nil
}

// Get returns the record for key and counts the access.
func (m *memoryStore) Get(key uint64) (*record, bool) {
	r, ok := m.cache.Get(key)
	if !ok {
		return nil, false
	}
	r.accesses.Add(1)
	return r, true
}

// Set stores r and waits until it is visible to Get. Ristretto may still
// decline the record under admission pressure.
func (m *memoryStore) Set(key uint64, r *record) bool {
	var ok bool
	if m.ttl > 0 {
		remaining := m.ttl - time.Since(r.createdAt)
		if remaining <= 0 {
			return false
		}
		ok = m.cache.SetWithTTL(key, r, r.cost, remaining)
	} else {
		ok = m.cache.Set(key, r, r.cost)
	}
	m.cache.Wait()
	return ok
}

func (m *memoryStore) Delete(key uint64) {
	m.cache.Del(key)
}

// HitRatio returns the memory tier's hit ratio since start.
func (m *memoryStore) HitRatio() float64 {
	return m.cache.Metrics.Ratio()
}

func (m *memoryStore) Close() {
	m.cache.Close()
}
