package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMemoryMaxCost is the memory tier's cost budget in weight units.
	DefaultMemoryMaxCost = 128 << 20

	// DefaultDiskMaxBytes is the disk tier's capacity.
	DefaultDiskMaxBytes = 1 << 30

	// DefaultGenerateTimeout bounds a single generate call.
	DefaultGenerateTimeout = 30 * time.Second
)

// Config configures a Cache.
type Config struct {
	// Dir is the disk tier directory. Required.
	Dir string

	// DiskMaxBytes bounds the total size of artifacts on disk.
	DiskMaxBytes int64

	// MemoryMaxCost is the ristretto cost budget, in Meaning weight units.
	MemoryMaxCost int64

	// NumCounters sizes ristretto's admission sketch. Zero derives it from
	// MemoryMaxCost.
	NumCounters int64

	// MaxAge expires entries this long after generation. Zero keeps entries
	// until they are evicted.
	MaxAge time.Duration

	// GenerateTimeout bounds each generate call.
	GenerateTimeout time.Duration

	// BusyTimeout and CheckpointInterval tune the SQLite index.
	BusyTimeout        time.Duration
	CheckpointInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.DiskMaxBytes == 0 {
		c.DiskMaxBytes = DefaultDiskMaxBytes
	}
	if c.MemoryMaxCost == 0 {
		c.MemoryMaxCost = DefaultMemoryMaxCost
	}
	if c.GenerateTimeout == 0 {
		c.GenerateTimeout = DefaultGenerateTimeout
	}
	return c
}

// Cache is a two-tier content cache. Lookups go to memory, then disk; a
// disk hit is promoted to memory. Misses are generated once per key no
// matter how many callers ask concurrently, and successful results are
// written through to both tiers.
type Cache struct {
	config   Config
	mem      *memoryStore
	disk     *diskStore
	group    singleflight.Group
	observer Observer
	tracer   trace.Tracer
	now      func() time.Time
}

// Option customizes a Cache.
type Option func(*Cache)

// WithObserver registers an Observer for cache events.
func WithObserver(o Observer) Option {
	return func(c *Cache) {
		c.observer = o
	}
}

// WithTracer sets the tracer used for cache spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Cache) {
		c.tracer = t
	}
}

// New opens both tiers. The disk tier is reconciled against its index
// before New returns. Any failure is an *InitError.
func New(ctx context.Context, config Config, opts ...Option) (*Cache, error) {
	config = config.withDefaults()

	c := &Cache{
		config:   config,
		observer: nopObserver{},
		tracer:   noop.NewTracerProvider().Tracer(""),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if config.Dir == "" {
		return nil, &InitError{Tier: TierDisk, Cause: fmt.Errorf("cache directory not configured")}
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, &InitError{Tier: TierDisk, Path: config.Dir, Cause: err}
	}

	disk, err := openDiskStore(diskConfig{
		Dir:                config.Dir,
		MaxBytes:           config.DiskMaxBytes,
		BusyTimeout:        config.BusyTimeout,
		CheckpointInterval: config.CheckpointInterval,
	})
	if err != nil {
		return nil, &InitError{Tier: TierDisk, Path: config.Dir, Cause: err}
	}
	if err := disk.Ping(ctx); err != nil {
		disk.Close()
		return nil, &InitError{Tier: TierDisk, Path: config.Dir, Cause: err}
	}

	dropped, removed, err := disk.reconcile(ctx)
	if err != nil {
		disk.Close()
		return nil, &InitError{Tier: TierDisk, Path: config.Dir, Cause: err}
	}
	if dropped > 0 || removed > 0 {
		slog.Info("reconciled disk cache",
			"dir", config.Dir,
			"dangling_rows", dropped,
			"orphan_files", removed,
		)
	}

	mem, err := newMemoryStore(config.MemoryMaxCost, config.NumCounters, config.MaxAge, func() {
		c.observer.ObserveEviction(TierMemory)
	})
	if err != nil {
		disk.Close()
		return nil, &InitError{Tier: TierMemory, Cause: err}
	}

	c.mem = mem
	c.disk = disk

	if bytes, entries, err := disk.Usage(ctx); err == nil {
		c.observer.ObserveDiskUsage(bytes, entries)
		slog.Info("content cache opened",
			"dir", config.Dir,
			"disk_entries", entries,
			"disk_bytes", bytes,
			"disk_max_bytes", config.DiskMaxBytes,
			"memory_max_cost", config.MemoryMaxCost,
		)
	}

	return c, nil
}

// GetOrCreate returns the artifact for meaning, calling generate on a miss.
//
// Concurrent callers for the same key share one generate call. A caller
// whose ctx ends stops waiting and gets ctx.Err(); the generation carries
// on for the others and still populates the cache. A generate failure is
// returned to every waiter as *GenerationFailedError and is not cached.
func (c *Cache) GetOrCreate(ctx context.Context, meaning Meaning, generate GenerateFunc) (*Entry, error) {
	key := Key(meaning)

	ctx, span := c.tracer.Start(ctx, "cache.get_or_create", trace.WithAttributes(
		attribute.String("cache.meaning", meaning.CacheKey()),
		attribute.Int64("cache.weight", meaning.Weight()),
	))
	defer span.End()

	if entry := c.lookup(ctx, key); entry != nil {
		span.SetAttributes(attribute.String("cache.tier", entry.Tier))
		return entry, nil
	}

	ch := c.group.DoChan(keyString(key), func() (any, error) {
		return c.generate(ctx, key, meaning, generate)
	})

	select {
	case <-ctx.Done():
		span.SetStatus(codes.Error, "caller cancelled")
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			return nil, res.Err
		}
		rec := res.Val.(*record)
		rec.accesses.Add(1)
		span.SetAttributes(
			attribute.String("cache.tier", TierGenerated),
			attribute.Bool("cache.shared", res.Shared),
		)
		return rec.snapshot(TierGenerated), nil
	}
}

// generate runs inside the single flight for key. Its context outlives the
// caller that started it.
func (c *Cache) generate(ctx context.Context, key uint64, meaning Meaning, generate GenerateFunc) (*record, error) {
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.GenerateTimeout)
	defer cancel()

	// A flight that finished between our lookup and DoChan already stored it.
	if r, ok := c.mem.cache.Get(key); ok {
		return r, nil
	}

	start := time.Now()
	data, err := generate(genCtx)
	latency := time.Since(start)
	if err != nil {
		c.observer.ObserveGeneration("error", latency)
		slog.Warn("content generation failed",
			"meaning", meaning.CacheKey(),
			"error", err,
			"latency_ms", latency.Milliseconds(),
		)
		return nil, &GenerationFailedError{Meaning: meaning.CacheKey(), Cause: err}
	}
	c.observer.ObserveGeneration("ok", latency)

	r := &record{
		data:      data,
		meaning:   meaning.CacheKey(),
		cost:      meaning.Weight(),
		createdAt: c.now(),
	}
	c.store(genCtx, key, r)
	return r, nil
}

// store writes r through to both tiers. A disk failure is logged; the
// artifact is still served from memory.
func (c *Cache) store(ctx context.Context, key uint64, r *record) {
	if !c.mem.Set(key, r) {
		slog.Debug("memory tier declined entry", "meaning", r.meaning, "cost", r.cost)
	}

	evicted, err := c.disk.Put(ctx, diskRow{
		key:         key,
		meaning:     r.meaning,
		cost:        r.cost,
		accessCount: r.accesses.Load(),
		createdAt:   r.createdAt,
	}, r.data)
	if err != nil {
		slog.Warn("failed to write disk cache entry", "meaning", r.meaning, "error", err)
		return
	}
	for range evicted {
		c.observer.ObserveEviction(TierDisk)
	}
	if evicted > 0 {
		if bytes, entries, err := c.disk.Usage(ctx); err == nil {
			c.observer.ObserveDiskUsage(bytes, entries)
		}
	}
}

// lookup checks memory, then disk. It returns nil on a miss in both.
func (c *Cache) lookup(ctx context.Context, key uint64) *Entry {
	if r, ok := c.mem.Get(key); ok {
		c.observer.ObserveLookup(TierMemory, true)
		return r.snapshot(TierMemory)
	}
	c.observer.ObserveLookup(TierMemory, false)

	row, data, err := c.disk.Get(ctx, key)
	if err != nil {
		slog.Warn("disk cache lookup failed", "key", keyString(key), "error", err)
	}
	if row == nil || c.expired(row.createdAt) {
		c.observer.ObserveLookup(TierDisk, false)
		return nil
	}
	c.observer.ObserveLookup(TierDisk, true)

	r := &record{
		data:      data,
		meaning:   row.meaning,
		cost:      row.cost,
		createdAt: row.createdAt,
	}
	r.accesses.Store(row.accessCount)
	c.mem.Set(key, r)
	return r.snapshot(TierDisk)
}

func (c *Cache) expired(createdAt time.Time) bool {
	return c.config.MaxAge > 0 && c.now().Sub(createdAt) >= c.config.MaxAge
}

// Invalidate removes the entry for meaning from both tiers.
func (c *Cache) Invalidate(ctx context.Context, meaning Meaning) error {
	key := Key(meaning)
	c.mem.Delete(key)
	return c.disk.Delete(ctx, key)
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	MemoryHitRatio float64 `json:"memory_hit_ratio"`
	DiskBytes      int64   `json:"disk_bytes"`
	DiskEntries    int     `json:"disk_entries"`
	DiskMaxBytes   int64   `json:"disk_max_bytes"`
}

// Stats returns current usage.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	bytes, entries, err := c.disk.Usage(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		MemoryHitRatio: c.mem.HitRatio(),
		DiskBytes:      bytes,
		DiskEntries:    entries,
		DiskMaxBytes:   c.config.DiskMaxBytes,
	}, nil
}

// MemoryHitRatio returns the memory tier's hit ratio since start.
func (c *Cache) MemoryHitRatio() float64 {
	return c.mem.HitRatio()
}

// Ping reports whether the disk tier is usable. It backs the readiness
// check.
func (c *Cache) Ping(ctx context.Context) error {
	return c.disk.Ping(ctx)
}

// Close releases both tiers.
func (c *Cache) Close() error {
	c.mem.Close()
	return c.disk.Close()
}
