package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testMeaning struct {
	key    string
	weight int64
}

func (m testMeaning) CacheKey() string { return m.key }
func (m testMeaning) Weight() int64    { return m.weight }

func newTestCache(t *testing.T, config Config) *Cache {
	t.Helper()
	if config.Dir == "" {
		config.Dir = t.TempDir()
	}
	c, err := New(context.Background(), config)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func counting(data []byte, calls *atomic.Int32) GenerateFunc {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return data, nil
	}
}

func TestKey_StableAndDistinct(t *testing.T) {
	a := testMeaning{key: "octocat:hello-world/default:v1"}
	b := testMeaning{key: "octocat:hello-world/dark:v1"}

	if Key(a) != Key(a) {
		t.Error("Key() not deterministic")
	}
	if Key(a) == Key(b) {
		t.Error("different meanings produced the same key")
	}
	if Key(a) != xxhash.Sum64String(a.key) {
		t.Error("Key() is not the xxhash64 of CacheKey()")
	}
}

func TestValueWeight(t *testing.T) {
	tests := []struct {
		owner, repo string
		want        int64
	}{
		{"", "", 10000},
		{"a", "b", 3333},
		{"octocat", "hello-world", 526},
		{string(make([]byte, 6000)), string(make([]byte, 6000)), 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d+%d", len(tt.owner), len(tt.repo)), func(t *testing.T) {
			if got := ValueWeight(tt.owner, tt.repo); got != tt.want {
				t.Errorf("ValueWeight() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetOrCreate_MissThenHit(t *testing.T) {
	c := newTestCache(t, Config{})
	m := testMeaning{key: "a:b/default:v1", weight: 10}
	var calls atomic.Int32

	first, err := c.GetOrCreate(context.Background(), m, counting([]byte("<svg/>"), &calls))
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if first.Tier != TierGenerated {
		t.Errorf("first Tier = %q, want %q", first.Tier, TierGenerated)
	}

	second, err := c.GetOrCreate(context.Background(), m, counting([]byte("other"), &calls))
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if second.Tier != TierMemory {
		t.Errorf("second Tier = %q, want %q", second.Tier, TierMemory)
	}
	if !bytes.Equal(second.Data, []byte("<svg/>")) {
		t.Errorf("Data = %q, want cached artifact", second.Data)
	}
	if second.Meaning != m.key {
		t.Errorf("Meaning = %q, want %q", second.Meaning, m.key)
	}
	if second.AccessCount != 2 {
		t.Errorf("AccessCount = %d, want 2", second.AccessCount)
	}
	if calls.Load() != 1 {
		t.Errorf("generate called %d times, want 1", calls.Load())
	}
}

func TestGetOrCreate_SingleFlight(t *testing.T) {
	c := newTestCache(t, Config{})
	m := testMeaning{key: "busy:repo/default:v1", weight: 1}

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	generate := func(context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return []byte("card"), nil
	}

	const callers = 50
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := c.GetOrCreate(context.Background(), m, generate)
			if err == nil && string(entry.Data) != "card" {
				err = fmt.Errorf("unexpected data %q", entry.Data)
			}
			errs <- err
		}()
	}

	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("GetOrCreate() error = %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("generate called %d times, want 1", calls.Load())
	}
}

func TestGetOrCreate_CancelledCallerDoesNotAbortGeneration(t *testing.T) {
	c := newTestCache(t, Config{})
	m := testMeaning{key: "slow:repo/default:v1", weight: 1}

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	generate := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
			return []byte("done"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetOrCreate(ctx, m, generate)
		errCh <- err
	}()

	<-started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller error = %v, want context.Canceled", err)
	}
	close(release)

	entry, err := c.GetOrCreate(context.Background(), m, func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("regenerated"), nil
	})
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if string(entry.Data) != "done" {
		t.Errorf("Data = %q, want the detached generation's result", entry.Data)
	}
	if calls.Load() != 1 {
		t.Errorf("generate called %d times, want 1", calls.Load())
	}
}

func TestGetOrCreate_FailureNotCached(t *testing.T) {
	c := newTestCache(t, Config{})
	m := testMeaning{key: "broken:repo/default:v1", weight: 1}
	boom := errors.New("render failed")

	var calls atomic.Int32
	_, err := c.GetOrCreate(context.Background(), m, func(context.Context) ([]byte, error) {
		calls.Add(1)
		return nil, boom
	})

	var genErr *GenerationFailedError
	if !errors.As(err, &genErr) {
		t.Fatalf("error = %v, want *GenerationFailedError", err)
	}
	if !errors.Is(err, boom) {
		t.Error("GenerationFailedError does not unwrap to the cause")
	}
	if genErr.Meaning != m.key {
		t.Errorf("Meaning = %q, want %q", genErr.Meaning, m.key)
	}

	entry, err := c.GetOrCreate(context.Background(), m, counting([]byte("ok"), &calls))
	if err != nil {
		t.Fatalf("GetOrCreate() after failure error = %v", err)
	}
	if entry.Tier != TierGenerated {
		t.Errorf("Tier = %q, want regeneration", entry.Tier)
	}
	if calls.Load() != 2 {
		t.Errorf("generate called %d times, want 2", calls.Load())
	}
}

func TestCache_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	m := testMeaning{key: "durable:repo/default:v1", weight: 42}
	var calls atomic.Int32

	first, err := New(context.Background(), Config{Dir: dir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := first.GetOrCreate(context.Background(), m, counting([]byte("persisted"), &calls)); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second := newTestCache(t, Config{Dir: dir})
	entry, err := second.GetOrCreate(context.Background(), m, counting([]byte("fresh"), &calls))
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if entry.Tier != TierDisk {
		t.Errorf("Tier = %q, want %q", entry.Tier, TierDisk)
	}
	if string(entry.Data) != "persisted" {
		t.Errorf("Data = %q, want %q", entry.Data, "persisted")
	}

	promoted, err := second.GetOrCreate(context.Background(), m, counting([]byte("fresh"), &calls))
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if promoted.Tier != TierMemory {
		t.Errorf("Tier after promotion = %q, want %q", promoted.Tier, TierMemory)
	}
	if calls.Load() != 1 {
		t.Errorf("generate called %d times, want 1", calls.Load())
	}
}

func TestCache_ReconcilesOnOpen(t *testing.T) {
	dir := t.TempDir()
	m := testMeaning{key: "lost:repo/default:v1", weight: 1}
	var calls atomic.Int32

	first, err := New(context.Background(), Config{Dir: dir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := first.GetOrCreate(context.Background(), m, counting([]byte("v1"), &calls)); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	first.Close()

	// Drop the artifact behind the index's back and leave an orphan file.
	if err := os.Remove(first.disk.path(Key(m))); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}
	orphan := filepath.Join(dir, "data", "ff", "ffffffffffffffff.bin")
	if err := os.MkdirAll(filepath.Dir(orphan), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(orphan, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}

	second := newTestCache(t, Config{Dir: dir})

	if _, err := os.Stat(orphan); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("orphan file still present: %v", err)
	}
	_, entries, err := second.disk.Usage(context.Background())
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if entries != 0 {
		t.Errorf("entries = %d, want dangling row dropped", entries)
	}

	entry, err := second.GetOrCreate(context.Background(), m, counting([]byte("v2"), &calls))
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if string(entry.Data) != "v2" {
		t.Errorf("Data = %q, want regenerated artifact", entry.Data)
	}
}

func TestDisk_EvictsHighestCostFirst(t *testing.T) {
	c := newTestCache(t, Config{DiskMaxBytes: 100})
	artifact := bytes.Repeat([]byte("x"), 40)
	ctx := context.Background()

	cheap := testMeaning{key: "cheap", weight: 10}
	costly := testMeaning{key: "costly", weight: 5000}
	newest := testMeaning{key: "newest", weight: 10}

	for _, m := range []testMeaning{cheap, costly, newest} {
		if _, err := c.GetOrCreate(ctx, m, func(context.Context) ([]byte, error) {
			return artifact, nil
		}); err != nil {
			t.Fatalf("GetOrCreate(%s) error = %v", m.key, err)
		}
	}

	tests := []struct {
		meaning testMeaning
		want    bool
	}{
		{cheap, true},
		{costly, false},
		{newest, true},
	}
	for _, tt := range tests {
		row, _, err := c.disk.Get(ctx, Key(tt.meaning))
		if err != nil {
			t.Fatalf("disk.Get(%s) error = %v", tt.meaning.key, err)
		}
		if (row != nil) != tt.want {
			t.Errorf("%s on disk = %v, want %v", tt.meaning.key, row != nil, tt.want)
		}
	}

	total, _, err := c.disk.Usage(ctx)
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if total > 100 {
		t.Errorf("disk usage = %d, want <= 100", total)
	}
}

func TestDisk_LeastRecentlyAccessedBreaksTies(t *testing.T) {
	c := newTestCache(t, Config{DiskMaxBytes: 100})
	artifact := bytes.Repeat([]byte("y"), 40)
	ctx := context.Background()

	older := testMeaning{key: "older", weight: 7}
	touched := testMeaning{key: "touched", weight: 7}
	gen := func(context.Context) ([]byte, error) { return artifact, nil }

	for _, m := range []testMeaning{older, touched} {
		if _, err := c.GetOrCreate(ctx, m, gen); err != nil {
			t.Fatal(err)
		}
	}
	time.Sleep(2 * time.Millisecond)
	if _, _, err := c.disk.Get(ctx, Key(older)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, _, err := c.disk.Get(ctx, Key(touched)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, _, err := c.disk.Get(ctx, Key(older)); err != nil {
		t.Fatal(err)
	}

	if _, err := c.GetOrCreate(ctx, testMeaning{key: "third", weight: 7}, gen); err != nil {
		t.Fatal(err)
	}

	if row, _, _ := c.disk.Get(ctx, Key(touched)); row != nil {
		t.Error("least recently accessed entry was not evicted")
	}
	if row, _, _ := c.disk.Get(ctx, Key(older)); row == nil {
		t.Error("recently accessed entry was evicted")
	}
}

func TestDisk_OversizedArtifactServedButNotStored(t *testing.T) {
	c := newTestCache(t, Config{DiskMaxBytes: 10})
	m := testMeaning{key: "huge", weight: 1}

	entry, err := c.GetOrCreate(context.Background(), m, func(context.Context) ([]byte, error) {
		return bytes.Repeat([]byte("z"), 64), nil
	})
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if len(entry.Data) != 64 {
		t.Errorf("len(Data) = %d, want 64", len(entry.Data))
	}

	_, entries, err := c.disk.Usage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if entries != 0 {
		t.Errorf("disk entries = %d, want 0", entries)
	}
}

func TestNew_UnusableDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		dir  string
	}{
		{name: "empty path", dir: ""},
		{name: "path is a file", dir: file},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), Config{Dir: tt.dir})
			var initErr *InitError
			if !errors.As(err, &initErr) {
				t.Fatalf("New() error = %v, want *InitError", err)
			}
			if initErr.Tier != TierDisk {
				t.Errorf("Tier = %q, want %q", initErr.Tier, TierDisk)
			}
		})
	}
}

func TestInvalidate(t *testing.T) {
	c := newTestCache(t, Config{})
	m := testMeaning{key: "gone", weight: 1}
	var calls atomic.Int32

	if _, err := c.GetOrCreate(context.Background(), m, counting([]byte("a"), &calls)); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate(context.Background(), m); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := c.GetOrCreate(context.Background(), m, counting([]byte("b"), &calls)); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("generate called %d times, want 2", calls.Load())
	}
}

type recordingObserver struct {
	nopObserver
	mu      sync.Mutex
	lookups map[string]int
	gens    map[string]int
}

func (o *recordingObserver) ObserveLookup(tier string, hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lookups[fmt.Sprintf("%s/%v", tier, hit)]++
}

func (o *recordingObserver) ObserveGeneration(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gens[outcome]++
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{lookups: map[string]int{}, gens: map[string]int{}}
	c, err := New(context.Background(), Config{Dir: t.TempDir()}, WithObserver(obs))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	m := testMeaning{key: "observed", weight: 1}
	var calls atomic.Int32
	for range 2 {
		if _, err := c.GetOrCreate(context.Background(), m, counting([]byte("x"), &calls)); err != nil {
			t.Fatal(err)
		}
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.lookups["memory/true"] != 1 || obs.lookups["memory/false"] != 1 || obs.lookups["disk/false"] != 1 {
		t.Errorf("lookups = %v", obs.lookups)
	}
	if obs.gens["ok"] != 1 {
		t.Errorf("generations = %v", obs.gens)
	}
}
