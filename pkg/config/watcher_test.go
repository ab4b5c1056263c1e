package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	var calls, last atomic.Int32
	for i := int32(1); i <= 5; i++ {
		d.Trigger(func() {
			calls.Add(1)
			last.Store(i)
		})
	}

	time.Sleep(100 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("callback ran %d times, want 1", calls.Load())
	}
	if last.Load() != 5 {
		t.Errorf("ran trigger %d, want the latest", last.Load())
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("callback ran %d times after Stop", calls.Load())
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	clearDeploymentEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "glim.yaml")
	if err := os.WriteFile(path, []byte("telemetry:\n  logging:\n    level: info\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	reloaded := make(chan *Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, func(c *Config) { reloaded <- c }) }()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)

	// Neighbouring files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// An invalid edit is logged and skipped.
	if err := os.WriteFile(path, []byte("telemetry:\n  logging:\n    level: loud\n"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)
	if err := os.WriteFile(path, []byte("telemetry:\n  logging:\n    level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Telemetry.Logging.Level != "debug" {
			t.Errorf("reloaded level = %q, want debug", cfg.Telemetry.Logging.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("configuration was not reloaded")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestNewWatcher_RequiresPath(t *testing.T) {
	if _, err := NewWatcher("", 0, nil); err == nil {
		t.Error("NewWatcher() accepted an empty path")
	}
}
