package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// MaintenanceReport summarizes one maintenance pass.
type MaintenanceReport struct {
	// Expired is the number of disk entries removed for exceeding MaxAge
	Expired int

	// DiskBytes and DiskEntries describe the disk tier after the pass
	DiskBytes   int64
	DiskEntries int
}

// Maintain prunes disk entries older than MaxAge, truncates the index
// write-ahead log and reports disk usage. It is safe to call concurrently
// with lookups.
func (c *Cache) Maintain(ctx context.Context) (MaintenanceReport, error) {
	var report MaintenanceReport

	if c.config.MaxAge > 0 {
		expired, err := c.disk.pruneOlderThan(ctx, c.now().Add(-c.config.MaxAge))
		if err != nil {
			return report, fmt.Errorf("prune expired entries: %w", err)
		}
		report.Expired = expired
		for range expired {
			c.observer.ObserveEviction(TierDisk)
		}
	}

	if err := c.disk.checkpoint(ctx); err != nil {
		return report, fmt.Errorf("checkpoint index: %w", err)
	}

	bytes, entries, err := c.disk.Usage(ctx)
	if err != nil {
		return report, err
	}
	report.DiskBytes = bytes
	report.DiskEntries = entries
	c.observer.ObserveDiskUsage(bytes, entries)

	return report, nil
}

// Scheduler runs Cache.Maintain on a cron schedule.
type Scheduler struct {
	cache    *Cache
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
	cancel   context.CancelFunc
}

// NewScheduler creates a maintenance scheduler for c. An empty schedule
// disables it.
//
// Common cron expressions:
//   - "*/15 * * * *" - Every 15 minutes
//   - "0 * * * *"    - Hourly
//   - "@every 10m"   - Every 10 minutes
func NewScheduler(c *Cache, schedule string) *Scheduler {
	return &Scheduler{
		cache:    c,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "cache.scheduler"),
	}
}

// Start validates the schedule and begins running maintenance passes.
// Passes use a context derived from ctx; Stop cancels it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.schedule == "" {
		s.logger.Info("maintenance schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}

	s.cron.Start()
	s.cancel = cancel
	s.running = true

	s.logger.Info("cache maintenance scheduler started",
		"schedule", s.schedule,
		"max_age", s.cache.config.MaxAge,
	)
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	start := time.Now()
	report, err := s.cache.Maintain(ctx)
	if err != nil {
		s.logger.Error("scheduled cache maintenance failed", "error", err)
		return
	}

	if report.Expired > 0 {
		s.logger.Info("scheduled cache maintenance completed",
			"expired", report.Expired,
			"disk_bytes", report.DiskBytes,
			"disk_entries", report.DiskEntries,
			"duration", time.Since(start),
		)
	} else {
		s.logger.Debug("scheduled cache maintenance completed, nothing expired",
			"disk_bytes", report.DiskBytes,
			"disk_entries", report.DiskEntries,
		)
	}
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("cache maintenance scheduler stopped")
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled pass, or nil when not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
