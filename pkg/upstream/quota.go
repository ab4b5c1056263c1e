package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// StartQuotaMonitor starts a background goroutine that periodically reads
// GitHub's /rate_limit endpoint. Those requests do not count against the
// quota and bypass the outcome cache and the circuit breaker.
//
// The monitor runs until Close is called or ctx is cancelled. Failing checks
// back off exponentially. Calling it more than once has no effect.
func (c *Client) StartQuotaMonitor(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.runQuotaMonitor(ctx)
	})
}

func (c *Client) runQuotaMonitor(ctx context.Context) {
	defer close(c.stopped)

	interval := c.config.QuotaInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("github quota monitor started", "interval", interval)

	failures := 0
	check := func() {
		if err := c.refreshQuota(ctx); err != nil {
			failures++
			next := calculateBackoff(failures, interval)
			ticker.Reset(next)
			slog.Warn("github quota check failed",
				"error", err,
				"consecutive_failures", failures,
				"next_check_in", next,
			)
			return
		}
		if failures > 0 {
			slog.Info("github quota check recovered", "previous_failures", failures)
			ticker.Reset(interval)
		}
		failures = 0
	}

	check()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("github quota monitor stopped (context cancelled)")
			return
		case <-c.stop:
			slog.Debug("github quota monitor stopped (client closed)")
			return
		case <-ticker.C:
			check()
		}
	}
}

// refreshQuota performs a single quota check.
func (c *Client) refreshQuota(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.do(checkCtx, c.config.BaseURL+"/rate_limit")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &NetworkError{Cause: err}
	}
	if err := classify(resp, body, "rate_limit"); err != nil {
		return err
	}

	var payload struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decode rate limit: %w", err)
	}

	core := payload.Resources.Core
	q := &Quota{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		ResetAt:   time.Unix(core.Reset, 0),
		CheckedAt: time.Now(),
	}

	c.quotaMu.Lock()
	c.quota = q
	c.quotaMu.Unlock()

	c.observer.ObserveQuota(q.Limit, q.Remaining)
	if q.Limit > 0 && q.Remaining*10 < q.Limit {
		slog.Warn("github quota running low",
			"remaining", q.Remaining,
			"limit", q.Limit,
			"reset_at", q.ResetAt,
		)
	}
	return nil
}

// calculateBackoff grows the interval as base * 2^failures, capped at 10x
// the base and at 5 minutes.
func calculateBackoff(consecutiveFailures int, baseInterval time.Duration) time.Duration {
	if consecutiveFailures <= 0 {
		return baseInterval
	}

	multiplier := 1 << uint(min(consecutiveFailures, 8))
	if multiplier > 10 {
		multiplier = 10
	}

	backoff := baseInterval * time.Duration(multiplier)
	if maxBackoff := 5 * time.Minute; backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}
