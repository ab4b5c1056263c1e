package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"glim-hq/cards/pkg/breaker"
)

// Client fetches repository metadata from GitHub behind an outcome cache and
// a circuit breaker.
//
// Every Fetch either answers from the cache or performs exactly one
// upstream request. Retryable failures are retried by later, independent
// calls until the key's retry budget is spent.
type Client struct {
	// config contains the effective client configuration
	config Config

	// client is the pooled HTTP client
	client *http.Client

	// entries caches the last outcome per repository
	entries *entryStore

	// breaker gates upstream calls
	breaker *breaker.Breaker

	observer Observer
	tracer   trace.Tracer

	quotaMu   sync.RWMutex
	quota     *Quota
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	stopped   chan struct{}
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithObserver registers an Observer for fetch and breaker events.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithTracer sets the tracer used for upstream spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// NewClient creates a Client. Zero config fields take their defaults.
func NewClient(config Config, opts ...Option) *Client {
	config = config.withDefaults()

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = config.Timeout

	c := &Client{
		config:   config,
		client:   hc,
		entries:  newEntryStore(config.CacheTTL, config.CleanupInterval),
		observer: nopObserver{},
		tracer:   noop.NewTracerProvider().Tracer(""),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = breaker.New(config.Breaker, breaker.WithStateChange(func(from, to breaker.State) {
		slog.Warn("github circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
		c.observer.ObserveBreakerTransition(from, to)
	}))
	return c
}

// Fetch returns metadata for key ("owner/repo").
//
//  1. A cached Valid entry is returned; a cached Exhausted error is returned
//     without contacting GitHub. A Retryable entry falls through.
//  2. An open circuit returns *CircuitOpenError.
//  3. One GET /repos/{owner}/{repo} is made and its outcome cached.
func (c *Client) Fetch(ctx context.Context, key string) (*Repository, error) {
	start := time.Now()

	owner, name, err := splitKey(key)
	if err != nil {
		return nil, err
	}
	cacheKey := strings.ToLower(owner + "/" + name)

	ctx, span := c.tracer.Start(ctx, "upstream.fetch", trace.WithAttributes(
		attribute.String("github.repository", cacheKey),
	))
	defer span.End()

	if entry, ok := c.entries.Get(cacheKey); ok {
		switch e := entry.(type) {
		case Valid:
			span.SetAttributes(attribute.String("cache.entry", "valid"))
			c.observer.ObserveFetch("cache", "ok", time.Since(start))
			return e.Repository, nil
		case Exhausted:
			span.SetAttributes(attribute.String("cache.entry", "exhausted"))
			c.observer.ObserveFetch("cache", outcomeLabel(e.Err), time.Since(start))
			return nil, e.Err
		case Retryable:
			span.SetAttributes(
				attribute.String("cache.entry", "retryable"),
				attribute.Int("cache.retries_remaining", e.Remaining),
			)
		}
	}

	if !c.breaker.AllowCall() {
		err := &CircuitOpenError{RetryAt: c.breaker.OpenUntil()}
		span.SetStatus(codes.Error, err.Error())
		c.observer.ObserveFetch("upstream", outcomeLabel(err), time.Since(start))
		return nil, err
	}

	repo, err := c.get(ctx, owner, name)
	latency := time.Since(start)

	if err != nil && ctx.Err() != nil {
		// The caller went away; this says nothing about GitHub.
		return nil, fmt.Errorf("fetch %s: %w", cacheKey, ctx.Err())
	}

	c.observer.ObserveFetch("upstream", outcomeLabel(err), latency)

	if err == nil {
		c.entries.Set(cacheKey, Valid{Repository: repo})
		c.breaker.OnSuccess()
		return repo, nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if tripsBreaker(err) {
		c.breaker.OnFailure()
	} else {
		// GitHub answered; the request itself was the problem.
		c.breaker.OnSuccess()
	}

	next := c.entries.Update(cacheKey, func(current Entry) Entry {
		return nextFailureEntry(current, err, c.config.RetryBudget)
	})

	slog.Debug("github fetch failed",
		"repository", cacheKey,
		"error", err,
		"latency_ms", latency.Milliseconds(),
		"cached_as", entryName(next),
	)
	return nil, err
}

// get performs the single upstream request and classifies the outcome.
func (c *Client) get(ctx context.Context, owner, name string) (*Repository, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", c.config.BaseURL, owner, name)

	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}

	if err := classify(resp, body, owner+"/"+name); err != nil {
		return nil, err
	}

	var repo Repository
	if err := json.Unmarshal(body, &repo); err != nil {
		return nil, &NetworkError{Cause: fmt.Errorf("decode repository: %w", err)}
	}
	if repo.Private {
		return nil, &NotFoundError{Repository: owner + "/" + name}
	}
	return &repo, nil
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	slog.Debug("sending request to github", "url", url)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	return resp, nil
}

// classify maps a non-2xx response to its error type.
func classify(resp *http.Response, body []byte, repository string) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	message := errorMessage(body)
	switch {
	case code == http.StatusNotFound:
		return &NotFoundError{Repository: repository}
	case code == http.StatusUnauthorized:
		return &AuthError{Message: message}
	case code == http.StatusForbidden:
		return &RateLimitedError{
			ResetAt: parseRateLimitReset(resp.Header.Get("X-RateLimit-Reset")),
			Message: message,
		}
	default:
		return &APIError{Code: code, Message: message}
	}
}

// errorMessage extracts GitHub's {"message": "..."} field, falling back to
// the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}

// parseRateLimitReset parses the X-RateLimit-Reset header (unix seconds).
func parseRateLimitReset(header string) time.Time {
	if header == "" {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

// splitKey validates an owner/repo key.
func splitKey(key string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.Trim(key, "/"), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", &InvalidKeyError{Key: key}
	}
	return owner, name, nil
}

func entryName(e Entry) string {
	switch e.(type) {
	case Valid:
		return "valid"
	case Retryable:
		return "retryable"
	case Exhausted:
		return "exhausted"
	default:
		return "none"
	}
}

// Lookup returns the cached entry for key without contacting GitHub.
func (c *Client) Lookup(key string) (Entry, bool) {
	owner, name, err := splitKey(key)
	if err != nil {
		return nil, false
	}
	return c.entries.Get(strings.ToLower(owner + "/" + name))
}

// Invalidate drops the cached entry for key.
func (c *Client) Invalidate(key string) {
	owner, name, err := splitKey(key)
	if err != nil {
		return
	}
	c.entries.Delete(strings.ToLower(owner + "/" + name))
}

// Breaker exposes the circuit breaker for readiness checks.
func (c *Client) Breaker() *breaker.Breaker {
	return c.breaker
}

// Status returns a snapshot for health and status endpoints.
func (c *Client) Status() Status {
	s := Status{
		CircuitState:  c.breaker.State().String(),
		CachedEntries: c.entries.Len(),
	}
	if until := c.breaker.OpenUntil(); !until.IsZero() {
		s.CircuitOpenUntil = &until
	}

	c.quotaMu.RLock()
	if c.quota != nil {
		q := *c.quota
		s.Quota = &q
	}
	c.quotaMu.RUnlock()
	return s
}

// Close stops the quota monitor, if running, and releases idle connections.
func (c *Client) Close() error {
	c.stopOnce.Do(func() {
		started := true
		c.startOnce.Do(func() { started = false })
		close(c.stop)
		if !started {
			close(c.stopped)
			return
		}
		select {
		case <-c.stopped:
		case <-time.After(5 * time.Second):
			slog.Warn("github quota monitor did not stop in time")
		}
	})
	c.client.CloseIdleConnections()
	return nil
}
