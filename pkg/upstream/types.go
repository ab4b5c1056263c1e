package upstream

import (
	"strings"
	"time"

	"glim-hq/cards/pkg/breaker"
)

// Default client settings.
const (
	DefaultBaseURL         = "https://api.github.com"
	DefaultUserAgent       = "glim-card-service"
	DefaultTimeout         = 10 * time.Second
	DefaultCacheTTL        = 30 * time.Minute
	DefaultRetryBudget     = 3
	DefaultCleanupInterval = 5 * time.Minute
	DefaultQuotaInterval   = time.Minute
	maxResponseBytes       = 1 << 20
)

// Repository is the subset of GitHub repository metadata a card needs.
type Repository struct {
	Name            string  `json:"name"`
	FullName        string  `json:"full_name"`
	Description     *string `json:"description"`
	Language        *string `json:"language"`
	StargazersCount int     `json:"stargazers_count"`
	ForksCount      int     `json:"forks_count"`
	Private         bool    `json:"private"`
	Owner           struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// DescriptionOrEmpty returns the description or "".
func (r *Repository) DescriptionOrEmpty() string {
	if r.Description == nil {
		return ""
	}
	return *r.Description
}

// LanguageOrEmpty returns the primary language or "".
func (r *Repository) LanguageOrEmpty() string {
	if r.Language == nil {
		return ""
	}
	return *r.Language
}

// Config configures a Client.
type Config struct {
	// BaseURL is the GitHub API root.
	BaseURL string

	// Token is sent as a bearer token when non-empty.
	Token string

	// UserAgent is sent on every request; GitHub rejects requests without one.
	UserAgent string

	// Timeout bounds each upstream request end to end.
	Timeout time.Duration

	// CacheTTL applies to every cached outcome: Valid, Retryable and Exhausted.
	CacheTTL time.Duration

	// RetryBudget is the number of retryable failures a key may accumulate
	// before its error is cached as Exhausted.
	RetryBudget int

	// CleanupInterval is how often expired cache entries are purged.
	CleanupInterval time.Duration

	// QuotaInterval is the polling period of the quota monitor.
	QuotaInterval time.Duration

	// Breaker configures the circuit breaker.
	Breaker breaker.Config
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.RetryBudget <= 0 {
		c.RetryBudget = DefaultRetryBudget
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.QuotaInterval <= 0 {
		c.QuotaInterval = DefaultQuotaInterval
	}
	return c
}

// Status is a read-only snapshot of the client for status endpoints.
type Status struct {
	CircuitState     string     `json:"circuit_state"`
	CircuitOpenUntil *time.Time `json:"circuit_open_until,omitempty"`
	CachedEntries    int        `json:"cached_entries"`
	Quota            *Quota     `json:"quota,omitempty"`
}

// Quota is the core API quota last reported by GitHub.
type Quota struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	CheckedAt time.Time `json:"checked_at"`
}

// Observer receives fetch and breaker events. metrics.Collector implements it.
type Observer interface {
	// ObserveFetch records one Fetch call. source is "cache" or "upstream".
	ObserveFetch(source, outcome string, latency time.Duration)

	// ObserveBreakerTransition records a circuit state change.
	ObserveBreakerTransition(from, to breaker.State)

	// ObserveQuota records the latest upstream quota.
	ObserveQuota(limit, remaining int)
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(string, string, time.Duration) {}
func (nopObserver) ObserveBreakerTransition(breaker.State, breaker.State) {}
func (nopObserver) ObserveQuota(int, int) {}
