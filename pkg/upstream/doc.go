// Package upstream fetches GitHub repository metadata for card rendering.
//
// # Overview
//
// Client layers two protections over a single GET /repos/{owner}/{repo}:
//
//  1. Outcome cache - the last result per repository, stored as exactly one
//     of Valid, Retryable or Exhausted
//  2. Circuit breaker - fails fast with *CircuitOpenError while GitHub is
//     unhealthy (network failures, 403 rate limiting, 5xx)
//
// A Fetch never retries inside one call. Retryable failures are retried by
// the next independent request until the key's retry budget is spent, after
// which the error is served from cache until the entry expires:
//
//	client := upstream.NewClient(upstream.Config{Token: os.Getenv("GITHUB_TOKEN")})
//	defer client.Close()
//
//	repo, err := client.Fetch(ctx, "rust-lang/rust")
//	var notFound *upstream.NotFoundError
//	if errors.As(err, &notFound) {
//	    // 404 or private repository
//	}
//
// # Error Classification
//
//	transport failure  -> *NetworkError      retryable, trips breaker
//	403                -> *RateLimitedError  retryable, trips breaker
//	5xx                -> *APIError          retryable, trips breaker
//	other 4xx          -> *APIError          retryable
//	401                -> *AuthError         retryable
//	404, private repo  -> *NotFoundError     cached as Exhausted at once
package upstream
