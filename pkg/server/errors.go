package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"glim-hq/cards/pkg/cache"
	"glim-hq/cards/pkg/card"
	"glim-hq/cards/pkg/limits/ratelimit"
	"glim-hq/cards/pkg/server/types"
	"glim-hq/cards/pkg/upstream"
)

// defaultUpstreamRetry is sent when GitHub's reset time is unknown.
const defaultUpstreamRetry = time.Minute

// HandleError maps an error from the card pipeline to a response body and
// the Retry-After delay to advertise, zero for none. Upstream errors are
// matched before generation failures because the cache wraps them.
func HandleError(err error, now time.Time) (*types.ErrorResponse, time.Duration) {
	var (
		reqErr      *RequestError
		themeErr    *card.UnknownThemeError
		keyErr      *upstream.InvalidKeyError
		deniedErr   *ratelimit.AdmissionDeniedError
		notFoundErr *upstream.NotFoundError
		rateErr     *upstream.RateLimitedError
		authErr     *upstream.AuthError
		openErr     *upstream.CircuitOpenError
		apiErr      *upstream.APIError
		netErr      *upstream.NetworkError
		genErr      *cache.GenerationFailedError
	)

	switch {
	case errors.As(err, &reqErr), errors.As(err, &themeErr), errors.As(err, &keyErr):
		return types.NewInvalidRequestError(err.Error()), 0

	case errors.As(err, &deniedErr):
		return types.NewErrorResponse(http.StatusTooManyRequests, types.CodeRateLimitExceeded, deniedErr.Error()), time.Second

	case errors.As(err, &notFoundErr):
		return types.NewErrorResponse(http.StatusNotFound, types.CodeNotFound, notFoundErr.Error()), 0

	case errors.As(err, &rateErr):
		return types.NewErrorResponse(http.StatusTooManyRequests, types.CodeUpstreamRateLimit,
			"GitHub API rate limit exceeded, try again later"), until(rateErr.ResetAt, now, defaultUpstreamRetry)

	case errors.As(err, &authErr):
		return types.NewErrorResponse(http.StatusUnauthorized, types.CodeUpstreamAuth,
			"GitHub rejected the service's credentials"), 0

	case errors.As(err, &openErr):
		return types.NewErrorResponse(http.StatusServiceUnavailable, types.CodeServiceUnavailable,
			openErr.Error()), until(openErr.RetryAt, now, time.Second)

	case errors.As(err, &apiErr):
		return types.NewErrorResponse(http.StatusBadGateway, types.CodeUpstreamError,
			fmt.Sprintf("GitHub API returned status %d", apiErr.Code)), 0

	case errors.As(err, &netErr):
		return types.NewErrorResponse(http.StatusBadGateway, types.CodeUpstreamError,
			"GitHub could not be reached"), 0

	case errors.Is(err, context.DeadlineExceeded):
		return types.NewErrorResponse(http.StatusGatewayTimeout, types.CodeGatewayTimeout,
			"Card generation timed out"), 0

	case errors.As(err, &genErr):
		return types.NewErrorResponse(http.StatusInternalServerError, types.CodeGenerationFailed,
			"Failed to generate card"), 0

	default:
		return types.NewServerError("An internal error occurred. Please try again later."), 0
	}
}

// until returns the whole-second wait until t, or fallback when t is unset
// or already past.
func until(t, now time.Time, fallback time.Duration) time.Duration {
	if t.IsZero() || !t.After(now) {
		return fallback
	}
	return t.Sub(now).Truncate(time.Second) + time.Second
}

// writeError sends the mapped error response.
func writeError(w http.ResponseWriter, err error) *types.ErrorResponse {
	resp, retryAfter := HandleError(err, time.Now())
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter/time.Second)))
	}
	resp.Write(w)
	return resp
}
