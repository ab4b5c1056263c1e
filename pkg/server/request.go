package server

import (
	"fmt"
	"math"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"glim-hq/cards/pkg/card"
)

// maxScaleLength bounds the scale parameter after trailing zeros are
// trimmed, so "1.5000000000" is accepted but absurd precision is not.
const maxScaleLength = 10

var (
	ownerPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
	repoPattern  = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)
)

// RequestError is a malformed card request. It maps to 400.
type RequestError struct {
	// Param is the offending path segment or query parameter.
	Param string

	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Message)
}

// parseCardRequest builds the card meaning from the path segments and query.
func parseCardRequest(owner, segment string, query url.Values) (card.Meaning, error) {
	repo, format := splitExtension(segment)

	if !ownerPattern.MatchString(owner) {
		return card.Meaning{}, &RequestError{Param: "owner", Message: fmt.Sprintf("%q is not a valid GitHub owner", owner)}
	}
	if !repoPattern.MatchString(repo) || repo == "." || repo == ".." {
		return card.Meaning{}, &RequestError{Param: "repo", Message: fmt.Sprintf("%q is not a valid repository name", repo)}
	}

	scale, err := parseScale(query)
	if err != nil {
		return card.Meaning{}, err
	}

	return card.NewMeaning(owner, repo, query.Get("theme"), format, scale), nil
}

// splitExtension separates a known format extension from the repository
// segment. Unknown extensions are part of the name, so "next.js" stays a
// repository called "next.js".
func splitExtension(segment string) (string, card.Format) {
	ext := path.Ext(segment)
	if ext != "" {
		if format, ok := card.ParseFormat(ext[1:]); ok {
			return strings.TrimSuffix(segment, ext), format
		}
	}
	return segment, card.FormatSVG
}

// parseScale reads "scale", falling back to "s". A missing value is the
// default scale; anything else is clamped to [MinScale, MaxScale].
func parseScale(query url.Values) (float64, error) {
	raw := query.Get("scale")
	param := "scale"
	if raw == "" {
		raw = query.Get("s")
		param = "s"
	}
	if raw == "" {
		return card.DefaultScale, nil
	}

	if len(strings.TrimRight(raw, "0")) > maxScaleLength {
		return 0, &RequestError{Param: param, Message: fmt.Sprintf("value longer than %d characters", maxScaleLength)}
	}
	scale, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return 0, &RequestError{Param: param, Message: fmt.Sprintf("%q is not a number", raw)}
	}
	return min(max(scale, card.MinScale), card.MaxScale), nil
}
