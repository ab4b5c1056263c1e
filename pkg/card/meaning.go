package card

import (
	"fmt"
	"strconv"
	"strings"

	"glim-hq/cards/pkg/cache"
)

// TemplateVersion is bumped whenever the card layout changes so that
// cached artifacts from an older layout are not served.
const TemplateVersion = 1

// Scale bounds applied to the scale query parameter.
const (
	MinScale     = 0.1
	MaxScale     = 3.5
	DefaultScale = 1.0
)

// Format is an output encoding.
type Format string

// Supported formats.
const (
	FormatSVG Format = "svg"
)

// ParseFormat maps a file extension (without the dot) to a Format.
func ParseFormat(ext string) (Format, bool) {
	switch strings.ToLower(ext) {
	case "svg":
		return FormatSVG, true
	default:
		return "", false
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// Meaning identifies one rendered card: every parameter that changes the
// output bytes. It implements cache.Meaning.
type Meaning struct {
	Owner  string
	Repo   string
	Theme  string
	Format Format
	Scale  float64
}

// NewMeaning normalizes its arguments into a Meaning. Owner and repository
// are case-insensitive on GitHub and are lowercased; empty values take
// their defaults.
func NewMeaning(owner, repo, theme string, format Format, scale float64) Meaning {
	if theme == "" {
		theme = DefaultTheme
	}
	if format == "" {
		format = FormatSVG
	}
	if scale == 0 {
		scale = DefaultScale
	}
	return Meaning{
		Owner:  strings.ToLower(owner),
		Repo:   strings.ToLower(repo),
		Theme:  strings.ToLower(theme),
		Format: format,
		Scale:  scale,
	}
}

// CacheKey returns "{owner}:{repo}/{theme}:v{version}", followed by the
// format and scale when they differ from the defaults.
func (m Meaning) CacheKey() string {
	key := fmt.Sprintf("%s:%s/%s:v%d", m.Owner, m.Repo, m.Theme, TemplateVersion)
	if m.Format != "" && m.Format != FormatSVG {
		key += "." + string(m.Format)
	}
	if m.Scale != 0 && m.Scale != DefaultScale {
		key += "@" + strconv.FormatFloat(m.Scale, 'f', -1, 64)
	}
	return key
}

// Weight implements cache.Meaning using the repository's name lengths.
func (m Meaning) Weight() int64 {
	return cache.ValueWeight(m.Owner, m.Repo)
}

// Repository returns "owner/repo".
func (m Meaning) Repository() string {
	return m.Owner + "/" + m.Repo
}

var _ cache.Meaning = Meaning{}
