package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credentials in log attributes.
type Redactor struct {
	patterns []redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Pattern names.
const (
	PatternGitHubToken = "github_token"
	PatternGitHubPAT   = "github_pat"
	PatternBearerToken = "bearer_token"
	PatternTokenAuth   = "token_auth"
)

// NewRedactor creates a Redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	defs := []struct {
		name        string
		regex       string
		replacement string
	}{
		// Classic tokens: personal, OAuth, user-to-server, server-to-server
		// and refresh.
		{PatternGitHubToken, `\bgh[pousr]_[A-Za-z0-9]{20,255}\b`, "gh*_***"},
		// Fine-grained personal access tokens.
		{PatternGitHubPAT, `\bgithub_pat_[A-Za-z0-9_]{20,255}\b`, "github_pat_***"},
		{PatternBearerToken, `(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`, "Bearer ***"},
		{PatternTokenAuth, `(?i)\btoken\s+[A-Za-z0-9_]{20,}`, "token ***"},
	}

	r := &Redactor{patterns: make([]redactPattern, 0, len(defs))}
	for _, d := range defs {
		r.patterns = append(r.patterns, redactPattern{
			name:        d.name,
			regex:       regexp.MustCompile(d.regex),
			replacement: d.replacement,
		})
	}
	return r
}

// RedactString masks every credential found in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr masks an attribute whose key names a credential, and any
// credential embedded in a string or error value.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, maskValue(a.Value.String()))
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); s != "" {
			if redacted := r.RedactString(s); redacted != s {
				return slog.String(a.Key, redacted)
			}
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			msg := err.Error()
			if redacted := r.RedactString(msg); redacted != msg {
				return slog.String(a.Key, redacted)
			}
		}
	}
	return a
}

// isSensitiveKey checks if a key name indicates a credential. Counters such
// as "tokens" or "token_count" are not credentials.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range []string{"token", "authorization", "secret", "password"} {
		if lowerKey == sensitive || strings.HasSuffix(lowerKey, "_"+sensitive) {
			return true
		}
	}
	return false
}

// maskValue keeps a short prefix for identification.
func maskValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "***"
	}
	return v[:4] + "***"
}
