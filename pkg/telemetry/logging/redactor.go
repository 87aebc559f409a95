package logging

import (
	"regexp"
	"strings"
)

// RedactionMarker replaces any value that must not appear in logs.
const RedactionMarker = "[REDACTED]"

// sensitiveKeys lists attribute keys whose values are always replaced.
// Matching is case-insensitive on key substrings, so "Authorization",
// "session_cookie" and "api_token" all match.
var sensitiveKeys = []string{
	"cookie",
	"authorization",
	"password",
	"token",
	"bearer",
	"api_key",
	"apikey",
	"secret",
}

// Redactor scrubs credential material from log fields and free text.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and its replacement.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a Redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	r := &Redactor{}
	r.addDefaultPatterns()
	return r
}

// addDefaultPatterns compiles the built-in patterns.
func (r *Redactor) addDefaultPatterns() {
	patterns := []struct {
		name        string
		regex       string
		replacement string
	}{
		// Cookie headers and cookie-pair assignments. cf_clearance and
		// sso tokens are long base64-ish blobs; match the whole value.
		{
			name:        "cookie_pair",
			regex:       `(?i)((?:cf_clearance|sso|sso-rw|session|auth_token|_ga)=)[^;\s"]+`,
			replacement: "$1" + RedactionMarker,
		},
		{
			name:        "cookie_header",
			regex:       `(?i)((?:set-)?cookie:\s*).+`,
			replacement: "$1" + RedactionMarker,
		},
		// Bearer tokens in authorization headers or error text.
		{
			name:        "bearer_token",
			regex:       `(?i)(bearer\s+)[a-zA-Z0-9._\-]+`,
			replacement: "$1" + RedactionMarker,
		},
		// Generic API keys (sk- prefix or key=value forms).
		{
			name:        "api_key",
			regex:       `(?i)(sk-[a-zA-Z0-9]+|api[-_]?key[=:]\s*[a-zA-Z0-9._\-]+)`,
			replacement: RedactionMarker,
		},
	}

	for _, p := range patterns {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}
}

// IsSensitiveKey reports whether a log attribute key names a credential.
func (r *Redactor) IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// RedactText scrubs credential-shaped substrings from free text, such as
// upstream error bodies echoed into log messages.
func (r *Redactor) RedactText(text string) string {
	for _, p := range r.patterns {
		text = p.regex.ReplaceAllString(text, p.replacement)
	}
	return text
}

// Snippet returns a redacted, length-bounded excerpt of text, suitable for
// attaching upstream error bodies to telemetry events.
func (r *Redactor) Snippet(text string, maxLen int) string {
	text = r.RedactText(text)
	if maxLen > 0 && len(text) > maxLen {
		return text[:maxLen] + "..."
	}
	return text
}

// defaultRedactor backs the package-level helpers. The pattern set is fixed,
// so sharing one instance is safe.
var defaultRedactor = NewRedactor()

// RedactText scrubs credential-shaped substrings using the default patterns.
func RedactText(text string) string {
	return defaultRedactor.RedactText(text)
}

// Snippet returns a redacted, length-bounded excerpt using the default
// patterns.
func Snippet(text string, maxLen int) string {
	return defaultRedactor.Snippet(text, maxLen)
}
