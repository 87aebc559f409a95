package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidKey is returned for a missing, malformed, or unknown key.
// Callers map it to 401 authentication_required; the message carries no
// hint of which case applied.
var ErrInvalidKey = errors.New("invalid API key")

// Validator checks inbound bearer keys against the configured set. Only
// SHA-256 digests of the configured keys are retained; the clear values are
// discarded at construction. Comparison is constant-time per configured key.
type Validator struct {
	hashes [][]byte
	// keyIDs holds a short non-reversible identifier per hash, used for
	// quota bucketing and usage attribution.
	keyIDs []string
}

// NewValidator hashes the configured keys. Blank entries are dropped.
func NewValidator(keys []string) *Validator {
	v := &Validator{}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		sum := sha256.Sum256([]byte(key))
		v.hashes = append(v.hashes, sum[:])
		v.keyIDs = append(v.keyIDs, hex.EncodeToString(sum[:])[:12])
	}
	return v
}

// Validate checks a presented key and returns its key id.
func (v *Validator) Validate(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	sum := sha256.Sum256([]byte(key))
	for i, h := range v.hashes {
		if subtle.ConstantTimeCompare(sum[:], h) == 1 {
			return v.keyIDs[i], nil
		}
	}
	return "", ErrInvalidKey
}

// KeyCount reports how many keys are configured.
func (v *Validator) KeyCount() int {
	return len(v.hashes)
}

// BearerToken extracts the token from an Authorization header. Returns ""
// when the header is absent or not a Bearer scheme.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
