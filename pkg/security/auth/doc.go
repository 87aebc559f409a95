// Package auth validates inbound API keys. Configured keys are stored only
// as SHA-256 digests and compared in constant time; the authenticated key's
// short id travels in the request context for quota bucketing and usage
// attribution.
package auth
