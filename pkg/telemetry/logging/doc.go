// Package logging provides structured logging with credential redaction.
//
// The Logger wraps log/slog and routes every attribute through a Redactor
// before it reaches the handler. Values under sensitive keys (cookie,
// authorization, password, token, bearer, api_key) are replaced with a
// redaction marker; free-text string values are scrubbed for
// credential-shaped substrings such as cookie pairs and bearer tokens.
// Cookie material must never reach log output in clear, even when a call
// site passes it by mistake.
package logging
