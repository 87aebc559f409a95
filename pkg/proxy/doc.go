// Package proxy contains the OpenAI-compatible HTTP surface: request
// parsing and validation, response and SSE writers, and the mapping from
// internal failures to the wire error taxonomy.
package proxy
