package session

import "errors"

// ErrNoCapacity is returned by Acquire when no healthy session exists after
// the bounded wait. The HTTP surface maps it to 503 no_healthy_sessions.
var ErrNoCapacity = errors.New("no healthy sessions available")
