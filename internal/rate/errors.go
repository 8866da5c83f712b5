package rate

import "errors"

var (
	// ErrLocked reports that the identity is inside an active lockout window.
	ErrLocked = errors.New("identity locked out")
	// ErrRedisUnavailable reports a Redis transport or command failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
