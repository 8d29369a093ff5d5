package cache

import "errors"

// Sentinel errors for the cache layer.
var (
	ErrNoAddress   = errors.New("redis address is required")
	ErrUnreachable = errors.New("redis unreachable")
)
