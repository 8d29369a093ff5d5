package upstream

import "errors"

// Sentinel errors for the upstream client.
var (
	ErrMissingAPIKey   = errors.New("upstream api key is required")
	ErrEmptyEndpoint   = errors.New("endpoint is empty")
	ErrInvalidEndpoint = errors.New("endpoint is invalid")
	ErrBreakerOpen     = errors.New("circuit breaker open")
	ErrUnhealthy       = errors.New("upstream unhealthy")
)
