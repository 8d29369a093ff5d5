package service

import "errors"

// Sentinel errors returned by the Service.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrNoUpstream    = errors.New("upstream client is required")
	ErrUnknownKind   = errors.New("unknown sync kind")
	ErrNothingSynced = errors.New("no fixture could be predicted")
)
