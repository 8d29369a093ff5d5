package ingestion

import "errors"

// Sentinel errors for the ingestion tracker.
var (
	ErrAlreadyFinished = errors.New("ingestion event already finished")
	ErrNilHandle       = errors.New("nil ingestion handle")
	ErrEmptySource     = errors.New("ingestion source is required")
	ErrNoStore         = errors.New("ingestion store is required")
)
