package repository

import "errors"

// Sentinel errors for the storage layer.
var (
	ErrNotFound           = errors.New("record not found")
	ErrUnsupportedDialect = errors.New("unsupported sql dialect")
	ErrInvalidRecord      = errors.New("invalid record")
	ErrEventFinished      = errors.New("ingestion event already finished")
)
