package model

import "errors"

// ErrInvalidJob is returned by SyncJob.Validate.
var ErrInvalidJob = errors.New("invalid sync job")
