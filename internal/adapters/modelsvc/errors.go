package modelsvc

import "errors"

// Sentinel errors for the model service client.
var (
	ErrNoBaseURL       = errors.New("model service url is required")
	ErrUnknownFixture  = errors.New("fixture not found")
	ErrUnresolvedTeams = errors.New("fixture teams are not resolved")
	ErrEmptyBatch      = errors.New("model service returned no predictions")
)
