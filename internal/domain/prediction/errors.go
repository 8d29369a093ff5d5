package prediction

import "errors"

// Sentinel errors for the prediction engine.
var (
	// ErrFeatures wraps any failure to obtain a fixture's feature bundle.
	ErrFeatures = errors.New("feature retrieval failed")
	// ErrNoFeatureSource is returned by New without a feature source.
	ErrNoFeatureSource = errors.New("feature source is required")
)
