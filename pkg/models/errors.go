package models

import "errors"

// Domain-level sentinel errors, kept alongside the types they validate so
// callers can use errors.Is without importing a separate errors package.
var (
	errNegativeCount            = errors.New("models: contraction count cannot be negative")
	errGoodExceedsCompliant     = errors.New("models: good count exceeds min(mvc_compliant, duration_compliant)")
	errMainWeightsNotNormalized = errors.New("models: main scoring weights must sum to 1.0 +/- 0.01")
	errSubWeightsNotNormalized  = errors.New("models: sub-weights must sum to 1.0 +/- 0.01")
	errRateOutOfBounds          = errors.New("models: rate must be in [0,1]")
	errScoreOutOfBounds         = errors.New("models: score must be in [0,100]")
)
