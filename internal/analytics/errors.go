package analytics

import "errors"

// Analytics engine errors
var (
	// Input errors
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyBatch   = errors.New("no data provided")
	ErrNonFinite    = errors.New("sample is not a finite number")

	// Model errors
	ErrModelFit       = errors.New("model fit failed")
	ErrModelNotFitted = errors.New("model not fitted")
)
