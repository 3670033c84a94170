package model

import "errors"

// Shared failure taxonomy. Callers match with errors.Is; sites that
// return these wrap them with the offending input for context.
var (
	// ErrInvalidArgument marks malformed request input, e.g. a
	// non-positive limit or an empty asset id.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInsufficientData marks an empty window: the asset has no
	// readings yet. Expected condition, not a fault.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidConfig marks a risk policy that fails validation.
	// Fatal at startup; never silently defaulted.
	ErrInvalidConfig = errors.New("invalid configuration")
)
