package calculator

import "errors"

var (
	// ErrInvalidArgument is returned for an unrecognised interval or a non-positive lookback.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUndefinedMetric is returned when the selected window is empty or has no range.
	// Callers drop the ticker instead of surfacing the error.
	ErrUndefinedMetric = errors.New("undefined metric")
)
