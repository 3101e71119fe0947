package apperrors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrUnknownCategory      = errors.New("unknown facet category")
	ErrBackendUnavailable   = errors.New("search backend unavailable")
	ErrCircuitOpen          = errors.New("search backend circuit open")
	ErrMalformedAggregation = errors.New("malformed aggregation response")
)
