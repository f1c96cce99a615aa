package catalog

import "errors"

var (
	// ErrMalformedPayload is returned when a response body cannot be decoded into the expected shape.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrConfiguration is returned when a harvest cannot start at all, e.g. the
	// locator carries no category identifier.
	ErrConfiguration = errors.New("configuration error")

	// ErrExhausted marks a cascade in which no strategy produced a usable result.
	// It is reported in traces only; callers get an empty list instead.
	ErrExhausted = errors.New("all strategies exhausted")
)
