package observability

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
	"github.com/baxromumarov/shelf-harvester/internal/httpx"
)

const (
	ErrorSourceUnreachable = "source_unreachable"
	ErrorMalformedPayload  = "malformed_payload"
	ErrorExtractionPanic   = "extraction_panic"
	ErrorRateLimit         = "rate_limit"
	ErrorConfiguration     = "configuration"
	ErrorUnknown           = "unknown"
)

// ErrExtractionPanic wraps a panic recovered from extraction code.
var ErrExtractionPanic = errors.New("extraction panic")

// Classify maps a candidate failure onto the error taxonomy.
func Classify(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	switch {
	case errors.Is(err, ErrExtractionPanic):
		return ErrorExtractionPanic
	case errors.Is(err, catalog.ErrMalformedPayload):
		return ErrorMalformedPayload
	case errors.Is(err, catalog.ErrConfiguration):
		return ErrorConfiguration
	}
	if kind := ClassifyFetchError(err); kind != ErrorUnknown {
		return kind
	}
	return ErrorUnknown
}

func ClassifyFetchError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	var fe *httpx.FetchError
	if errors.As(err, &fe) {
		if fe.Status == http.StatusTooManyRequests {
			return ErrorRateLimit
		}
		return ErrorSourceUnreachable
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorSourceUnreachable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorSourceUnreachable
	}
	return ErrorUnknown
}
