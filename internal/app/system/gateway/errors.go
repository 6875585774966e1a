package gateway

import (
	"errors"
	"fmt"
)

// FetchError is the only error the gateway returns. Its Error text is
// meant for display as-is.
type FetchError struct {
	Op         Kind   // which fetch failed
	Country    string // requested country code, timeline fetches only
	URL        string
	StatusCode int    // 0 when no response was received
	Status     string // e.g. "500 Internal Server Error"
	Message    string
	Err        error
}

func (e *FetchError) Error() string { return e.Message }

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is or wraps a *FetchError and returns it.
func IsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// ErrMalformedPayload marks responses that arrived but did not match the
// expected schema.
var ErrMalformedPayload = errors.New("malformed payload")

func subject(op Kind, country string) string {
	if op == KindTimeline {
		return "timeline for " + country
	}
	return "countries"
}

func transportError(op Kind, country, url string, err error) *FetchError {
	return &FetchError{
		Op:      op,
		Country: country,
		URL:     url,
		Message: fmt.Sprintf("Failed to fetch %s: %v", subject(op, country), err),
		Err:     err,
	}
}

func statusError(op Kind, country, url string, code int, status, detail string) *FetchError {
	msg := fmt.Sprintf("Failed to fetch %s: %s", subject(op, country), status)
	if detail != "" {
		msg += " (" + detail + ")"
	}
	return &FetchError{
		Op:         op,
		Country:    country,
		URL:        url,
		StatusCode: code,
		Status:     status,
		Message:    msg,
	}
}

func payloadError(op Kind, country, url string, code int, status string, err error) *FetchError {
	return &FetchError{
		Op:         op,
		Country:    country,
		URL:        url,
		StatusCode: code,
		Status:     status,
		Message:    fmt.Sprintf("Failed to fetch %s: malformed response: %v", subject(op, country), err),
		Err:        fmt.Errorf("%w: %w", ErrMalformedPayload, err),
	}
}
