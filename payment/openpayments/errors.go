package openpayments

import (
	"errors"
	"fmt"
)

var (
	// ErrResolution indicates a wallet address could not be fetched or decoded.
	ErrResolution = errors.New("openpayments: wallet address resolution failed")

	// ErrGrantRequest indicates the authorization server refused a grant request.
	ErrGrantRequest = errors.New("openpayments: grant request failed")

	// ErrGrantDenied indicates the end user rejected consent.
	ErrGrantDenied = errors.New("openpayments: grant denied")

	// ErrGrantNotReady indicates a continuation was attempted before approval.
	ErrGrantNotReady = errors.New("openpayments: grant not ready")

	// ErrMalformedGrant indicates a grant response matched neither variant.
	ErrMalformedGrant = errors.New("openpayments: malformed grant response")

	// ErrInvariantViolation indicates a server response failed a consistency check.
	ErrInvariantViolation = errors.New("openpayments: invariant violation")

	// ErrResourceRequest indicates a resource server call failed.
	ErrResourceRequest = errors.New("openpayments: resource request failed")
)

// RequestError carries the method and URL of a failed call. Kind is one of
// the sentinel errors above and is what errors.Is matches against.
type RequestError struct {
	Kind       error
	Method     string
	URL        string
	StatusCode int
	Code       string
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%v: %s %s", e.Kind, e.Method, e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvariantViolation}, args...)...)
}
