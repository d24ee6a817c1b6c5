package tokenclient

import (
	"errors"
	"fmt"
)

// Kind classifies a token fetch failure and decides retry eligibility.
type Kind int

const (
	// KindAuthenticationRequired means the caller's session is invalid or the
	// server redirected to a login page. Never retried; the user must sign in.
	KindAuthenticationRequired Kind = iota + 1

	// KindValidation means the server rejected the request as malformed.
	// Never retried; retrying the same bad input cannot succeed.
	KindValidation

	// KindRemoteIssuer means the server reported a structured issuance
	// failure (configuration or key defect). Never retried; the deployment
	// must be fixed first.
	KindRemoteIssuer

	// KindProtocol means the response had an unexpected shape (e.g., HTML
	// where JSON was expected). Retried within the retry budget.
	KindProtocol

	// KindTransport means the network request itself failed. Retried within
	// the retry budget with exponential backoff.
	KindTransport
)

// String returns the stable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindAuthenticationRequired:
		return "authentication_required"
	case KindValidation:
		return "validation"
	case KindRemoteIssuer:
		return "remote_issuer"
	case KindProtocol:
		return "protocol"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a classified token fetch failure.
type Error struct {
	// Kind classifies the failure and decides retry eligibility.
	Kind Kind

	// Status is the HTTP status code when one was received, else zero.
	Status int

	// Message is a short description, server-supplied where available.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the standard error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("token fetch %s error", e.Kind)

	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind of err, unwrapping as needed, or zero if
// err carries no classification.
func KindOf(err error) Kind {
	var fetchErr *Error
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}
	return 0
}

// retryable reports whether the failure class is eligible for another attempt.
func retryable(err error) bool {
	switch KindOf(err) {
	case KindProtocol, KindTransport:
		return true
	default:
		return false
	}
}
