package token

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies issuance failures so callers can branch without string
// matching. The issuer never returns an error of any other shape.
type Kind int

const (
	// KindValidation means the caller supplied an incomplete or malformed
	// request. The HTTP boundary maps it to a bad-request status.
	KindValidation Kind = iota + 1

	// KindConfiguration means the deployment is missing signing configuration.
	// The error lists every missing item, not just the first.
	KindConfiguration

	// KindKeyLoad means the signing key could not be read, parsed, or used.
	KindKeyLoad
)

// String returns the stable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindKeyLoad:
		return "key_load"
	default:
		return "unknown"
	}
}

// Error is the structured failure result of token issuance.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Message is a short human-readable description.
	Message string

	// Missing itemizes absent request fields (KindValidation) or absent
	// configuration items (KindConfiguration).
	Missing []string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the standard error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("video token %s error: %s", e.Kind, e.Message)

	if len(e.Missing) > 0 {
		msg += ": " + strings.Join(e.Missing, ", ")
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

// KindOf returns the failure kind of err, or zero if err is not an issuance error.
func KindOf(err error) Kind {
	var issueErr *Error
	if errors.As(err, &issueErr) {
		return issueErr.Kind
	}
	return 0
}
