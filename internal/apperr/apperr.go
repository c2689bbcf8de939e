// Package apperr defines the error taxonomy shared by the engine and its collaborators.
//
// Malformed input is never an error (it is coerced to zero by the normalizer) and
// insufficient data is a result state, not an error. What remains are configuration
// problems the caller must fix, failures of an external source that must be surfaced
// with a machine-readable code, and missing entities.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindSource     Kind = "source"
	KindNotFound   Kind = "not_found"
)

// Machine-readable codes for external source failures.
const (
	CodeAuthExpired      = "auth_expired"
	CodeRateLimited      = "rate_limited"
	CodePermissionDenied = "permission_denied"
	CodeUnavailable      = "unavailable"
)

// Error is the concrete error type returned across package boundaries.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports an invalid or ambiguous configuration.
func Validation(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing campaign, mapping or similar entity.
func NotFound(code, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// SourceFailure wraps a failure of an external data source. The code is passed through
// verbatim so collaborators can prompt re-authorization or offer a fallback connection.
func SourceFailure(source, code string, err error) *Error {
	if code == "" {
		code = CodeUnavailable
	}
	msg := "source request failed"
	switch code {
	case CodeAuthExpired:
		msg = "authorization expired"
	case CodeRateLimited:
		msg = "rate limited"
	case CodePermissionDenied:
		msg = "permission denied"
	}
	return &Error{Kind: KindSource, Code: code, Message: msg, Source: source, Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
