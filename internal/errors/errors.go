// Package errors defines the request error taxonomy for the file server and
// helpers for classifying errors when they are reported.
//
// Every failure a request handler can hit is a [*RequestError] carrying a
// [Kind]. Each kind has a sentinel, so callers test with the usual
// errors.Is:
//
//	if errors.Is(err, errors.ErrPayloadTooLong) { ... }
//
// or recover the structured value with errors.As / [KindOf]. All kinds are
// local to one request: none of them stop the dispatcher.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for requests rejected before any lock was taken.
	SeverityWarning Severity = iota
	// SeverityError is for requests that failed while holding locks.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Kind classifies a request failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindMalformedRequest
	KindUnknownOperation
	KindUnexpectedPayload
	KindPayloadTooLong
	KindResourceUnavailable
	KindSelfReferentialOperation
)

var kindNames = map[Kind]string{
	KindUnknown:                  "unknown",
	KindMalformedRequest:         "malformed request",
	KindUnknownOperation:         "unknown operation",
	KindUnexpectedPayload:        "unexpected payload",
	KindPayloadTooLong:           "payload too long",
	KindResourceUnavailable:      "resource unavailable",
	KindSelfReferentialOperation: "self-referential operation",
}

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Severity returns how loudly a failure of this kind should be reported.
func (k Kind) Severity() Severity {
	if k == KindResourceUnavailable {
		return SeverityError
	}
	return SeverityWarning
}

// Sentinels, one per kind, matched by errors.Is against any *RequestError.
var (
	ErrMalformedRequest         = New(KindMalformedRequest.String())
	ErrUnknownOperation         = New(KindUnknownOperation.String())
	ErrUnexpectedPayload        = New(KindUnexpectedPayload.String())
	ErrPayloadTooLong           = New(KindPayloadTooLong.String())
	ErrResourceUnavailable      = New(KindResourceUnavailable.String())
	ErrSelfReferentialOperation = New(KindSelfReferentialOperation.String())
)

var kindSentinels = map[Kind]error{
	KindMalformedRequest:         ErrMalformedRequest,
	KindUnknownOperation:         ErrUnknownOperation,
	KindUnexpectedPayload:        ErrUnexpectedPayload,
	KindPayloadTooLong:           ErrPayloadTooLong,
	KindResourceUnavailable:      ErrResourceUnavailable,
	KindSelfReferentialOperation: ErrSelfReferentialOperation,
}

// RequestError is the error reported by a request handler.
//
// Example:
//
//	err := errors.NewRequestError(errors.KindPayloadTooLong, "write a.txt ...").
//		WithTarget("a.txt").
//		WithDetail("62 bytes, limit 50")
//	fmt.Println(err) // "payload too long [target=a.txt]: 62 bytes, limit 50"
type RequestError struct {
	Kind   Kind
	Line   string // Raw command line that produced the error
	Target string // Target identifier, when one was parsed
	Detail string
	cause  error
}

// NewRequestError creates a RequestError of the given kind for line.
func NewRequestError(kind Kind, line string) *RequestError {
	return &RequestError{Kind: kind, Line: line}
}

// WithTarget records the target identifier.
func (e *RequestError) WithTarget(target string) *RequestError {
	e.Target = target
	return e
}

// WithDetail adds a human-readable explanation.
func (e *RequestError) WithDetail(format string, args ...any) *RequestError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithCause records the underlying error.
func (e *RequestError) WithCause(cause error) *RequestError {
	e.cause = cause
	return e
}

// Error formats the error as "<kind> [target=...]: <detail>: <cause>".
func (e *RequestError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Target != "" {
		fmt.Fprintf(&sb, " [target=%s]", e.Target)
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *RequestError) Unwrap() error {
	return e.cause
}

// Is matches the sentinel for e.Kind, or another *RequestError of the same kind.
func (e *RequestError) Is(target error) bool {
	if s, ok := kindSentinels[e.Kind]; ok && target == s {
		return true
	}
	var other *RequestError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// Severity returns the severity of the error's kind.
func (e *RequestError) Severity() Severity {
	return e.Kind.Severity()
}

// KindOf returns the Kind of the first *RequestError in err's chain, or
// KindUnknown if there is none.
func KindOf(err error) Kind {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// SeverityOf returns the severity to report err at. Errors outside the
// taxonomy are treated as SeverityError.
func SeverityOf(err error) Severity {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Severity()
	}
	return SeverityError
}
