// Package errs provides structured error types and helpers for the codec core.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a codec error category.
type Code string

const (
	// CodeInvalidState indicates the operation is illegal for the current codec state.
	CodeInvalidState Code = "invalid_state"
	// CodeNotSupported indicates the engine rejected the requested configuration.
	CodeNotSupported Code = "not_supported"
	// CodeData indicates a key-chunk protocol violation in the submitted payload.
	CodeData Code = "data_error"
	// CodeEncoding indicates a fatal engine failure during processing.
	CodeEncoding Code = "encoding_error"
	// CodeAbort indicates user-initiated cancellation via reset or close.
	CodeAbort Code = "abort"
	// CodeQuotaExceeded indicates the instance was reclaimed under resource pressure.
	CodeQuotaExceeded Code = "quota_exceeded"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeUnavailable indicates a transient condition worth retrying.
	CodeUnavailable Code = "unavailable"
)

// E captures structured error information produced across the codec core.
type E struct {
	Op      string
	Code    Code
	Message string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the operation and error code.
func New(op string, code Code, opts ...Option) *E {
	e := &E{
		Op:      strings.TrimSpace(op),
		Code:    code,
		Message: "",
		cause:   nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	op := strings.TrimSpace(e.Op)
	if op == "" {
		op = "unknown"
	}
	parts = append(parts, "op="+op)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// Is reports whether target carries the same error code, enabling errors.Is
// comparisons against sentinel envelopes.
func (e *E) Is(target error) bool {
	var other *E
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// CodeOf extracts the error code from err, or an empty code when err does not
// carry an envelope.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// InvalidState returns a standardized error for operations attempted in an
// illegal codec state.
func InvalidState(op, msg string) *E {
	return New(op, CodeInvalidState, WithMessage(msg))
}

// NotSupported returns a standardized error for configurations rejected by the engine.
func NotSupported(op, msg string) *E {
	return New(op, CodeNotSupported, WithMessage(msg))
}
