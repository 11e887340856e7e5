// Package common - Error kinds shared by every stage of the detection pipeline.
package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// KindUnknown is an error that did not originate in the pipeline.
	KindUnknown Kind = iota
	// KindImageDecode marks a malformed, zero-size or undecodable source image.
	KindImageDecode
	// KindUnsupportedOutputShape marks output tensors matching no decoding strategy.
	KindUnsupportedOutputShape
	// KindMissingQuantization marks a quantized tensor without scale/zero-point.
	KindMissingQuantization
	// KindInferenceRuntime marks an opaque failure surfaced by the inference runtime.
	KindInferenceRuntime
	// KindInvalidConfig marks a configuration that failed validation.
	KindInvalidConfig
	// KindRequestInFlight marks a second submission for a request still being processed.
	KindRequestInFlight
)

var kindNames = map[Kind]string{
	KindUnknown:                "unknown error",
	KindImageDecode:            "image decode error",
	KindUnsupportedOutputShape: "unsupported output shape",
	KindMissingQuantization:    "missing quantization metadata",
	KindInferenceRuntime:       "inference runtime failure",
	KindInvalidConfig:          "invalid configuration",
	KindRequestInFlight:        "request already in flight",
}

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a typed pipeline error.
//
// Sentinel values (ErrImageDecode, ...) carry only a Kind and match any Error of
// the same Kind through errors.Is.
type Error struct {
	// Kind is the failure class.
	Kind Kind
	// Op names the operation that failed, e.g. "letterbox" or "classify".
	Op string
	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is comparisons.
var (
	ErrImageDecode            = &Error{Kind: KindImageDecode}
	ErrUnsupportedOutputShape = &Error{Kind: KindUnsupportedOutputShape}
	ErrMissingQuantization    = &Error{Kind: KindMissingQuantization}
	ErrInferenceRuntime       = &Error{Kind: KindInferenceRuntime}
	ErrInvalidConfig          = &Error{Kind: KindInvalidConfig}
	ErrRequestInFlight        = &Error{Kind: KindRequestInFlight}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// E builds a typed error of the given kind around err.
//
// Arguments:
//   - kind: The failure class.
//   - op: The operation that failed.
//   - err: The underlying cause (may be nil).
//
// Returns:
//   - error: A *Error.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a typed error whose cause is a formatted message with a stack trace.
func Errorf(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
