// Package sdkerr holds the error kinds surfaced by the SDK facade. Callers branch on the kind with
// errors.Is / errors.As, never on the message text.
package sdkerr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindSDK Kind = iota
	KindPassKey
	KindUserOperation
	KindAerodrome
	KindEncoding
	KindSignatureDecoding
	KindUnsupportedEnvironment
)

func (k Kind) String() string {
	switch k {
	case KindPassKey:
		return "PassKeyError"
	case KindUserOperation:
		return "UserOperationError"
	case KindAerodrome:
		return "AerodromeError"
	case KindEncoding:
		return "EncodingError"
	case KindSignatureDecoding:
		return "SignatureDecodingError"
	case KindUnsupportedEnvironment:
		return "UnsupportedEnvironmentError"
	default:
		return "SDKError"
	}
}

// prefix mirrors the message prefix each kind adds to its message
func (k Kind) prefix() string {
	switch k {
	case KindPassKey:
		return "PassKey error: "
	case KindUserOperation:
		return "User operation error: "
	case KindAerodrome:
		return "Aerodrome error: "
	case KindEncoding:
		return "Encoding error: "
	case KindSignatureDecoding:
		return "Signature decoding error: "
	default:
		return ""
	}
}

// Sentinels usable as errors.Is targets. Every *Error matches ErrSDK plus the sentinel of its own kind.
var (
	ErrSDK                    = &kindSentinel{KindSDK}
	ErrPassKey                = &kindSentinel{KindPassKey}
	ErrUserOperation          = &kindSentinel{KindUserOperation}
	ErrAerodrome              = &kindSentinel{KindAerodrome}
	ErrEncoding               = &kindSentinel{KindEncoding}
	ErrSignatureDecoding      = &kindSentinel{KindSignatureDecoding}
	ErrUnsupportedEnvironment = &kindSentinel{KindUnsupportedEnvironment}
)

type kindSentinel struct {
	kind Kind
}

func (s *kindSentinel) Error() string { return s.kind.String() }

// Error is the concrete error carried across the SDK surface.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.prefix() + e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	s, ok := target.(*kindSentinel)
	if !ok {
		return false
	}
	return s.kind == KindSDK || s.kind == e.Kind
}

// Wrap builds an error of the given kind whose message is "<op>: <cause>". A nil cause
// yields "<op>: Unknown error".
func Wrap(kind Kind, op string, cause error) *Error {
	msg := op + ": Unknown error"
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", op, cause.Error())
	}
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func SDKError(op string, cause error) *Error { return Wrap(KindSDK, op, cause) }

func PassKeyError(op string, cause error) *Error { return Wrap(KindPassKey, op, cause) }

func UserOperationError(op string, cause error) *Error { return Wrap(KindUserOperation, op, cause) }

func AerodromeError(op string, cause error) *Error { return Wrap(KindAerodrome, op, cause) }

func EncodingError(format string, args ...interface{}) *Error {
	return New(KindEncoding, format, args...)
}

func SignatureDecodingError(format string, args ...interface{}) *Error {
	return New(KindSignatureDecoding, format, args...)
}

func UnsupportedEnvironmentError(feature string) *Error {
	return New(KindUnsupportedEnvironment, "%s is not supported in this environment", feature)
}

// KindOf reports the kind of the outermost *Error in err's chain, KindSDK otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSDK
}
