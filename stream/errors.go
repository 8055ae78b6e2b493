// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package stream

import (
	"fmt"
)

// Kind classifies a stream failure.
//
// The zero Kind means "no kind": nil errors and errors that did not originate
// in this package report it. Numeric values of the other kinds are not part
// of the API contract.
type Kind int

const (
	// KindNone is reported for nil errors and errors without a Kind.
	KindNone Kind = iota

	// KindInvalidArgs means the caller violated an operation's contract,
	// such as a negative length or an out-of-range seek target.
	KindInvalidArgs

	// KindIOError means a lower-level I/O operation failed.
	KindIOError

	// KindRuntimeError means a resource operation (allocation, close)
	// failed.
	KindRuntimeError

	// KindNotImplemented means the operation is not meaningful for this
	// stream type.
	KindNotImplemented

	// KindLeafProtocol means Peel or Peek was invoked on a leaf stream.
	KindLeafProtocol

	// KindNotSupported means the operation is supported by the stream type
	// in principle, but not by this particular handle. A file source backed
	// by a pipe reports it for every seek and tell.
	KindNotSupported

	// KindProtocolFatal means the framing is structurally invalid and no
	// recovery is possible.
	KindProtocolFatal

	// KindProtocolTryRecovery mirrors the TryRecovery read Status in the
	// error taxonomy. Reads themselves report recovery through their Status;
	// the kind exists for completeness of classification.
	KindProtocolTryRecovery

	// KindProtocolFailedRecovery means a second framing anomaly was found
	// while the decoder was already running in recovery mode.
	KindProtocolFailedRecovery

	// KindUnexpectedEOF means the inner stream ended while the framing
	// still promised more payload bytes.
	KindUnexpectedEOF

	// KindUnhandledException is the escape hatch for unexpected programmer
	// errors surfacing at the public boundary.
	KindUnhandledException
)

// String returns a short stable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidArgs:
		return "invalid-args"
	case KindIOError:
		return "io-error"
	case KindRuntimeError:
		return "runtime-error"
	case KindNotImplemented:
		return "not-implemented"
	case KindLeafProtocol:
		return "leaf-protocol"
	case KindNotSupported:
		return "not-supported"
	case KindProtocolFatal:
		return "protocol-fatal"
	case KindProtocolTryRecovery:
		return "protocol-try-recovery"
	case KindProtocolFailedRecovery:
		return "protocol-failed-recovery"
	case KindUnexpectedEOF:
		return "unexpected-eof"
	case KindUnhandledException:
		return "unhandled-exception"
	default:
		return "unknown"
	}
}

// Error is a stream failure: a Kind plus a human-readable message, and
// optionally the underlying error that caused it.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

// NewError returns an error of kind k with the given message.
func NewError(k Kind, msg string) error {
	return &Error{kind: k, msg: msg}
}

// Errorf returns an error of kind k with a formatted message.
func Errorf(k Kind, format string, args ...interface{}) error {
	return &Error{kind: k, msg: fmt.Sprintf(format, args...)}
}

// WrapError returns an error of kind k whose message prefixes cause's.
func WrapError(k Kind, cause error, msg string) error {
	return &Error{kind: k, msg: msg, cause: cause}
}

// Error implements error.
func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

// Kind returns the error's kind.
func (e *Error) Kind() Kind { return e.kind }

// Cause returns the underlying error, if any. It exists for compatibility
// with github.com/pkg/errors.
func (e *Error) Cause() error { return e.cause }

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the Kind of the first *Error found in err's cause chain,
// unwrapping through github.com/pkg/errors wrappers and the standard library
// convention alike. It returns KindNone for nil and for errors that carry no
// Kind.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.kind
		}

		switch e := err.(type) {
		case interface{ Cause() error }:
			err = e.Cause()
		case interface{ Unwrap() error }:
			err = e.Unwrap()
		default:
			return KindNone
		}
	}
	return KindNone
}
