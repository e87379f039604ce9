// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apache/thrift/lib/go/thrift"
)

// Kind classifies decode failures.
type Kind uint8

const (
	// KindSchemaNotFound: a referenced struct or service is not in the
	// schema store.
	KindSchemaNotFound Kind = iota + 1

	// KindUnknownType: a type descriptor names no known wire type or
	// lacks its key, value or element descriptor.
	KindUnknownType

	// KindTypeMismatch: a JSON value does not have the shape its
	// declared type requires.
	KindTypeMismatch

	// KindUnknownField: an object key names no field of its struct.
	KindUnknownField

	// KindInvalidEnvelope: the message object does not carry exactly
	// one of arguments, result or exception, or one of them is
	// malformed.
	KindInvalidEnvelope

	// KindInvalidResult: a result object is neither a success value
	// nor a single declared exception.
	KindInvalidResult

	// KindProtocolViolation: the caller asked for a token the queue
	// does not hold next.
	KindProtocolViolation

	// KindMalformed: the input is not valid JSON.
	KindMalformed

	// KindDepthLimit: the input nests deeper than the configured limit.
	KindDepthLimit
)

var kindNames = [...]string{
	KindSchemaNotFound:    "schema not found",
	KindUnknownType:       "unknown type",
	KindTypeMismatch:      "type mismatch",
	KindUnknownField:      "unknown field",
	KindInvalidEnvelope:   "invalid envelope",
	KindInvalidResult:     "invalid result",
	KindProtocolViolation: "protocol violation",
	KindMalformed:         "malformed json",
	KindDepthLimit:        "depth limit exceeded",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is a decode failure. Path locates the offending value in the
// message ("arguments.w.tags[\"a\"][2]"); it is empty for failures
// that concern the message as a whole.
type Error struct {
	Kind    Kind
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var builder strings.Builder
	builder.WriteString(e.Kind.String())
	if e.Path != "" {
		builder.WriteString(" at ")
		builder.WriteString(e.Path)
	}
	if e.Message != "" {
		builder.WriteString(": ")
		builder.WriteString(e.Message)
	}
	if e.Err != nil {
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}
	return builder.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the Err* sentinels by kind, so that
// errors.Is(err, transcode.ErrUnknownField) holds for any unknown
// field error regardless of its path.
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*Error)
	if !ok {
		return false
	}
	return sentinel.Path == "" && sentinel.Message == "" && sentinel.Err == nil &&
		sentinel.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrSchemaNotFound    = &Error{Kind: KindSchemaNotFound}
	ErrUnknownType       = &Error{Kind: KindUnknownType}
	ErrTypeMismatch      = &Error{Kind: KindTypeMismatch}
	ErrUnknownField      = &Error{Kind: KindUnknownField}
	ErrInvalidEnvelope   = &Error{Kind: KindInvalidEnvelope}
	ErrInvalidResult     = &Error{Kind: KindInvalidResult}
	ErrProtocolViolation = &Error{Kind: KindProtocolViolation}
	ErrMalformed         = &Error{Kind: KindMalformed}
	ErrDepthLimit        = &Error{Kind: KindDepthLimit}
)

// KindOf returns the Kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var decodeError *Error
	if errors.As(err, &decodeError) {
		return decodeError.Kind
	}
	return 0
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// protocolError wraps a decode failure in the Thrift exception type
// generated code expects from a protocol.
func protocolError(err error) error {
	if err == nil {
		return nil
	}
	exceptionType := thrift.INVALID_DATA
	if KindOf(err) == KindDepthLimit {
		exceptionType = thrift.DEPTH_LIMIT
	}
	return thrift.NewTProtocolExceptionWithType(exceptionType, err)
}
