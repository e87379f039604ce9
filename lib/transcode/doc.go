// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transcode implements a Thrift protocol whose wire format is
// human-readable JSON.
//
// A message on the wire is a single JSON object naming the method and
// carrying exactly one of "arguments", "result" or "exception":
//
//	{"method": "Calculator.calculate", "arguments": {"logid": 1, "w": {"num1": 1, "num2": 2}}}
//	{"method": "calculate", "result": {"success": 3}}
//	{"method": "calculate", "result": {"ouch": {"whatOp": 4, "why": "divide by zero"}}}
//	{"method": "calculate", "exception": {"message": "no such method", "type": 1}}
//
// Field values are keyed by name. Decoding needs the IDL schema (an
// [idl.Store]) to recover field ids and wire types, so the read half
// of [Protocol] works in two phases: ReadMessageBegin decodes the
// whole envelope into a flat queue of [Token] values, and every later
// Read* call pops the next token and checks it has the expected shape.
// Generated Thrift code drives the reads and never sees JSON.
//
// The write half emits the same format by delegating to Thrift's
// simple JSON protocol, so a [Protocol] can serve both ends of a
// connection.
//
// Errors found while assembling arguments are returned from
// ReadMessageBegin. Errors in a reply body are deferred: the reply's
// envelope reads cleanly and the error surfaces at the first
// ReadStructBegin, where generated client code expects decode
// failures. Every schema error is an [*Error] carrying a [Kind] and
// the JSON path of the offending value, wrapped in a Thrift protocol
// exception so that errors.Is and errors.As see through it.
//
// [MultiProtocol] negotiates between this format and the standard
// binary, compact and JSON protocols with a one-byte selector,
// [Copy] converts a message between any two protocols, and
// [NamingProtocol] recovers field names when the source protocol does
// not carry them.
package transcode
