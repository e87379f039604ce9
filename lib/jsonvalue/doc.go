// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsonvalue is an ordered, tagged-union model of a JSON
// document.
//
// The transcoder needs two things encoding/json's generic decoding
// (map[string]any) does not give it: object members in document order,
// because struct fields are replayed to the consumer in the order the
// sender wrote them, and number literals kept verbatim, because an i64
// field must not round-trip through float64.
//
// A [Value] is immutable once built. [Parse] reads exactly one value
// from a byte slice; a [Decoder] reads successive values from a stream
// and is meant to live as long as the connection it reads from, since
// it buffers ahead of the value it returns.
package jsonvalue
