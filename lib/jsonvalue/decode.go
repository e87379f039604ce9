// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxNesting bounds the depth of objects and arrays a Decoder accepts.
const maxNesting = 512

// ErrTooDeep reports a document nested deeper than the decoder accepts.
var ErrTooDeep = errors.New("json nesting too deep")

// Decoder reads successive JSON values from a stream. Values may be
// separated by any amount of JSON whitespace.
type Decoder struct {
	decoder *json.Decoder
}

// NewDecoder returns a Decoder reading from r. The Decoder may read
// past the end of a value, so r must not be shared with other readers.
func NewDecoder(r io.Reader) *Decoder {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	return &Decoder{decoder: decoder}
}

// Decode reads the next complete value. It returns io.EOF, unwrapped,
// when the stream ends cleanly before a value starts.
func (d *Decoder) Decode() (Value, error) {
	token, err := d.decoder.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.EOF
		}
		return Value{}, err
	}
	return d.value(token, 0)
}

func (d *Decoder) value(token json.Token, depth int) (Value, error) {
	switch typed := token.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(typed), nil
	case json.Number:
		return NumberValue(string(typed)), nil
	case string:
		return StringValue(typed), nil
	case json.Delim:
		if depth >= maxNesting {
			return Value{}, fmt.Errorf("%w: more than %d levels", ErrTooDeep, maxNesting)
		}
		switch typed {
		case '{':
			return d.object(depth + 1)
		case '[':
			return d.array(depth + 1)
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", rune(typed))
	default:
		return Value{}, fmt.Errorf("unexpected json token %T", token)
	}
}

func (d *Decoder) object(depth int) (Value, error) {
	var members []Member
	for d.decoder.More() {
		keyToken, err := d.nextToken()
		if err != nil {
			return Value{}, err
		}
		key, ok := keyToken.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key is %T, not a string", keyToken)
		}
		valueToken, err := d.nextToken()
		if err != nil {
			return Value{}, err
		}
		member, err := d.value(valueToken, depth)
		if err != nil {
			return Value{}, fmt.Errorf("member %q: %w", key, err)
		}
		members = append(members, Member{Key: key, Value: member})
	}
	if _, err := d.nextToken(); err != nil { // closing '}'
		return Value{}, err
	}
	return ObjectValue(members...), nil
}

func (d *Decoder) array(depth int) (Value, error) {
	var elements []Value
	for d.decoder.More() {
		token, err := d.nextToken()
		if err != nil {
			return Value{}, err
		}
		element, err := d.value(token, depth)
		if err != nil {
			return Value{}, fmt.Errorf("element %d: %w", len(elements), err)
		}
		elements = append(elements, element)
	}
	if _, err := d.nextToken(); err != nil { // closing ']'
		return Value{}, err
	}
	return ArrayValue(elements...), nil
}

// nextToken reads a token inside a container, where EOF is always a
// truncation rather than a clean end of stream.
func (d *Decoder) nextToken() (json.Token, error) {
	token, err := d.decoder.Token()
	if errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}
	return token, err
}

// Parse parses data as exactly one JSON value. Leading and trailing
// whitespace is allowed; anything else after the value is an error.
func Parse(data []byte) (Value, error) {
	decoder := NewDecoder(bytes.NewReader(data))
	value, err := decoder.Decode()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, errors.New("empty json input")
		}
		return Value{}, err
	}
	if _, err := decoder.decoder.Token(); !errors.Is(err, io.EOF) {
		return Value{}, errors.New("unexpected data after json value")
	}
	return value, nil
}
