// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jsonvalue

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Kind is the native JSON type of a Value.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Object
	Array
)

// String returns the JSON name of the kind.
func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Member is one key/value pair of a JSON object.
type Member struct {
	Key   string
	Value Value
}

// Value is a single JSON value. The zero Value is JSON null.
type Value struct {
	kind     Kind
	boolean  bool
	text     string // string contents, or the literal of a number
	members  []Member
	elements []Value
}

// NullValue returns JSON null.
func NullValue() Value { return Value{} }

// BoolValue returns a JSON boolean.
func BoolValue(b bool) Value { return Value{kind: Bool, boolean: b} }

// NumberValue returns a JSON number with the given literal text. The
// literal is not validated; use Parse for untrusted input.
func NumberValue(literal string) Value { return Value{kind: Number, text: literal} }

// StringValue returns a JSON string.
func StringValue(s string) Value { return Value{kind: String, text: s} }

// ObjectValue returns a JSON object with members in the given order.
func ObjectValue(members ...Member) Value { return Value{kind: Object, members: members} }

// ArrayValue returns a JSON array.
func ArrayValue(elements ...Value) Value { return Value{kind: Array, elements: elements} }

// Kind returns the native JSON type of v.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the boolean and true if v is a JSON boolean.
func (v Value) Bool() (bool, bool) {
	return v.boolean, v.kind == Bool
}

// Text returns the contents and true if v is a JSON string.
func (v Value) Text() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.text, true
}

// Number returns the literal and true if v is a JSON number.
func (v Value) Number() (json.Number, bool) {
	if v.kind != Number {
		return "", false
	}
	return json.Number(v.text), true
}

// Int64 interprets a JSON number as a signed 64-bit integer. Integer
// literals are parsed exactly. A literal with a fraction or exponent
// is accepted only when its value is a whole number inside the int64
// range ("1e3", "2.0"); "1.9" and "1e30" are errors. No range check
// against narrower widths is made here.
func (v Value) Int64() (int64, error) {
	if v.kind != Number {
		return 0, fmt.Errorf("expected number, got %s", v.kind)
	}
	n, err := strconv.ParseInt(v.text, 10, 64)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("number %s is out of int64 range", v.text)
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, fmt.Errorf("number %q: %w", v.text, err)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("number %s is not an integer", v.text)
	}
	if f < math.MinInt64 || f >= -math.MinInt64 {
		return 0, fmt.Errorf("number %s is out of int64 range", v.text)
	}
	return int64(f), nil
}

// Float64 interprets a JSON number as a float64.
func (v Value) Float64() (float64, error) {
	if v.kind != Number {
		return 0, fmt.Errorf("expected number, got %s", v.kind)
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, fmt.Errorf("number %q: %w", v.text, err)
	}
	return f, nil
}

// Members returns the members of a JSON object in document order, or
// nil for any other kind. The returned slice must not be modified.
func (v Value) Members() []Member {
	if v.kind != Object {
		return nil
	}
	return v.members
}

// Elements returns the elements of a JSON array, or nil for any other
// kind. The returned slice must not be modified.
func (v Value) Elements() []Value {
	if v.kind != Array {
		return nil
	}
	return v.elements
}

// Len returns the member count of an object, the element count of an
// array, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case Object:
		return len(v.members)
	case Array:
		return len(v.elements)
	default:
		return 0
	}
}

// Lookup returns the value of the first member named key. It reports
// false if v is not an object or has no such member.
func (v Value) Lookup(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	for _, member := range v.members {
		if member.Key == key {
			return member.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether v is an object with a member named key.
func (v Value) Has(key string) bool {
	_, ok := v.Lookup(key)
	return ok
}

// MarshalJSON encodes v back to compact JSON, preserving member order
// and number literals.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil)
}

func (v Value) appendJSON(buffer []byte) ([]byte, error) {
	switch v.kind {
	case Null:
		return append(buffer, "null"...), nil
	case Bool:
		return strconv.AppendBool(buffer, v.boolean), nil
	case Number:
		return append(buffer, v.text...), nil
	case String:
		encoded, err := json.Marshal(v.text)
		if err != nil {
			return nil, err
		}
		return append(buffer, encoded...), nil
	case Object:
		buffer = append(buffer, '{')
		for index, member := range v.members {
			if index > 0 {
				buffer = append(buffer, ',')
			}
			key, err := json.Marshal(member.Key)
			if err != nil {
				return nil, err
			}
			buffer = append(buffer, key...)
			buffer = append(buffer, ':')
			if buffer, err = member.Value.appendJSON(buffer); err != nil {
				return nil, err
			}
		}
		return append(buffer, '}'), nil
	case Array:
		buffer = append(buffer, '[')
		for index, element := range v.elements {
			if index > 0 {
				buffer = append(buffer, ',')
			}
			var err error
			if buffer, err = element.appendJSON(buffer); err != nil {
				return nil, err
			}
		}
		return append(buffer, ']'), nil
	default:
		return nil, fmt.Errorf("jsonvalue: cannot encode %s", v.kind)
	}
}
