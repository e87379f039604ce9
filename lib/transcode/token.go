// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"fmt"
	"strconv"

	"github.com/apache/thrift/lib/go/thrift"
)

// TokenKind identifies the shape of a Token.
type TokenKind uint8

const (
	// TokenFieldHeader starts a struct field: Name, ID and Type are set.
	TokenFieldHeader TokenKind = iota + 1

	// TokenStructStop ends a struct.
	TokenStructStop

	// TokenContainer starts a map, list or set of Size entries.
	// Container is the collection's wire type; Type is the element
	// type, or the key type for maps, whose value type is ValueType.
	TokenContainer

	// TokenScalar carries one primitive value in Scalar.
	TokenScalar
)

func (k TokenKind) String() string {
	switch k {
	case TokenFieldHeader:
		return "field"
	case TokenStructStop:
		return "stop"
	case TokenContainer:
		return "container"
	case TokenScalar:
		return "scalar"
	}
	return fmt.Sprintf("token(%d)", uint8(k))
}

// Token is one unit of decoded structure, in the order a binary
// protocol reader would encounter it.
type Token struct {
	Kind TokenKind

	Name string
	ID   int16
	Type thrift.TType

	Container thrift.TType
	ValueType thrift.TType
	Size      int

	Scalar Scalar
}

// Scalar is a primitive value. Type is the declared wire type and
// selects which of the other fields holds the value: Bool for BOOL,
// Int for BYTE, I16, I32 and I64, Double for DOUBLE, Text for STRING.
// Integers are kept at full width and narrowed when read.
type Scalar struct {
	Type   thrift.TType
	Bool   bool
	Int    int64
	Double float64
	Text   string
}

func (s Scalar) String() string {
	switch {
	case s.Type == thrift.BOOL:
		return strconv.FormatBool(s.Bool)
	case isInteger(s.Type):
		return strconv.FormatInt(s.Int, 10)
	case s.Type == thrift.DOUBLE:
		return strconv.FormatFloat(s.Double, 'g', -1, 64)
	default:
		return strconv.Quote(s.Text)
	}
}

// String renders the token for traces:
//
//	field w:STRUCT #2
//	stop
//	map<STRING,LIST>[3]
//	I32 5
func (t Token) String() string {
	switch t.Kind {
	case TokenFieldHeader:
		return fmt.Sprintf("field %s:%s #%d", t.Name, t.Type, t.ID)
	case TokenStructStop:
		return "stop"
	case TokenContainer:
		if t.Container == thrift.MAP {
			return fmt.Sprintf("map<%s,%s>[%d]", t.Type, t.ValueType, t.Size)
		}
		return fmt.Sprintf("%s<%s>[%d]", containerName(t.Container), t.Type, t.Size)
	case TokenScalar:
		return t.Scalar.Type.String() + " " + t.Scalar.String()
	}
	return t.Kind.String()
}

func containerName(wire thrift.TType) string {
	switch wire {
	case thrift.MAP:
		return "map"
	case thrift.SET:
		return "set"
	case thrift.LIST:
		return "list"
	}
	return wire.String()
}

func fieldHeader(name string, wire thrift.TType, id int16) Token {
	return Token{Kind: TokenFieldHeader, Name: name, Type: wire, ID: id}
}

func structStop() Token { return Token{Kind: TokenStructStop} }

func scalarToken(scalar Scalar) Token { return Token{Kind: TokenScalar, Scalar: scalar} }
