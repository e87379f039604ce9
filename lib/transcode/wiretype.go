// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"github.com/apache/thrift/lib/go/thrift"
)

// WireType maps an IDL type name to the Thrift wire type it encodes
// as. Unions and exceptions are structs on the wire and binary is a
// string. Enums appear in schemas as i32.
func WireType(name string) (thrift.TType, error) {
	switch name {
	case "bool":
		return thrift.BOOL, nil
	case "i8":
		return thrift.BYTE, nil
	case "i16":
		return thrift.I16, nil
	case "i32":
		return thrift.I32, nil
	case "i64":
		return thrift.I64, nil
	case "double":
		return thrift.DOUBLE, nil
	case "string", "binary":
		return thrift.STRING, nil
	case "struct", "union", "exception":
		return thrift.STRUCT, nil
	case "map":
		return thrift.MAP, nil
	case "set":
		return thrift.SET, nil
	case "list":
		return thrift.LIST, nil
	}
	return thrift.STOP, newError(KindUnknownType, "unknown type name %q", name)
}

func isInteger(wire thrift.TType) bool {
	switch wire {
	case thrift.BYTE, thrift.I16, thrift.I32, thrift.I64:
		return true
	}
	return false
}
