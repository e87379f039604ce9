// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"context"
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"
)

// Copy reads one message from src and writes it to dst, driving both
// protocols with the type tags src reports. It flushes dst and returns
// the message header it copied.
func Copy(ctx context.Context, dst, src thrift.TProtocol) (name string, messageType thrift.TMessageType, err error) {
	name, messageType, seqID, err := src.ReadMessageBegin(ctx)
	if err != nil {
		return name, messageType, err
	}
	if err := dst.WriteMessageBegin(ctx, name, messageType, seqID); err != nil {
		return name, messageType, err
	}
	if err := CopyStruct(ctx, dst, src); err != nil {
		return name, messageType, err
	}
	if err := src.ReadMessageEnd(ctx); err != nil {
		return name, messageType, err
	}
	if err := dst.WriteMessageEnd(ctx); err != nil {
		return name, messageType, err
	}
	return name, messageType, dst.Flush(ctx)
}

// CopyStruct copies one struct from src to dst.
func CopyStruct(ctx context.Context, dst, src thrift.TProtocol) error {
	return copyStruct(ctx, dst, src, thrift.DEFAULT_RECURSION_DEPTH)
}

func copyStruct(ctx context.Context, dst, src thrift.TProtocol, depth int) error {
	if depth <= 0 {
		return thrift.NewTProtocolExceptionWithType(thrift.DEPTH_LIMIT,
			fmt.Errorf("copy exceeds %d levels", thrift.DEFAULT_RECURSION_DEPTH))
	}
	name, err := src.ReadStructBegin(ctx)
	if err != nil {
		return err
	}
	if err := dst.WriteStructBegin(ctx, name); err != nil {
		return err
	}
	for {
		fieldName, fieldType, id, err := src.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if fieldType == thrift.STOP {
			break
		}
		if err := dst.WriteFieldBegin(ctx, fieldName, fieldType, id); err != nil {
			return err
		}
		if err := copyValue(ctx, dst, src, fieldType, depth-1); err != nil {
			return fmt.Errorf("field %q (%d): %w", fieldName, id, err)
		}
		if err := src.ReadFieldEnd(ctx); err != nil {
			return err
		}
		if err := dst.WriteFieldEnd(ctx); err != nil {
			return err
		}
	}
	if err := dst.WriteFieldStop(ctx); err != nil {
		return err
	}
	if err := src.ReadStructEnd(ctx); err != nil {
		return err
	}
	return dst.WriteStructEnd(ctx)
}

func copyValue(ctx context.Context, dst, src thrift.TProtocol, valueType thrift.TType, depth int) error {
	if depth <= 0 {
		return thrift.NewTProtocolExceptionWithType(thrift.DEPTH_LIMIT,
			fmt.Errorf("copy exceeds %d levels", thrift.DEFAULT_RECURSION_DEPTH))
	}
	switch valueType {
	case thrift.BOOL:
		value, err := src.ReadBool(ctx)
		if err != nil {
			return err
		}
		return dst.WriteBool(ctx, value)
	case thrift.BYTE:
		value, err := src.ReadByte(ctx)
		if err != nil {
			return err
		}
		return dst.WriteByte(ctx, value)
	case thrift.I16:
		value, err := src.ReadI16(ctx)
		if err != nil {
			return err
		}
		return dst.WriteI16(ctx, value)
	case thrift.I32:
		value, err := src.ReadI32(ctx)
		if err != nil {
			return err
		}
		return dst.WriteI32(ctx, value)
	case thrift.I64:
		value, err := src.ReadI64(ctx)
		if err != nil {
			return err
		}
		return dst.WriteI64(ctx, value)
	case thrift.DOUBLE:
		value, err := src.ReadDouble(ctx)
		if err != nil {
			return err
		}
		return dst.WriteDouble(ctx, value)
	case thrift.STRING:
		value, err := src.ReadString(ctx)
		if err != nil {
			return err
		}
		return dst.WriteString(ctx, value)
	case thrift.UUID:
		value, err := src.ReadUUID(ctx)
		if err != nil {
			return err
		}
		return dst.WriteUUID(ctx, value)
	case thrift.STRUCT:
		return copyStruct(ctx, dst, src, depth)
	case thrift.MAP:
		keyType, elemType, size, err := src.ReadMapBegin(ctx)
		if err != nil {
			return err
		}
		if err := dst.WriteMapBegin(ctx, keyType, elemType, size); err != nil {
			return err
		}
		for range size {
			if err := copyValue(ctx, dst, src, keyType, depth-1); err != nil {
				return err
			}
			if err := copyValue(ctx, dst, src, elemType, depth-1); err != nil {
				return err
			}
		}
		if err := src.ReadMapEnd(ctx); err != nil {
			return err
		}
		return dst.WriteMapEnd(ctx)
	case thrift.LIST:
		elemType, size, err := src.ReadListBegin(ctx)
		if err != nil {
			return err
		}
		if err := dst.WriteListBegin(ctx, elemType, size); err != nil {
			return err
		}
		for range size {
			if err := copyValue(ctx, dst, src, elemType, depth-1); err != nil {
				return err
			}
		}
		if err := src.ReadListEnd(ctx); err != nil {
			return err
		}
		return dst.WriteListEnd(ctx)
	case thrift.SET:
		elemType, size, err := src.ReadSetBegin(ctx)
		if err != nil {
			return err
		}
		if err := dst.WriteSetBegin(ctx, elemType, size); err != nil {
			return err
		}
		for range size {
			if err := copyValue(ctx, dst, src, elemType, depth-1); err != nil {
				return err
			}
		}
		if err := src.ReadSetEnd(ctx); err != nil {
			return err
		}
		return dst.WriteSetEnd(ctx)
	}
	return thrift.NewTProtocolExceptionWithType(thrift.INVALID_DATA,
		fmt.Errorf("cannot copy value of type %s", valueType))
}
