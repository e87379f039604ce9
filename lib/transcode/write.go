// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"context"
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"
)

// The write half needs no schema: structs and maps become objects
// keyed by field name or map key, lists and sets become arrays.

func (p *Protocol) WriteMessageBegin(ctx context.Context, name string, messageType thrift.TMessageType, seqID int32) error {
	var body string
	switch messageType {
	case thrift.CALL, thrift.ONEWAY:
		body = keyArguments
	case thrift.REPLY:
		body = keyResult
	case thrift.EXCEPTION:
		body = keyException
	default:
		return thrift.NewTProtocolExceptionWithType(thrift.INVALID_DATA,
			fmt.Errorf("cannot write message of type %d", messageType))
	}
	if err := p.writer.OutputObjectBegin(); err != nil {
		return err
	}
	if err := p.writer.WriteString(ctx, keyMethod); err != nil {
		return err
	}
	if err := p.writer.WriteString(ctx, name); err != nil {
		return err
	}
	return p.writer.WriteString(ctx, body)
}

func (p *Protocol) WriteMessageEnd(ctx context.Context) error {
	return p.writer.OutputObjectEnd()
}

func (p *Protocol) WriteStructBegin(ctx context.Context, name string) error {
	return p.writer.OutputObjectBegin()
}

func (p *Protocol) WriteStructEnd(ctx context.Context) error {
	return p.writer.OutputObjectEnd()
}

func (p *Protocol) WriteFieldBegin(ctx context.Context, name string, typeID thrift.TType, id int16) error {
	return p.writer.WriteString(ctx, name)
}

func (p *Protocol) WriteFieldEnd(ctx context.Context) error { return nil }

func (p *Protocol) WriteFieldStop(ctx context.Context) error { return nil }

func (p *Protocol) WriteMapBegin(ctx context.Context, keyType thrift.TType, valueType thrift.TType, size int) error {
	return p.writer.OutputObjectBegin()
}

func (p *Protocol) WriteMapEnd(ctx context.Context) error {
	return p.writer.OutputObjectEnd()
}

func (p *Protocol) WriteListBegin(ctx context.Context, elemType thrift.TType, size int) error {
	return p.writer.OutputListBegin()
}

func (p *Protocol) WriteListEnd(ctx context.Context) error {
	return p.writer.OutputListEnd()
}

func (p *Protocol) WriteSetBegin(ctx context.Context, elemType thrift.TType, size int) error {
	return p.writer.OutputListBegin()
}

func (p *Protocol) WriteSetEnd(ctx context.Context) error {
	return p.writer.OutputListEnd()
}

func (p *Protocol) WriteBool(ctx context.Context, value bool) error {
	return p.writer.WriteBool(ctx, value)
}

func (p *Protocol) WriteByte(ctx context.Context, value int8) error {
	return p.writer.WriteByte(ctx, value)
}

func (p *Protocol) WriteI16(ctx context.Context, value int16) error {
	return p.writer.WriteI16(ctx, value)
}

func (p *Protocol) WriteI32(ctx context.Context, value int32) error {
	return p.writer.WriteI32(ctx, value)
}

func (p *Protocol) WriteI64(ctx context.Context, value int64) error {
	return p.writer.WriteI64(ctx, value)
}

func (p *Protocol) WriteDouble(ctx context.Context, value float64) error {
	return p.writer.WriteDouble(ctx, value)
}

func (p *Protocol) WriteString(ctx context.Context, value string) error {
	return p.writer.WriteString(ctx, value)
}

// WriteBinary writes value as a JSON string, the form ReadBinary
// accepts.
func (p *Protocol) WriteBinary(ctx context.Context, value []byte) error {
	return p.writer.WriteString(ctx, string(value))
}

func (p *Protocol) WriteUUID(ctx context.Context, value thrift.Tuuid) error {
	return p.writer.WriteString(ctx, value.String())
}
