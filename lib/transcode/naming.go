// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"context"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/bureau-foundation/humanthrift/lib/idl"
)

// applicationException is the shape of a TApplicationException body.
var applicationException = mustStruct("TApplicationException",
	idl.Field{Name: "message", Key: 1, Type: &idl.Type{Name: "string"}},
	idl.Field{Name: "type", Key: 2, Type: &idl.Type{Name: "i32"}},
)

func mustStruct(name string, fields ...idl.Field) *idl.Struct {
	definition, err := idl.NewStruct(name, fields...)
	if err != nil {
		panic("transcode: " + err.Error())
	}
	return definition
}

// NamingProtocol wraps a protocol whose field headers carry ids but no
// names, such as binary or compact, and fills the names in from the
// schema. Fields the schema does not know keep an empty name. Writes
// pass through to the wrapped protocol.
type NamingProtocol struct {
	thrift.TProtocol

	store   *idl.Store
	service string

	root   *idl.Struct
	frames []namingFrame
}

type frameKind uint8

const (
	frameStruct frameKind = iota
	frameList
	frameMap
)

// namingFrame tracks the type of the next value inside one struct or
// container.
type namingFrame struct {
	kind frameKind

	definition *idl.Struct
	field      *idl.Type

	elem    *idl.Type
	key     *idl.Type
	value   *idl.Type
	readKey bool
}

// NewNamingProtocol wraps inner. Method names resolve against service,
// which may be program-qualified ("tutorial.Calculator") or bare as in
// Config.Service.
func NewNamingProtocol(inner thrift.TProtocol, store *idl.Store, service string) *NamingProtocol {
	return &NamingProtocol{TProtocol: inner, store: store, service: service}
}

func (p *NamingProtocol) ReadMessageBegin(ctx context.Context) (name string, messageType thrift.TMessageType, seqID int32, err error) {
	name, messageType, seqID, err = p.TProtocol.ReadMessageBegin(ctx)
	if err != nil {
		return name, messageType, seqID, err
	}
	p.frames = p.frames[:0]
	p.root = nil

	if messageType == thrift.EXCEPTION {
		p.root = applicationException
		return name, messageType, seqID, nil
	}
	function, ok := lookupFunction(p.store, p.service, name)
	if !ok {
		return name, messageType, seqID, nil
	}
	switch messageType {
	case thrift.CALL, thrift.ONEWAY:
		p.root = function.Args()
	case thrift.REPLY:
		p.root = function.Result()
	}
	return name, messageType, seqID, nil
}

// nextType returns the declared type of the value about to be read,
// or nil when it is unknown.
func (p *NamingProtocol) nextType() *idl.Type {
	if len(p.frames) == 0 {
		return nil
	}
	frame := &p.frames[len(p.frames)-1]
	switch frame.kind {
	case frameStruct:
		return frame.field
	case frameList:
		return frame.elem
	}
	frame.readKey = !frame.readKey
	if frame.readKey {
		return frame.key
	}
	return frame.value
}

func (p *NamingProtocol) ReadStructBegin(ctx context.Context) (name string, err error) {
	var definition *idl.Struct
	if len(p.frames) == 0 {
		definition, p.root = p.root, nil
	} else if t := p.nextType(); t != nil && t.Class != "" {
		definition, _ = p.store.Struct(t.Class)
	}
	name, err = p.TProtocol.ReadStructBegin(ctx)
	if err != nil {
		return name, err
	}
	if name == "" && definition != nil {
		name = definition.Name
	}
	p.frames = append(p.frames, namingFrame{kind: frameStruct, definition: definition})
	return name, nil
}

func (p *NamingProtocol) ReadStructEnd(ctx context.Context) error {
	p.popFrame()
	return p.TProtocol.ReadStructEnd(ctx)
}

func (p *NamingProtocol) popFrame() {
	if len(p.frames) > 0 {
		p.frames = p.frames[:len(p.frames)-1]
	}
}

func (p *NamingProtocol) ReadFieldBegin(ctx context.Context) (name string, fieldType thrift.TType, id int16, err error) {
	name, fieldType, id, err = p.TProtocol.ReadFieldBegin(ctx)
	if err != nil || fieldType == thrift.STOP || len(p.frames) == 0 {
		return name, fieldType, id, err
	}
	frame := &p.frames[len(p.frames)-1]
	frame.field = nil
	if frame.definition == nil {
		return name, fieldType, id, nil
	}
	if field, ok := frame.definition.FieldByID(id); ok {
		frame.field = field.Type
		if name == "" {
			name = field.Name
		}
	}
	return name, fieldType, id, nil
}

func (p *NamingProtocol) ReadMapBegin(ctx context.Context) (keyType thrift.TType, valueType thrift.TType, size int, err error) {
	frame := namingFrame{kind: frameMap}
	if t := p.nextType(); t != nil {
		frame.key, frame.value = t.Key, t.Value
	}
	p.frames = append(p.frames, frame)
	return p.TProtocol.ReadMapBegin(ctx)
}

func (p *NamingProtocol) ReadMapEnd(ctx context.Context) error {
	p.popFrame()
	return p.TProtocol.ReadMapEnd(ctx)
}

func (p *NamingProtocol) ReadListBegin(ctx context.Context) (elemType thrift.TType, size int, err error) {
	p.pushElements()
	return p.TProtocol.ReadListBegin(ctx)
}

func (p *NamingProtocol) ReadListEnd(ctx context.Context) error {
	p.popFrame()
	return p.TProtocol.ReadListEnd(ctx)
}

func (p *NamingProtocol) ReadSetBegin(ctx context.Context) (elemType thrift.TType, size int, err error) {
	p.pushElements()
	return p.TProtocol.ReadSetBegin(ctx)
}

func (p *NamingProtocol) ReadSetEnd(ctx context.Context) error {
	p.popFrame()
	return p.TProtocol.ReadSetEnd(ctx)
}

func (p *NamingProtocol) pushElements() {
	frame := namingFrame{kind: frameList}
	if t := p.nextType(); t != nil {
		frame.elem = t.Elem
	}
	p.frames = append(p.frames, frame)
}

// Scalar reads advance the map key/value alternation.

func (p *NamingProtocol) ReadBool(ctx context.Context) (bool, error) {
	p.nextType()
	return p.TProtocol.ReadBool(ctx)
}

func (p *NamingProtocol) ReadByte(ctx context.Context) (int8, error) {
	p.nextType()
	return p.TProtocol.ReadByte(ctx)
}

func (p *NamingProtocol) ReadI16(ctx context.Context) (int16, error) {
	p.nextType()
	return p.TProtocol.ReadI16(ctx)
}

func (p *NamingProtocol) ReadI32(ctx context.Context) (int32, error) {
	p.nextType()
	return p.TProtocol.ReadI32(ctx)
}

func (p *NamingProtocol) ReadI64(ctx context.Context) (int64, error) {
	p.nextType()
	return p.TProtocol.ReadI64(ctx)
}

func (p *NamingProtocol) ReadDouble(ctx context.Context) (float64, error) {
	p.nextType()
	return p.TProtocol.ReadDouble(ctx)
}

func (p *NamingProtocol) ReadString(ctx context.Context) (string, error) {
	p.nextType()
	return p.TProtocol.ReadString(ctx)
}

func (p *NamingProtocol) ReadBinary(ctx context.Context) ([]byte, error) {
	p.nextType()
	return p.TProtocol.ReadBinary(ctx)
}

func (p *NamingProtocol) ReadUUID(ctx context.Context) (thrift.Tuuid, error) {
	p.nextType()
	return p.TProtocol.ReadUUID(ctx)
}

func (p *NamingProtocol) Skip(ctx context.Context, fieldType thrift.TType) error {
	return thrift.SkipDefaultDepth(ctx, p, fieldType)
}
