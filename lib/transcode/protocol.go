// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/bureau-foundation/humanthrift/lib/jsonvalue"
)

// Protocol is a thrift.TProtocol over human-readable JSON. Reads are
// served from the token queue assembled at ReadMessageBegin; writes go
// straight to a simple JSON writer. A Protocol belongs to one
// transport and is not safe for concurrent use.
type Protocol struct {
	assembler *Assembler
	trans     thrift.TTransport
	writer    *thrift.TSimpleJSONProtocol
	decoder   *jsonvalue.Decoder
	logger    *slog.Logger
	trace     bool

	// class is the struct read by the outermost ReadStructBegin in
	// struct mode; empty for message framing.
	class string

	tokens   []Token
	next     int
	deferred error
	depth    int
	service  string
}

// NewProtocol returns a message-framed Protocol on trans.
func (a *Assembler) NewProtocol(trans thrift.TTransport) *Protocol {
	return &Protocol{
		assembler: a,
		trans:     trans,
		writer:    thrift.NewTSimpleJSONProtocol(trans),
		logger:    a.logger,
		trace:     a.logger.Enabled(context.Background(), slog.LevelDebug),
	}
}

var _ thrift.TProtocol = (*Protocol)(nil)

// readValue decodes the next JSON document from the transport. A clean
// end of stream is a transport EOF so that servers close the
// connection quietly.
func (p *Protocol) readValue() (jsonvalue.Value, error) {
	if p.decoder == nil {
		p.decoder = jsonvalue.NewDecoder(p.trans)
	}
	value, err := p.decoder.Decode()
	if err == nil {
		return value, nil
	}
	if errors.Is(err, io.EOF) {
		return jsonvalue.Value{}, thrift.NewTTransportExceptionFromError(io.EOF)
	}
	var syntaxError *json.SyntaxError
	if errors.As(err, &syntaxError) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, jsonvalue.ErrTooDeep) {
		return jsonvalue.Value{}, protocolError(&Error{Kind: KindMalformed, Err: err})
	}
	return jsonvalue.Value{}, thrift.NewTTransportExceptionFromError(err)
}

func (p *Protocol) reset() {
	p.tokens = p.tokens[:0]
	p.next = 0
	p.deferred = nil
	p.depth = 0
}

// pop returns the next token. call names the TProtocol method asking,
// for diagnostics.
func (p *Protocol) pop(call string) (Token, error) {
	if p.next >= len(p.tokens) {
		return Token{}, protocolError(newError(KindProtocolViolation, "%s with no tokens left", call))
	}
	token := p.tokens[p.next]
	p.next++
	if p.trace {
		p.logger.Debug("token consumed",
			"call", call,
			"token", token.String(),
			"depth", p.depth,
			"remaining", len(p.tokens)-p.next,
		)
	}
	return token, nil
}

func unexpected(call string, token Token) error {
	return protocolError(newError(KindProtocolViolation, "%s found %s", call, token))
}

func (p *Protocol) ReadMessageBegin(ctx context.Context) (name string, messageType thrift.TMessageType, seqID int32, err error) {
	p.reset()
	envelope, err := p.readValue()
	if err != nil {
		return "", thrift.INVALID_TMESSAGE_TYPE, 0, err
	}
	message, err := p.assembler.assemble(envelope, p.tokens)
	if err != nil {
		p.logger.Debug("message rejected", "method", message.Name, "error", err)
		return message.Name, thrift.INVALID_TMESSAGE_TYPE, 0, protocolError(err)
	}
	p.tokens = message.Tokens
	p.deferred = message.Deferred
	p.service = message.Service
	return message.Name, message.Type, message.SeqID, nil
}

// Service returns the service the last message read resolved its
// method against.
func (p *Protocol) Service() string { return p.service }

func (p *Protocol) ReadMessageEnd(ctx context.Context) error {
	if remaining := len(p.tokens) - p.next; remaining > 0 {
		p.logger.Debug("message ended with unread tokens", "remaining", remaining)
	}
	p.reset()
	return nil
}

func (p *Protocol) ReadStructBegin(ctx context.Context) (name string, err error) {
	if p.class != "" && p.depth == 0 {
		if err := p.loadStruct(); err != nil {
			return "", err
		}
	}
	if p.deferred != nil {
		err := p.deferred
		p.deferred = nil
		return "", protocolError(err)
	}
	p.depth++
	return "", nil
}

func (p *Protocol) ReadStructEnd(ctx context.Context) error {
	p.depth--
	return nil
}

func (p *Protocol) ReadFieldBegin(ctx context.Context) (name string, fieldType thrift.TType, id int16, err error) {
	token, err := p.pop("ReadFieldBegin")
	if err != nil {
		return "", thrift.STOP, 0, err
	}
	switch token.Kind {
	case TokenStructStop:
		return "", thrift.STOP, 0, nil
	case TokenFieldHeader:
		return token.Name, token.Type, token.ID, nil
	}
	return "", thrift.STOP, 0, unexpected("ReadFieldBegin", token)
}

func (p *Protocol) ReadFieldEnd(ctx context.Context) error { return nil }

func (p *Protocol) container(call string, kind thrift.TType) (Token, error) {
	token, err := p.pop(call)
	if err != nil {
		return Token{}, err
	}
	if token.Kind != TokenContainer || token.Container != kind {
		return Token{}, unexpected(call, token)
	}
	p.depth++
	return token, nil
}

func (p *Protocol) ReadMapBegin(ctx context.Context) (keyType thrift.TType, valueType thrift.TType, size int, err error) {
	token, err := p.container("ReadMapBegin", thrift.MAP)
	if err != nil {
		return thrift.STOP, thrift.STOP, 0, err
	}
	return token.Type, token.ValueType, token.Size, nil
}

func (p *Protocol) ReadMapEnd(ctx context.Context) error {
	p.depth--
	return nil
}

func (p *Protocol) ReadListBegin(ctx context.Context) (elemType thrift.TType, size int, err error) {
	token, err := p.container("ReadListBegin", thrift.LIST)
	if err != nil {
		return thrift.STOP, 0, err
	}
	return token.Type, token.Size, nil
}

func (p *Protocol) ReadListEnd(ctx context.Context) error {
	p.depth--
	return nil
}

func (p *Protocol) ReadSetBegin(ctx context.Context) (elemType thrift.TType, size int, err error) {
	token, err := p.container("ReadSetBegin", thrift.SET)
	if err != nil {
		return thrift.STOP, 0, err
	}
	return token.Type, token.Size, nil
}

func (p *Protocol) ReadSetEnd(ctx context.Context) error {
	p.depth--
	return nil
}

// scalar pops a scalar token and checks its class.
func (p *Protocol) scalar(call string, accept func(thrift.TType) bool) (Scalar, error) {
	token, err := p.pop(call)
	if err != nil {
		return Scalar{}, err
	}
	if token.Kind != TokenScalar || !accept(token.Scalar.Type) {
		return Scalar{}, unexpected(call, token)
	}
	return token.Scalar, nil
}

func is(wire thrift.TType) func(thrift.TType) bool {
	return func(t thrift.TType) bool { return t == wire }
}

func (p *Protocol) ReadBool(ctx context.Context) (value bool, err error) {
	scalar, err := p.scalar("ReadBool", is(thrift.BOOL))
	return scalar.Bool, err
}

func (p *Protocol) ReadByte(ctx context.Context) (value int8, err error) {
	scalar, err := p.scalar("ReadByte", isInteger)
	return int8(scalar.Int), err
}

func (p *Protocol) ReadI16(ctx context.Context) (value int16, err error) {
	scalar, err := p.scalar("ReadI16", isInteger)
	return int16(scalar.Int), err
}

func (p *Protocol) ReadI32(ctx context.Context) (value int32, err error) {
	scalar, err := p.scalar("ReadI32", isInteger)
	return int32(scalar.Int), err
}

func (p *Protocol) ReadI64(ctx context.Context) (value int64, err error) {
	scalar, err := p.scalar("ReadI64", isInteger)
	return scalar.Int, err
}

func (p *Protocol) ReadDouble(ctx context.Context) (value float64, err error) {
	scalar, err := p.scalar("ReadDouble", is(thrift.DOUBLE))
	return scalar.Double, err
}

func (p *Protocol) ReadString(ctx context.Context) (value string, err error) {
	scalar, err := p.scalar("ReadString", is(thrift.STRING))
	return scalar.Text, err
}

func (p *Protocol) ReadBinary(ctx context.Context) (value []byte, err error) {
	scalar, err := p.scalar("ReadBinary", is(thrift.STRING))
	if err != nil {
		return nil, err
	}
	return []byte(scalar.Text), nil
}

func (p *Protocol) ReadUUID(ctx context.Context) (value thrift.Tuuid, err error) {
	scalar, err := p.scalar("ReadUUID", is(thrift.STRING))
	if err != nil {
		return thrift.Tuuid{}, err
	}
	value, err = thrift.ParseTuuid(scalar.Text)
	if err != nil {
		return thrift.Tuuid{}, protocolError(&Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("%q is not a uuid", scalar.Text), Err: err})
	}
	return value, nil
}

func (p *Protocol) Skip(ctx context.Context, fieldType thrift.TType) error {
	return thrift.SkipDefaultDepth(ctx, p, fieldType)
}

func (p *Protocol) Flush(ctx context.Context) error { return p.writer.Flush(ctx) }

func (p *Protocol) Transport() thrift.TTransport { return p.trans }
