// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/thrift/lib/go/thrift"
)

// Selector is the one-byte protocol prefix a MultiProtocol exchanges
// before the first message in each direction.
type Selector byte

const (
	SelectBinary  Selector = '1'
	SelectCompact Selector = '2'
	SelectJSON    Selector = '3'
	SelectHuman   Selector = '4'
)

func (s Selector) String() string {
	switch s {
	case SelectBinary:
		return "binary"
	case SelectCompact:
		return "compact"
	case SelectJSON:
		return "json"
	case SelectHuman:
		return "human"
	}
	return fmt.Sprintf("selector(%q)", byte(s))
}

// ParseSelector accepts a protocol name as written in configuration.
func ParseSelector(name string) (Selector, error) {
	for _, selector := range []Selector{SelectBinary, SelectCompact, SelectJSON, SelectHuman} {
		if name == selector.String() {
			return selector, nil
		}
	}
	return 0, fmt.Errorf("unknown protocol %q (want binary, compact, json or human)", name)
}

// MultiProtocolFactory hands out MultiProtocols.
type MultiProtocolFactory struct {
	assembler *Assembler
	preferred Selector
	conf      *thrift.TConfiguration
}

// NewMultiProtocolFactory returns a factory whose protocols speak
// preferred when they write before reading. conf configures the
// binary and compact delegates and may be nil.
func NewMultiProtocolFactory(assembler *Assembler, preferred Selector, conf *thrift.TConfiguration) *MultiProtocolFactory {
	if conf == nil {
		conf = &thrift.TConfiguration{}
	}
	return &MultiProtocolFactory{assembler: assembler, preferred: preferred, conf: conf}
}

func (f *MultiProtocolFactory) GetProtocol(trans thrift.TTransport) thrift.TProtocol {
	return &MultiProtocol{factory: f, trans: trans}
}

var _ thrift.TProtocolFactory = (*MultiProtocolFactory)(nil)

func (f *MultiProtocolFactory) delegate(selector Selector, trans thrift.TTransport) (thrift.TProtocol, error) {
	switch selector {
	case SelectBinary:
		return thrift.NewTBinaryProtocolConf(trans, f.conf), nil
	case SelectCompact:
		return thrift.NewTCompactProtocolConf(trans, f.conf), nil
	case SelectJSON:
		return thrift.NewTJSONProtocol(trans), nil
	case SelectHuman:
		return f.assembler.NewProtocol(trans), nil
	}
	return nil, thrift.NewTTransportException(thrift.UNKNOWN_TRANSPORT_EXCEPTION,
		fmt.Sprintf("unknown protocol selector %q", byte(selector)))
}

// MultiProtocol picks its wire protocol per connection. A server-side
// protocol reads the peer's selector byte and answers in kind; a
// client-side protocol writes the factory's preferred selector first
// and expects the same byte back.
type MultiProtocol struct {
	factory  *MultiProtocolFactory
	trans    thrift.TTransport
	delegate thrift.TProtocol
	selector Selector

	readSelector  bool
	wroteSelector bool

	// failed is the selection error; the connection is unusable once
	// it is set.
	failed error
}

// Selector returns the negotiated protocol, or zero before the first
// read or write.
func (p *MultiProtocol) Selector() Selector { return p.selector }

func (p *MultiProtocol) choose(selector Selector) error {
	delegate, err := p.factory.delegate(selector, p.trans)
	if err != nil {
		return err
	}
	p.delegate = delegate
	p.selector = selector
	p.factory.assembler.logger.Debug("protocol selected", "protocol", selector.String())
	return nil
}

// ready reports whether a delegate is in place.
func (p *MultiProtocol) ready() error {
	if p.failed != nil {
		return p.failed
	}
	if p.delegate == nil {
		return thrift.NewTTransportException(thrift.NOT_OPEN, "no protocol selected")
	}
	return nil
}

func (p *MultiProtocol) ensureRead() error {
	if p.failed != nil {
		return p.failed
	}
	if p.readSelector {
		return nil
	}
	var buffer [1]byte
	if _, err := io.ReadFull(p.trans, buffer[:]); err != nil {
		return thrift.NewTTransportExceptionFromError(err)
	}
	selector := Selector(buffer[0])
	if p.delegate == nil {
		if err := p.choose(selector); err != nil {
			p.failed = err
			return err
		}
	} else if selector != p.selector {
		p.failed = thrift.NewTTransportException(thrift.UNKNOWN_TRANSPORT_EXCEPTION,
			fmt.Sprintf("peer answered with protocol %s, want %s", selector, p.selector))
		return p.failed
	}
	p.readSelector = true
	return nil
}

func (p *MultiProtocol) ensureWrite() error {
	if p.failed != nil {
		return p.failed
	}
	if p.wroteSelector {
		return nil
	}
	if p.delegate == nil {
		if err := p.choose(p.factory.preferred); err != nil {
			p.failed = err
			return err
		}
	}
	if _, err := p.trans.Write([]byte{byte(p.selector)}); err != nil {
		return thrift.NewTTransportExceptionFromError(err)
	}
	p.wroteSelector = true
	return nil
}

func (p *MultiProtocol) ReadMessageBegin(ctx context.Context) (name string, messageType thrift.TMessageType, seqID int32, err error) {
	if err := p.ensureRead(); err != nil {
		return "", thrift.INVALID_TMESSAGE_TYPE, 0, err
	}
	return p.delegate.ReadMessageBegin(ctx)
}

func (p *MultiProtocol) ReadMessageEnd(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.ReadMessageEnd(ctx)
}

func (p *MultiProtocol) ReadStructBegin(ctx context.Context) (name string, err error) {
	if err := p.ensureRead(); err != nil {
		return "", err
	}
	return p.delegate.ReadStructBegin(ctx)
}

func (p *MultiProtocol) ReadStructEnd(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.ReadStructEnd(ctx)
}

func (p *MultiProtocol) ReadFieldBegin(ctx context.Context) (name string, fieldType thrift.TType, id int16, err error) {
	if err := p.ready(); err != nil {
		return "", thrift.STOP, 0, err
	}
	return p.delegate.ReadFieldBegin(ctx)
}

func (p *MultiProtocol) ReadFieldEnd(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.ReadFieldEnd(ctx)
}

func (p *MultiProtocol) ReadMapBegin(ctx context.Context) (keyType thrift.TType, valueType thrift.TType, size int, err error) {
	if err := p.ready(); err != nil {
		return thrift.STOP, thrift.STOP, 0, err
	}
	return p.delegate.ReadMapBegin(ctx)
}

func (p *MultiProtocol) ReadMapEnd(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.ReadMapEnd(ctx)
}

func (p *MultiProtocol) ReadListBegin(ctx context.Context) (elemType thrift.TType, size int, err error) {
	if err := p.ready(); err != nil {
		return thrift.STOP, 0, err
	}
	return p.delegate.ReadListBegin(ctx)
}

func (p *MultiProtocol) ReadListEnd(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.ReadListEnd(ctx)
}

func (p *MultiProtocol) ReadSetBegin(ctx context.Context) (elemType thrift.TType, size int, err error) {
	if err := p.ready(); err != nil {
		return thrift.STOP, 0, err
	}
	return p.delegate.ReadSetBegin(ctx)
}

func (p *MultiProtocol) ReadSetEnd(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.ReadSetEnd(ctx)
}

func (p *MultiProtocol) ReadBool(ctx context.Context) (value bool, err error) {
	if err := p.ready(); err != nil {
		return false, err
	}
	return p.delegate.ReadBool(ctx)
}

func (p *MultiProtocol) ReadByte(ctx context.Context) (value int8, err error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	return p.delegate.ReadByte(ctx)
}

func (p *MultiProtocol) ReadI16(ctx context.Context) (value int16, err error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	return p.delegate.ReadI16(ctx)
}

func (p *MultiProtocol) ReadI32(ctx context.Context) (value int32, err error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	return p.delegate.ReadI32(ctx)
}

func (p *MultiProtocol) ReadI64(ctx context.Context) (value int64, err error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	return p.delegate.ReadI64(ctx)
}

func (p *MultiProtocol) ReadDouble(ctx context.Context) (value float64, err error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	return p.delegate.ReadDouble(ctx)
}

func (p *MultiProtocol) ReadString(ctx context.Context) (value string, err error) {
	if err := p.ready(); err != nil {
		return "", err
	}
	return p.delegate.ReadString(ctx)
}

func (p *MultiProtocol) ReadBinary(ctx context.Context) (value []byte, err error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	return p.delegate.ReadBinary(ctx)
}

func (p *MultiProtocol) ReadUUID(ctx context.Context) (value thrift.Tuuid, err error) {
	if err := p.ready(); err != nil {
		return thrift.Tuuid{}, err
	}
	return p.delegate.ReadUUID(ctx)
}

func (p *MultiProtocol) Skip(ctx context.Context, fieldType thrift.TType) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.Skip(ctx, fieldType)
}

func (p *MultiProtocol) WriteMessageBegin(ctx context.Context, name string, messageType thrift.TMessageType, seqID int32) error {
	if err := p.ensureWrite(); err != nil {
		return err
	}
	return p.delegate.WriteMessageBegin(ctx, name, messageType, seqID)
}

func (p *MultiProtocol) WriteMessageEnd(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteMessageEnd(ctx)
}

func (p *MultiProtocol) WriteStructBegin(ctx context.Context, name string) error {
	if err := p.ensureWrite(); err != nil {
		return err
	}
	return p.delegate.WriteStructBegin(ctx, name)
}

func (p *MultiProtocol) WriteStructEnd(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteStructEnd(ctx)
}

func (p *MultiProtocol) WriteFieldBegin(ctx context.Context, name string, typeID thrift.TType, id int16) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteFieldBegin(ctx, name, typeID, id)
}

func (p *MultiProtocol) WriteFieldEnd(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteFieldEnd(ctx)
}

func (p *MultiProtocol) WriteFieldStop(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteFieldStop(ctx)
}

func (p *MultiProtocol) WriteMapBegin(ctx context.Context, keyType thrift.TType, valueType thrift.TType, size int) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteMapBegin(ctx, keyType, valueType, size)
}

func (p *MultiProtocol) WriteMapEnd(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteMapEnd(ctx)
}

func (p *MultiProtocol) WriteListBegin(ctx context.Context, elemType thrift.TType, size int) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteListBegin(ctx, elemType, size)
}

func (p *MultiProtocol) WriteListEnd(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteListEnd(ctx)
}

func (p *MultiProtocol) WriteSetBegin(ctx context.Context, elemType thrift.TType, size int) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteSetBegin(ctx, elemType, size)
}

func (p *MultiProtocol) WriteSetEnd(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteSetEnd(ctx)
}

func (p *MultiProtocol) WriteBool(ctx context.Context, value bool) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteBool(ctx, value)
}

func (p *MultiProtocol) WriteByte(ctx context.Context, value int8) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteByte(ctx, value)
}

func (p *MultiProtocol) WriteI16(ctx context.Context, value int16) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteI16(ctx, value)
}

func (p *MultiProtocol) WriteI32(ctx context.Context, value int32) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteI32(ctx, value)
}

func (p *MultiProtocol) WriteI64(ctx context.Context, value int64) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteI64(ctx, value)
}

func (p *MultiProtocol) WriteDouble(ctx context.Context, value float64) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteDouble(ctx, value)
}

func (p *MultiProtocol) WriteString(ctx context.Context, value string) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteString(ctx, value)
}

func (p *MultiProtocol) WriteBinary(ctx context.Context, value []byte) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteBinary(ctx, value)
}

func (p *MultiProtocol) WriteUUID(ctx context.Context, value thrift.Tuuid) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.delegate.WriteUUID(ctx, value)
}

func (p *MultiProtocol) Flush(ctx context.Context) error {
	if p.delegate == nil || p.failed != nil {
		return p.trans.Flush(ctx)
	}
	return p.delegate.Flush(ctx)
}

// Service returns the service the delegate resolved the last message
// against, when the delegate is a human-readable Protocol.
func (p *MultiProtocol) Service() string {
	if human, ok := p.delegate.(*Protocol); ok {
		return human.Service()
	}
	return ""
}

func (p *MultiProtocol) Transport() thrift.TTransport { return p.trans }
