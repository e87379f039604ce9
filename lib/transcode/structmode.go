// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"context"
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"
)

// NewStructProtocol returns a Protocol that reads and writes bare
// structs of type class ("<program>.<Struct>") instead of messages.
// Each outermost ReadStructBegin decodes the next JSON object from
// trans, so one protocol can read a stream of structs.
func (a *Assembler) NewStructProtocol(trans thrift.TTransport, class string) *Protocol {
	p := a.NewProtocol(trans)
	p.class = class
	return p
}

func (p *Protocol) loadStruct() error {
	p.reset()
	value, err := p.readValue()
	if err != nil {
		return err
	}
	tokens, err := p.assembler.parseStruct(p.class, value, p.tokens)
	if err != nil {
		return protocolError(err)
	}
	p.tokens = tokens
	return nil
}

// MarshalStruct encodes value as a JSON object keyed by field name.
func MarshalStruct(ctx context.Context, value thrift.TStruct) ([]byte, error) {
	buffer := thrift.NewTMemoryBuffer()
	p := &Protocol{trans: buffer, writer: thrift.NewTSimpleJSONProtocol(buffer)}
	if err := value.Write(ctx, p); err != nil {
		return nil, fmt.Errorf("encoding struct: %w", err)
	}
	if err := p.Flush(ctx); err != nil {
		return nil, fmt.Errorf("encoding struct: %w", err)
	}
	return buffer.Bytes(), nil
}

// UnmarshalStruct decodes data, one JSON object of type class, into
// value.
func UnmarshalStruct(ctx context.Context, assembler *Assembler, class string, data []byte, value thrift.TStruct) error {
	buffer := thrift.NewTMemoryBuffer()
	if _, err := buffer.Write(data); err != nil {
		return err
	}
	if err := value.Read(ctx, assembler.NewStructProtocol(buffer, class)); err != nil {
		return fmt.Errorf("decoding %s: %w", class, err)
	}
	return nil
}
