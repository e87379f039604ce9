// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"github.com/apache/thrift/lib/go/thrift"
)

// ProtocolFactory hands out message-framed Protocols that share one
// Assembler.
type ProtocolFactory struct {
	assembler *Assembler
}

// NewProtocolFactory builds the shared Assembler from config.
func NewProtocolFactory(config Config) (*ProtocolFactory, error) {
	assembler, err := NewAssembler(config)
	if err != nil {
		return nil, err
	}
	assembler.logger.Info("human json protocol ready",
		"schema_digest", assembler.store.Digest().Short(),
		"programs", len(assembler.store.Programs()),
		"service", assembler.service,
		"max_depth", assembler.maxDepth,
	)
	return &ProtocolFactory{assembler: assembler}, nil
}

// Assembler returns the factory's shared Assembler.
func (f *ProtocolFactory) Assembler() *Assembler { return f.assembler }

func (f *ProtocolFactory) GetProtocol(trans thrift.TTransport) thrift.TProtocol {
	return f.assembler.NewProtocol(trans)
}

var _ thrift.TProtocolFactory = (*ProtocolFactory)(nil)
