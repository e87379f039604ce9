// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway fronts a Thrift backend that speaks the binary,
// compact or JSON protocol with a human-readable JSON endpoint.
//
// Each request read from a client is decoded against the schema,
// forwarded to the backend on a fresh connection, and the backend's
// reply is copied back with field names restored from the schema.
// Requests that fail to decode are answered with a
// TApplicationException without contacting the backend.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/bureau-foundation/humanthrift/lib/transcode"
)

// Dialer opens a transport to the backend. The transport is used for
// one request and its reply, then closed.
type Dialer func(ctx context.Context) (thrift.TTransport, error)

// Config configures a Gateway.
type Config struct {
	// Assembler decodes client requests. Reply field names are
	// recovered against the service each request resolved to, or the
	// assembler's default service when the client protocol does not
	// report one.
	Assembler *transcode.Assembler

	// Network and Address locate the backend ("tcp", "host:9090" or
	// "unix", "/run/backend.sock"). Ignored when Dial is set.
	Network string
	Address string

	// Protocol is the backend wire protocol: SelectBinary,
	// SelectCompact or SelectJSON.
	Protocol transcode.Selector

	// Framed wraps backend connections in Thrift's framed transport.
	Framed bool

	DialTimeout time.Duration
	IOTimeout   time.Duration

	// Dial replaces the network dialer, for tests.
	Dial Dialer

	Logger *slog.Logger
}

// Gateway is a thrift.TProcessor that forwards every call it reads to
// the backend.
type Gateway struct {
	assembler   *transcode.Assembler
	dial        Dialer
	newProtocol func(thrift.TTransport) thrift.TProtocol
	logger      *slog.Logger
}

var _ thrift.TProcessor = (*Gateway)(nil)

// New validates config and returns a Gateway.
func New(config Config) (*Gateway, error) {
	if config.Assembler == nil {
		return nil, errors.New("gateway: assembler is required")
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	conf := &thrift.TConfiguration{
		ConnectTimeout: config.DialTimeout,
		SocketTimeout:  config.IOTimeout,
	}

	var newProtocol func(thrift.TTransport) thrift.TProtocol
	switch config.Protocol {
	case transcode.SelectBinary:
		newProtocol = func(trans thrift.TTransport) thrift.TProtocol {
			return thrift.NewTBinaryProtocolConf(trans, conf)
		}
	case transcode.SelectCompact:
		newProtocol = func(trans thrift.TTransport) thrift.TProtocol {
			return thrift.NewTCompactProtocolConf(trans, conf)
		}
	case transcode.SelectJSON:
		newProtocol = func(trans thrift.TTransport) thrift.TProtocol {
			return thrift.NewTJSONProtocol(trans)
		}
	default:
		return nil, fmt.Errorf("gateway: unsupported backend protocol %s", config.Protocol)
	}

	dial := config.Dial
	if dial == nil {
		if config.Address == "" {
			return nil, errors.New("gateway: backend address is required")
		}
		network := config.Network
		if network == "" {
			network = "tcp"
		}
		dial = func(ctx context.Context) (thrift.TTransport, error) {
			dialer := net.Dialer{Timeout: config.DialTimeout}
			conn, err := dialer.DialContext(ctx, network, config.Address)
			if err != nil {
				return nil, err
			}
			var trans thrift.TTransport = thrift.NewTSocketFromConnConf(conn, conf)
			if config.Framed {
				trans = thrift.NewTFramedTransportConf(trans, conf)
			}
			return trans, nil
		}
	}

	return &Gateway{
		assembler:   config.Assembler,
		dial:        dial,
		newProtocol: newProtocol,
		logger:      config.Logger,
	}, nil
}

// Process handles one request. It returns false when the connection
// to the client cannot carry further requests.
func (g *Gateway) Process(ctx context.Context, in, out thrift.TProtocol) (bool, thrift.TException) {
	name, messageType, seqID, err := in.ReadMessageBegin(ctx)
	if err != nil {
		kind := transcode.KindOf(err)
		if kind == 0 {
			return false, thrift.WrapTException(err)
		}
		g.logger.Warn("rejecting request", "method", name, "error", err)
		if replyErr := g.replyError(ctx, out, name, thrift.PROTOCOL_ERROR, err); replyErr != nil {
			return false, thrift.WrapTException(replyErr)
		}
		// After malformed JSON the stream position is unknown.
		return kind != transcode.KindMalformed, nil
	}

	if messageType != thrift.CALL && messageType != thrift.ONEWAY {
		g.logger.Warn("rejecting non-call message", "method", name, "type", messageType)
		if err := g.replyError(ctx, out, name, thrift.INVALID_MESSAGE_TYPE_EXCEPTION,
			fmt.Errorf("gateway accepts calls, not message type %d", messageType)); err != nil {
			return false, thrift.WrapTException(err)
		}
		return true, nil
	}

	start := time.Now()
	backend, err := g.dial(ctx)
	if err != nil {
		g.logger.Error("backend unavailable", "method", name, "error", err)
		if replyErr := g.replyError(ctx, out, name, thrift.INTERNAL_ERROR,
			fmt.Errorf("backend unavailable: %w", err)); replyErr != nil {
			return false, thrift.WrapTException(replyErr)
		}
		return true, nil
	}
	defer backend.Close()

	service := g.assembler.Service()
	if resolved, ok := in.(serviceReporter); ok && resolved.Service() != "" {
		service = resolved.Service()
	}
	if err := g.forward(ctx, in, out, backend, service, name, messageType, seqID); err != nil {
		g.logger.Error("forwarding failed", "method", name, "error", err)
		return false, thrift.WrapTException(err)
	}
	g.logger.Debug("request forwarded",
		"method", name,
		"oneway", messageType == thrift.ONEWAY,
		"duration", time.Since(start),
	)
	return true, nil
}

// serviceReporter is implemented by client protocols that know which
// service the last request's method belongs to.
type serviceReporter interface {
	Service() string
}

func (g *Gateway) forward(ctx context.Context, in, out thrift.TProtocol, backend thrift.TTransport,
	service, name string, messageType thrift.TMessageType, seqID int32) error {
	protocol := g.newProtocol(backend)
	if err := protocol.WriteMessageBegin(ctx, name, messageType, seqID); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}
	if err := transcode.CopyStruct(ctx, protocol, in); err != nil {
		return fmt.Errorf("copying arguments: %w", err)
	}
	if err := in.ReadMessageEnd(ctx); err != nil {
		return err
	}
	if err := protocol.WriteMessageEnd(ctx); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}
	if err := protocol.Flush(ctx); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	if messageType == thrift.ONEWAY {
		return nil
	}

	reply := transcode.NewNamingProtocol(protocol, g.assembler.Store(), service)
	if _, _, err := transcode.Copy(ctx, out, reply); err != nil {
		return fmt.Errorf("copying reply: %w", err)
	}
	return nil
}

// AddToProcessorMap is a no-op: every method is forwarded.
func (g *Gateway) AddToProcessorMap(name string, function thrift.TProcessorFunction) {}

// ProcessorMap returns nil: the gateway dispatches no methods locally.
func (g *Gateway) ProcessorMap() map[string]thrift.TProcessorFunction { return nil }

func (g *Gateway) replyError(ctx context.Context, out thrift.TProtocol, name string, exceptionType int32, cause error) error {
	exception := thrift.NewTApplicationException(exceptionType, cause.Error())
	if err := out.WriteMessageBegin(ctx, name, thrift.EXCEPTION, transcode.ReplySeqID); err != nil {
		return err
	}
	if err := exception.Write(ctx, out); err != nil {
		return err
	}
	if err := out.WriteMessageEnd(ctx); err != nil {
		return err
	}
	return out.Flush(ctx)
}
