// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
)

// Server accepts client connections on a TCP or Unix socket and runs
// every request on them through a processor, usually a Gateway.
type Server struct {
	network   string
	address   string
	processor thrift.TProcessor
	factory   thrift.TProtocolFactory
	conf      *thrift.TConfiguration
	logger    *slog.Logger

	// activeConnections tracks in-flight connections. Serve waits for
	// all of them before returning.
	activeConnections sync.WaitGroup
}

// NewServer creates a server for network ("tcp" or "unix") and
// address. factory builds the client-facing protocol; one protocol
// serves both directions of a connection, which MultiProtocol relies
// on. idleTimeout bounds how long a connection may sit between
// requests; zero means no limit.
func NewServer(network, address string, processor thrift.TProcessor, factory thrift.TProtocolFactory,
	idleTimeout time.Duration, logger *slog.Logger) *Server {
	return &Server{
		network:   network,
		address:   address,
		processor: processor,
		factory:   factory,
		conf:      &thrift.TConfiguration{SocketTimeout: idleTimeout},
		logger:    logger,
	}
}

// Serve listens on the configured address and serves until ctx is
// cancelled. A stale Unix socket file is removed before listening and
// the socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if s.network == "unix" {
		if err := os.Remove(s.address); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale socket %s: %w", s.address, err)
		}
		defer os.Remove(s.address)
	}
	listener, err := net.Listen(s.network, s.address)
	if err != nil {
		return fmt.Errorf("listening on %s %s: %w", s.network, s.address, err)
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener serves connections accepted from listener until ctx
// is cancelled, then closes it and waits for active connections.
func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("gateway listening", "network", listener.Addr().Network(), "address", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// handleConnection processes requests until the client disconnects,
// a request leaves the stream unusable, or ctx is cancelled.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Closing the connection unblocks a read waiting for the next
	// request once the server shuts down.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	protocol := s.factory.GetProtocol(thrift.NewTSocketFromConnConf(conn, s.conf))
	remote := conn.RemoteAddr().String()
	for ctx.Err() == nil {
		more, err := s.processor.Process(ctx, protocol, protocol)
		if err != nil {
			var transportException thrift.TTransportException
			if errors.As(err, &transportException) && transportException.TypeId() == thrift.END_OF_FILE {
				s.logger.Debug("client disconnected", "remote", remote)
			} else if ctx.Err() == nil {
				s.logger.Warn("connection failed", "remote", remote, "error", err)
			}
			return
		}
		if !more {
			return
		}
	}
}
