// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/bureau-foundation/humanthrift/cmd/humanthrift/cli"
	"github.com/bureau-foundation/humanthrift/lib/config"
	"github.com/bureau-foundation/humanthrift/lib/gateway"
	"github.com/bureau-foundation/humanthrift/lib/transcode"
)

type serveParams struct {
	schemaParams
	Listen    string `flag:"listen" desc:"address clients connect to (overrides gateway.listen)"`
	Backend   string `flag:"backend" desc:"address of the Thrift backend (overrides gateway.backend)"`
	Multiplex bool   `flag:"multiplex" desc:"accept every protocol behind a one-byte selector"`
}

func serveCommand() *cli.Command {
	var params serveParams

	return &cli.Command{
		Name:    "serve",
		Summary: "Serve a human JSON endpoint in front of a Thrift backend",
		Description: `Listen for human JSON requests, forward each one to the configured
backend over the binary, compact or JSON protocol, and answer with the
backend's reply as human JSON.

With --multiplex (or gateway.multiplex), each client connection starts
with one selector byte: '1' binary, '2' compact, '3' Thrift JSON or
'4' human JSON, and replies use the same protocol.

Requests that fail to decode are answered with a TApplicationException
without contacting the backend. The server runs until interrupted.`,
		Usage:  "humanthrift serve [flags]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Front a local Calculator service",
				Command:     "humanthrift serve -s idl/ --service Calculator --backend 127.0.0.1:9090",
			},
			{
				Description: "Serve from a config file",
				Command:     "HUMANTHRIFT_CONFIG=/etc/humanthrift.yaml humanthrift serve",
			},
		},
		Run: func(ctx context.Context, args []string) error {
			if err := noPositional("serve", args); err != nil {
				return err
			}
			session, err := params.open()
			if err != nil {
				return err
			}
			settings := session.config.Gateway
			if params.Listen != "" {
				settings.Listen = params.Listen
			}
			if params.Backend != "" {
				settings.Backend = params.Backend
			}
			if params.Multiplex {
				settings.Multiplex = true
			}

			server, err := newGatewayServer(session, settings)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.Serve(ctx)
		},
	}
}

// newGatewayServer wires the gateway and its client-facing protocol
// from settings.
func newGatewayServer(session *session, settings config.GatewayConfig) (*gateway.Server, error) {
	dialTimeout, ioTimeout, idleTimeout, err := settings.Timeouts()
	if err != nil {
		return nil, err
	}
	backendProtocol, err := transcode.ParseSelector(settings.BackendProtocol)
	if err != nil {
		return nil, fmt.Errorf("gateway.backend_protocol: %w", err)
	}

	human, err := transcode.NewProtocolFactory(transcode.Config{
		Store:    session.store,
		Service:  session.config.Service,
		MaxDepth: session.config.Protocol.MaxDepth,
		Logger:   session.logger,
	})
	if err != nil {
		return nil, err
	}
	assembler := human.Assembler()

	processor, err := gateway.New(gateway.Config{
		Assembler:   assembler,
		Network:     settings.BackendNetwork,
		Address:     settings.Backend,
		Protocol:    backendProtocol,
		Framed:      settings.Framed,
		DialTimeout: dialTimeout,
		IOTimeout:   ioTimeout,
		Logger:      session.logger,
	})
	if err != nil {
		return nil, err
	}

	var factory thrift.TProtocolFactory = human
	if settings.Multiplex {
		preferred, err := transcode.ParseSelector(session.config.Protocol.Selector)
		if err != nil {
			return nil, fmt.Errorf("protocol.selector: %w", err)
		}
		factory = transcode.NewMultiProtocolFactory(assembler, preferred,
			&thrift.TConfiguration{SocketTimeout: ioTimeout})
	}

	session.logger.Info("gateway configured",
		"backend", settings.Backend,
		"backend_protocol", backendProtocol.String(),
		"framed", settings.Framed,
		"multiplex", settings.Multiplex,
	)
	return gateway.NewServer(settings.Network, settings.Listen, processor, factory, idleTimeout, session.logger), nil
}
