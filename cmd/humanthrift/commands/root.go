// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the humanthrift command tree.
package commands

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/humanthrift/cmd/humanthrift/cli"
	"github.com/bureau-foundation/humanthrift/lib/version"
)

// Root builds and returns the complete humanthrift command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "humanthrift",
		Description: `humanthrift: human-readable JSON for Thrift services.

Decode JSON messages keyed by field name into the token stream Thrift
readers expect, convert them to and from the binary, compact and JSON
protocols, and serve a human JSON endpoint in front of a Thrift backend.

Schema-aware commands take --schema (documents or directories),
--snapshot, or a config file named by --config or $HUMANTHRIFT_CONFIG.`,
		Subcommands: []*cli.Command{
			traceCommand(),
			transcodeCommand(),
			validateCommand(),
			schemaCommand(),
			serveCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string) error {
					if err := noPositional("version", args); err != nil {
						return err
					}
					fmt.Printf("humanthrift %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "See how a call decodes",
				Command:     `echo '{"method":"add","arguments":{"num1":1,"num2":2}}' | humanthrift trace -s idl/ --service Calculator`,
			},
			{
				Description: "Check a file of requests against the schema",
				Command:     "humanthrift validate -s idl/ --service Calculator requests.json",
			},
			{
				Description: "Bundle the schema for deployment",
				Command:     "humanthrift schema snapshot -s idl/ -o schema.snap",
			},
			{
				Description: "Front a binary-protocol backend",
				Command:     "humanthrift serve --snapshot schema.snap --service Calculator --backend 127.0.0.1:9090",
			},
		},
	}
}
