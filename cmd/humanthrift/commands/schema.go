// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"

	"github.com/bureau-foundation/humanthrift/cmd/humanthrift/cli"
	"github.com/bureau-foundation/humanthrift/lib/codec"
	"github.com/bureau-foundation/humanthrift/lib/idl"
	"github.com/bureau-foundation/humanthrift/lib/snapshot"
)

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:    "schema",
		Summary: "Inspect, fingerprint and snapshot schemas",
		Description: `Tools for the schema messages are decoded against.

A schema is a set of JSON schema documents, one per Thrift program, or a
snapshot file bundling them. Every loaded schema has a BLAKE3 digest
that changes whenever any program, struct, field or function changes.`,
		Subcommands: []*cli.Command{
			schemaShowCommand(),
			schemaDigestCommand(),
			schemaSnapshotCommand(),
			schemaDiagCommand(),
		},
	}
}

type schemaShowParams struct {
	schemaParams
	Plain bool `flag:"plain" desc:"disable syntax highlighting even on a terminal"`
}

func schemaShowCommand() *cli.Command {
	var params schemaShowParams

	return &cli.Command{
		Name:    "show",
		Summary: "Print a program, struct or service as JSON",
		Description: `Print the loaded schema, or one part of it, as indented JSON.

The optional argument names a program ("tutorial"), a struct, union or
exception ("tutorial.Work"), or a service ("tutorial.Calculator").
Output is syntax highlighted on a terminal.`,
		Usage:  "humanthrift schema show [flags] [name]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Show one struct",
				Command:     "humanthrift schema show -s idl/ tutorial.Work",
			},
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("show takes at most one name, got %d arguments", len(args))
			}
			session, err := params.open()
			if err != nil {
				return err
			}

			var name string
			if len(args) == 1 {
				name = args[0]
			}
			value, err := lookupDefinition(session.store, name)
			if err != nil {
				return err
			}
			return showJSON(os.Stdout, value, !params.Plain && cli.IsTerminal(os.Stdout))
		},
	}
}

// lookupDefinition resolves name to the schema element show prints.
// An empty name selects every program.
func lookupDefinition(store *idl.Store, name string) (any, error) {
	if name == "" {
		return store.Programs(), nil
	}
	if program, ok := store.Program(name); ok {
		return program, nil
	}
	if definition, ok := store.Struct(name); ok {
		return definition, nil
	}
	if index := strings.IndexByte(name, '.'); index > 0 {
		if service, ok := store.Service(name[:index], name[index+1:]); ok {
			return service, nil
		}
	}
	if suggestion := cli.Suggest(name, definitionNames(store)); suggestion != "" {
		return nil, fmt.Errorf("no program, struct or service named %q (did you mean %q?)", name, suggestion)
	}
	return nil, fmt.Errorf("no program, struct or service named %q", name)
}

// definitionNames lists every name lookupDefinition resolves.
func definitionNames(store *idl.Store) []string {
	var names []string
	for _, program := range store.Programs() {
		names = append(names, program.Name)
		for _, definition := range program.Structs {
			names = append(names, program.Name+"."+definition.Name)
		}
		for _, service := range program.Services {
			names = append(names, service.Name)
		}
	}
	return names
}

// showJSON writes value as indented JSON, highlighted when color is
// set.
func showJSON(w io.Writer, value any, color bool) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	encoded = append(encoded, '\n')
	if color {
		if err := quick.Highlight(w, string(encoded), "json", "terminal256", "monokai"); err == nil {
			return nil
		}
	}
	_, err = w.Write(encoded)
	return err
}

func schemaDigestCommand() *cli.Command {
	var params schemaParams

	return &cli.Command{
		Name:    "digest",
		Summary: "Print the schema's BLAKE3 digest",
		Description: `Print the hex BLAKE3 digest of the loaded schema.

The digest covers the deterministic CBOR encoding of every program, so
it is the same for the same documents in any order, and a snapshot
carries the digest of the schema it was written from.`,
		Usage:  "humanthrift schema digest [flags]",
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string) error {
			if err := noPositional("digest", args); err != nil {
				return err
			}
			session, err := params.open()
			if err != nil {
				return err
			}
			fmt.Println(session.store.Digest().String())
			return nil
		},
	}
}

type schemaSnapshotParams struct {
	schemaParams
	Output      string `flag:"output,o" desc:"snapshot file to write"`
	Compression string `flag:"compression" desc:"payload compression: none, lz4 or zstd" default:"zstd"`
}

func schemaSnapshotCommand() *cli.Command {
	var params schemaSnapshotParams

	return &cli.Command{
		Name:    "snapshot",
		Summary: "Bundle the schema into one snapshot file",
		Description: `Write every loaded program to a single snapshot file. Servers started
with --snapshot load it without parsing schema documents, and refuse it
if its content does not match the digest in its header.

The file is written atomically: readers see the old file or the new
one, never a partial write.`,
		Usage:  "humanthrift schema snapshot [flags] --output FILE",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Snapshot a schema directory",
				Command:     "humanthrift schema snapshot -s idl/ -o schema.snap",
			},
		},
		Run: func(_ context.Context, args []string) error {
			if err := noPositional("snapshot", args); err != nil {
				return err
			}
			if params.Output == "" {
				return errors.New("--output is required")
			}
			compression, err := snapshot.ParseCompression(params.Compression)
			if err != nil {
				return err
			}
			session, err := params.open()
			if err != nil {
				return err
			}

			header, err := snapshot.WriteFile(params.Output, session.store, compression)
			if err != nil {
				return err
			}
			session.logger.Info("schema snapshot written",
				"path", params.Output,
				"compression", header.Compression.String(),
				"payload_bytes", header.Size,
				"schema_digest", header.Digest.Short(),
			)
			return nil
		},
	}
}

func schemaDiagCommand() *cli.Command {
	return &cli.Command{
		Name:    "diag",
		Summary: "Show a snapshot's header and CBOR payload",
		Description: `Read a snapshot file and print its header followed by the payload in
CBOR diagnostic notation (RFC 8949). The payload is not decoded into a
schema, so diag also works on snapshots that fail to load.`,
		Usage: "humanthrift schema diag FILE",
		Run: func(_ context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("diag takes exactly one snapshot file")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading snapshot: %w", err)
			}
			return diagSnapshot(data, os.Stdout)
		},
	}
}

func diagSnapshot(data []byte, w io.Writer) error {
	payload, header, err := snapshot.Payload(data)
	if err != nil {
		return err
	}
	notation, err := codec.Diagnose(payload)
	if err != nil {
		return fmt.Errorf("diagnose payload: %w", err)
	}
	fmt.Fprintf(w, "compression: %s\n", header.Compression)
	fmt.Fprintf(w, "digest:      %s\n", header.Digest)
	fmt.Fprintf(w, "payload:     %d bytes\n", header.Size)
	_, err = fmt.Fprintln(w, notation)
	return err
}
