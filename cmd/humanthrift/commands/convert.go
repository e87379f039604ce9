// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/bureau-foundation/humanthrift/cmd/humanthrift/cli"
	"github.com/bureau-foundation/humanthrift/lib/transcode"
)

type transcodeParams struct {
	schemaParams
	From   string `flag:"from" desc:"input protocol: human, binary, compact or json" default:"human"`
	To     string `flag:"to" desc:"output protocol: human, binary, compact or json" default:"binary"`
	Hex    bool   `flag:"hex,x" desc:"binary-protocol input and output are hex encoded"`
	Struct string `flag:"struct" desc:"transcode bare structs of this type (program.Struct) instead of messages"`
}

func transcodeCommand() *cli.Command {
	var params transcodeParams

	return &cli.Command{
		Name:    "transcode",
		Summary: "Convert messages between human JSON and Thrift protocols",
		Description: `Convert a stream of messages from one protocol to another.

Human JSON input is decoded against the schema. Binary, compact and
JSON protocol input carries no field names, so they are recovered from
the schema on the way to human JSON output.

With --struct, input and output are bare structs of the named type
rather than messages. Only human JSON input is supported in that mode.`,
		Usage:  "humanthrift transcode [flags] [file]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Encode a call with the binary protocol, as hex",
				Command:     `echo '{"method":"ping","arguments":{}}' | humanthrift transcode -s idl/ --service Calculator --hex`,
			},
			{
				Description: "Decode a captured compact-protocol reply to human JSON",
				Command:     "humanthrift transcode -s idl/ --service Calculator --from compact --to human reply.bin",
			},
			{
				Description: "Encode a bare struct",
				Command:     `echo '{"num1":1,"num2":2,"op":"ADD"}' | humanthrift transcode -s idl/ --struct tutorial.Work --to compact | xxd`,
			},
		},
		Run: func(ctx context.Context, args []string) error {
			from, err := transcode.ParseSelector(params.From)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			to, err := transcode.ParseSelector(params.To)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			if params.Struct != "" && from != transcode.SelectHuman {
				return errors.New("--struct requires --from human")
			}

			data, args, err := readInput(os.Stdin, args, params.Hex && from != transcode.SelectHuman)
			if err != nil {
				return err
			}
			if err := noPositional("transcode", args); err != nil {
				return err
			}
			session, err := params.open()
			if err != nil {
				return err
			}

			converter := &converter{
				assembler: session.assembler,
				from:      from,
				to:        to,
				class:     params.Struct,
				hex:       params.Hex && to != transcode.SelectHuman,
			}
			count, err := converter.run(ctx, data, os.Stdout)
			session.logger.Debug("transcode finished", "from", from.String(), "to", to.String(), "messages", count)
			return err
		},
	}
}

// converter copies every message (or struct) in its input from one
// protocol to another.
type converter struct {
	assembler *transcode.Assembler
	from      transcode.Selector
	to        transcode.Selector
	class     string
	hex       bool
}

// run converts data and writes each converted unit to w as soon as it
// is complete. Human JSON output puts each message on its own line.
func (c *converter) run(ctx context.Context, data []byte, w io.Writer) (int, error) {
	input := thrift.NewTMemoryBuffer()
	if _, err := input.Write(data); err != nil {
		return 0, err
	}
	output := thrift.NewTMemoryBuffer()

	source, err := c.source(input)
	if err != nil {
		return 0, err
	}
	destination, err := c.destination(output)
	if err != nil {
		return 0, err
	}

	count := 0
	for {
		if c.class != "" {
			err := transcode.CopyStruct(ctx, destination, source)
			if endOfStream(err) {
				return count, nil
			}
			if err != nil {
				return count, fmt.Errorf("struct %d: %w", count+1, err)
			}
			if err := destination.Flush(ctx); err != nil {
				return count, err
			}
		} else {
			name, _, err := transcode.Copy(ctx, destination, source)
			if endOfStream(err) {
				return count, nil
			}
			if err != nil {
				if name != "" {
					return count, fmt.Errorf("message %d (%s): %w", count+1, name, err)
				}
				return count, fmt.Errorf("message %d: %w", count+1, err)
			}
		}
		count++

		if err := c.emit(w, output.Bytes()); err != nil {
			return count, err
		}
		output.Reset()
	}
}

func (c *converter) source(trans thrift.TTransport) (thrift.TProtocol, error) {
	if c.from == transcode.SelectHuman {
		if c.class != "" {
			return c.assembler.NewStructProtocol(trans, c.class), nil
		}
		return c.assembler.NewProtocol(trans), nil
	}
	inner, err := wireProtocol(c.from, trans)
	if err != nil {
		return nil, err
	}
	return transcode.NewNamingProtocol(inner, c.assembler.Store(), c.assembler.Service()), nil
}

func (c *converter) destination(trans thrift.TTransport) (thrift.TProtocol, error) {
	if c.to == transcode.SelectHuman {
		return c.assembler.NewProtocol(trans), nil
	}
	return wireProtocol(c.to, trans)
}

func (c *converter) emit(w io.Writer, encoded []byte) error {
	var err error
	switch {
	case c.hex:
		_, err = fmt.Fprintln(w, hex.EncodeToString(encoded))
	case c.to == transcode.SelectHuman || c.to == transcode.SelectJSON:
		_, err = fmt.Fprintf(w, "%s\n", encoded)
	default:
		_, err = w.Write(encoded)
	}
	return err
}

// wireProtocol builds a standard Thrift protocol over trans.
func wireProtocol(selector transcode.Selector, trans thrift.TTransport) (thrift.TProtocol, error) {
	conf := &thrift.TConfiguration{}
	switch selector {
	case transcode.SelectBinary:
		return thrift.NewTBinaryProtocolConf(trans, conf), nil
	case transcode.SelectCompact:
		return thrift.NewTCompactProtocolConf(trans, conf), nil
	case transcode.SelectJSON:
		return thrift.NewTJSONProtocol(trans), nil
	}
	return nil, fmt.Errorf("%s is not a wire protocol", selector)
}

// endOfStream reports whether err is the clean end of the input.
func endOfStream(err error) bool {
	if err == nil {
		return false
	}
	var transportError thrift.TTransportException
	if errors.As(err, &transportError) && transportError.TypeId() == thrift.END_OF_FILE {
		return true
	}
	return errors.Is(err, io.EOF)
}
