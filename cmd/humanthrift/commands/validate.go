// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/bureau-foundation/humanthrift/cmd/humanthrift/cli"
	"github.com/bureau-foundation/humanthrift/lib/transcode"
)

type validateParams struct {
	schemaParams
	Quiet bool `flag:"quiet,q" desc:"print nothing; report through the exit code only"`
}

func validateCommand() *cli.Command {
	var params validateParams

	return &cli.Command{
		Name:    "validate",
		Summary: "Check that messages decode against the schema",
		Description: `Decode every human JSON message in the input the way a Thrift server
would, reading each body through to the end, and report one line per
message: "ok" or the error kind and location.

Exits 0 when every message decodes and 1 otherwise. Malformed JSON
stops validation, since the position of the next message is unknown.`,
		Usage:  "humanthrift validate [flags] [file]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Validate a request file in CI",
				Command:     "humanthrift validate -q -s idl/ --service Calculator requests.json",
			},
		},
		Run: func(ctx context.Context, args []string) error {
			data, args, err := readInput(os.Stdin, args, false)
			if err != nil {
				return err
			}
			if err := noPositional("validate", args); err != nil {
				return err
			}
			session, err := params.open()
			if err != nil {
				return err
			}

			var output io.Writer = os.Stdout
			if params.Quiet {
				output = io.Discard
			}
			report, err := validateMessages(ctx, session.assembler, data, output)
			if err != nil {
				return err
			}
			session.logger.Debug("validation finished", "messages", report.messages, "failures", report.failures)
			if report.failures > 0 || report.messages == 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

type validationReport struct {
	messages int
	failures int
}

// validateMessages decodes each message in data through a Protocol,
// copying it into a binary protocol so every token is consumed, and
// writes a result line per message to w.
func validateMessages(ctx context.Context, assembler *transcode.Assembler, data []byte, w io.Writer) (validationReport, error) {
	input := thrift.NewTMemoryBuffer()
	if _, err := input.Write(data); err != nil {
		return validationReport{}, err
	}
	source := assembler.NewProtocol(input)
	sink := thrift.NewTMemoryBuffer()
	destination := thrift.NewTBinaryProtocolConf(sink, &thrift.TConfiguration{})

	var report validationReport
	for {
		name, messageType, err := transcode.Copy(ctx, destination, source)
		sink.Reset()
		if endOfStream(err) {
			return report, nil
		}
		report.messages++
		if err == nil {
			fmt.Fprintf(w, "ok\t%s %s\n", messageTypeLabel(messageType), name)
			continue
		}

		report.failures++
		kind := transcode.KindOf(err)
		if kind == 0 {
			return report, fmt.Errorf("message %d: %w", report.messages, err)
		}
		fmt.Fprintf(w, "fail\t%s\t%s\n", displayName(name), describeFailure(err))
		if kind == transcode.KindMalformed {
			return report, nil
		}
		// A body error leaves the rest of that message unread; the next
		// ReadMessageBegin discards it.
	}
}

// describeFailure renders the decode error without the Thrift
// exception wrapping.
func describeFailure(err error) string {
	var decodeError *transcode.Error
	if errors.As(err, &decodeError) {
		return decodeError.Error()
	}
	return err.Error()
}
