// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/humanthrift/cmd/humanthrift/cli"
	"github.com/bureau-foundation/humanthrift/lib/jsonvalue"
	"github.com/bureau-foundation/humanthrift/lib/transcode"
)

type traceParams struct {
	schemaParams
	Plain bool `flag:"plain" desc:"disable colors even on a terminal"`
}

func traceCommand() *cli.Command {
	var params traceParams

	return &cli.Command{
		Name:    "trace",
		Summary: "Print the token stream a message decodes to",
		Description: `Decode human JSON messages and print the tokens a Thrift reader would
consume, one per line and indented by nesting.

Input is one or more JSON envelopes, read from the file named by the
last argument or from stdin. A message that fails to decode prints its
error and tracing continues with the next one; the command exits 1 if
any message failed.`,
		Usage:  "humanthrift trace [flags] [file]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Trace a call against a schema directory",
				Command:     `echo '{"method":"add","arguments":{"num1":1,"num2":2}}' | humanthrift trace -s idl/ --service Calculator`,
			},
			{
				Description: "Trace every message in a capture file",
				Command:     "humanthrift trace --snapshot schema.snap capture.json",
			},
		},
		Run: func(_ context.Context, args []string) error {
			data, args, err := readInput(os.Stdin, args, false)
			if err != nil {
				return err
			}
			if err := noPositional("trace", args); err != nil {
				return err
			}
			session, err := params.open()
			if err != nil {
				return err
			}

			styles := plainStyles()
			if !params.Plain && cli.IsTerminal(os.Stdout) {
				styles = colorStyles()
			}
			failures, err := traceMessages(session.assembler, data, os.Stdout, styles)
			if err != nil {
				return err
			}
			if failures > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// traceStyles colors the parts of a trace line.
type traceStyles struct {
	header    lipgloss.Style
	field     lipgloss.Style
	container lipgloss.Style
	scalar    lipgloss.Style
	stop      lipgloss.Style
	failure   lipgloss.Style
}

func plainStyles() traceStyles {
	plain := lipgloss.NewStyle()
	return traceStyles{header: plain, field: plain, container: plain, scalar: plain, stop: plain, failure: plain}
}

// colorStyles uses ANSI 256-color codes for a dark terminal.
func colorStyles() traceStyles {
	return traceStyles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
		field:     lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		container: lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		scalar:    lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		stop:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		failure:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// traceMessages writes the trace of every envelope in data to w and
// returns how many messages failed to decode. Malformed JSON ends the
// stream and is returned as an error.
func traceMessages(assembler *transcode.Assembler, data []byte, w io.Writer, styles traceStyles) (int, error) {
	decoder := jsonvalue.NewDecoder(bytes.NewReader(data))
	failures := 0
	for index := 0; ; index++ {
		envelope, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			if index == 0 {
				return 0, errors.New("no messages in input")
			}
			return failures, nil
		}
		if err != nil {
			return failures, fmt.Errorf("message %d: malformed JSON: %w", index+1, err)
		}

		message, err := assembler.Assemble(envelope)
		header := fmt.Sprintf("%s %s seq=%d", messageTypeLabel(message.Type), displayName(message.Name), message.SeqID)
		fmt.Fprintln(w, styles.header.Render(header))
		if err != nil {
			fmt.Fprintln(w, styles.failure.Render("  error: "+err.Error()))
			failures++
			continue
		}
		renderTokens(w, message.Tokens, styles)
		if message.Deferred != nil {
			fmt.Fprintln(w, styles.failure.Render("  deferred: "+message.Deferred.Error()))
			failures++
		}
	}
}

func displayName(name string) string {
	if name == "" {
		return "?"
	}
	return name
}

func messageTypeLabel(messageType thrift.TMessageType) string {
	switch messageType {
	case thrift.CALL:
		return "CALL"
	case thrift.REPLY:
		return "REPLY"
	case thrift.EXCEPTION:
		return "EXCEPTION"
	case thrift.ONEWAY:
		return "ONEWAY"
	}
	return "INVALID"
}

// traceFrame is an open struct or container while rendering. Struct
// frames end at their stop token; container frames after remaining
// element tokens.
type traceFrame struct {
	isStruct  bool
	types     []thrift.TType
	index     int
	remaining int
}

// renderTokens prints a body token stream indented by nesting. Struct
// values have no begin token: a struct starts after a field header or
// at a container element whose type is STRUCT.
func renderTokens(w io.Writer, tokens []transcode.Token, styles traceStyles) {
	stack := []*traceFrame{{isStruct: true}}

	var completeValue func()
	beginElement := func() {
		top := stack[len(stack)-1]
		if !top.isStruct && top.remaining > 0 && top.types[top.index%len(top.types)] == thrift.STRUCT {
			stack = append(stack, &traceFrame{isStruct: true})
		}
	}
	completeValue = func() {
		if len(stack) == 0 {
			return
		}
		top := stack[len(stack)-1]
		if top.isStruct {
			return
		}
		top.index++
		top.remaining--
		if top.remaining == 0 {
			stack = stack[:len(stack)-1]
			completeValue()
			return
		}
		beginElement()
	}

	for _, token := range tokens {
		indent := strings.Repeat("  ", max(len(stack), 1))
		switch token.Kind {
		case transcode.TokenFieldHeader:
			fmt.Fprintln(w, indent+styles.field.Render(token.String()))
			if token.Type == thrift.STRUCT {
				stack = append(stack, &traceFrame{isStruct: true})
			}
		case transcode.TokenStructStop:
			fmt.Fprintln(w, indent+styles.stop.Render(token.String()))
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			completeValue()
		case transcode.TokenContainer:
			fmt.Fprintln(w, indent+styles.container.Render(token.String()))
			frame := &traceFrame{types: []thrift.TType{token.Type}, remaining: token.Size}
			if token.Container == thrift.MAP {
				frame.types = append(frame.types, token.ValueType)
				frame.remaining *= 2
			}
			if frame.remaining == 0 {
				completeValue()
				continue
			}
			stack = append(stack, frame)
			beginElement()
		case transcode.TokenScalar:
			fmt.Fprintln(w, indent+styles.scalar.Render(token.String()))
			completeValue()
		}
	}
}
