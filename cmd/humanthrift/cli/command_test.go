// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "humanthrift",
		Subcommands: []*Command{
			{
				Name: "version",
				Run: func(_ context.Context, args []string) error {
					called = "version"
					return nil
				},
			},
			{
				Name: "trace",
				Run: func(_ context.Context, args []string) error {
					called = "trace"
					return nil
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"trace"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "trace" {
		t.Errorf("dispatched to %q, want %q", called, "trace")
	}
}

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "humanthrift",
		Subcommands: []*Command{
			{
				Name: "schema",
				Subcommands: []*Command{
					{
						Name: "show",
						Run: func(_ context.Context, args []string) error {
							called = "schema show"
							receivedArgs = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"schema", "show", "tutorial.Work"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "schema show" {
		t.Errorf("dispatched to %q, want %q", called, "schema show")
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "tutorial.Work" {
		t.Errorf("args = %v, want [tutorial.Work]", receivedArgs)
	}
}

type traceParams struct {
	Service  string `flag:"service" desc:"default service"`
	MaxDepth int    `flag:"max-depth" desc:"nesting limit" default:"64"`
	Verbose  bool   `flag:"verbose,v" desc:"trace every token"`
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var params traceParams
	var receivedArgs []string

	command := &Command{
		Name:   "trace",
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string) error {
			receivedArgs = args
			return nil
		},
	}

	err := command.Execute(context.Background(), []string{"--service", "Calculator", "-v", "request.json"})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if params.Service != "Calculator" {
		t.Errorf("service = %q, want Calculator", params.Service)
	}
	if !params.Verbose {
		t.Error("verbose = false, want true")
	}
	if params.MaxDepth != 64 {
		t.Errorf("max depth = %d, want default 64", params.MaxDepth)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "request.json" {
		t.Errorf("args = %v, want [request.json]", receivedArgs)
	}
}

func TestCommand_Execute_UnknownSubcommandSuggests(t *testing.T) {
	root := &Command{
		Name: "humanthrift",
		Subcommands: []*Command{
			{Name: "transcode", Run: func(context.Context, []string) error { return nil }},
			{Name: "validate", Run: func(context.Context, []string) error { return nil }},
		},
	}

	err := root.Execute(context.Background(), []string{"transcdoe"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "transcode"`) {
		t.Errorf("error = %q, want suggestion for transcode", err)
	}
}

func TestCommand_Execute_UnknownFlagSuggests(t *testing.T) {
	var params traceParams
	command := &Command{
		Name:   "trace",
		Params: func() any { return &params },
		Run:    func(context.Context, []string) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--servce", "Calculator"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "did you mean --service?") {
		t.Errorf("error = %q, want suggestion for --service", err)
	}
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	root := &Command{
		Name: "humanthrift",
		Subcommands: []*Command{
			{Name: "version", Run: func(context.Context, []string) error { return nil }},
		},
	}

	if err := root.Execute(context.Background(), nil); err == nil || err.Error() != "subcommand required" {
		t.Errorf("Execute(nil) = %v, want subcommand required", err)
	}
}

func TestCommand_Execute_RunFallback(t *testing.T) {
	var receivedArgs []string
	group := &Command{
		Name: "schema",
		Subcommands: []*Command{
			{Name: "digest", Run: func(context.Context, []string) error { return nil }},
		},
		Run: func(_ context.Context, args []string) error {
			receivedArgs = args
			return nil
		},
	}

	if err := group.Execute(context.Background(), []string{"tutorial.Work"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "tutorial.Work" {
		t.Errorf("args = %v, want [tutorial.Work]", receivedArgs)
	}
}

func TestCommand_Execute_PropagatesRunError(t *testing.T) {
	failure := errors.New("boom")
	command := &Command{
		Name: "serve",
		Run:  func(context.Context, []string) error { return failure },
	}
	if err := command.Execute(context.Background(), nil); !errors.Is(err, failure) {
		t.Errorf("Execute() = %v, want %v", err, failure)
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	var params traceParams
	root := &Command{Name: "humanthrift"}
	command := &Command{
		Name:        "trace",
		Summary:     "Print the token stream of a message",
		Description: "Decode a human JSON message and print its tokens.",
		Params:      func() any { return &params },
		Examples: []Example{
			{Description: "Trace a request", Command: "humanthrift trace request.json"},
		},
		parent: root,
	}

	var output bytes.Buffer
	command.PrintHelp(&output)
	help := output.String()

	for _, want := range []string{
		"Decode a human JSON message",
		"Usage:\n  humanthrift trace [flags]",
		"--max-depth",
		"-v, --verbose",
		"# Trace a request",
	} {
		if !strings.Contains(help, want) {
			t.Errorf("help output missing %q:\n%s", want, help)
		}
	}
}

func TestCommand_Execute_HelpAfterFlags(t *testing.T) {
	var params traceParams
	ran := false
	command := &Command{
		Name:   "trace",
		Params: func() any { return &params },
		Run: func(context.Context, []string) error {
			ran = true
			return nil
		},
	}

	if err := command.Execute(context.Background(), []string{"--service", "Calculator", "--help"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if ran {
		t.Error("Run was called for --help")
	}
}
