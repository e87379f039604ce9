// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command represents a CLI command or subcommand.
type Command struct {
	// Name is the command name as typed by the user (e.g., "schema", "show").
	Name string

	// Summary is a one-line description shown in the parent's help listing.
	Summary string

	// Description is a detailed multi-line description shown in the command's
	// own help output.
	Description string

	// Usage is the usage string (e.g., "humanthrift schema show [flags]").
	// If empty, it is synthesized from the command path and subcommands.
	Usage string

	// Examples are shown in the help output after the description.
	Examples []Example

	// Params returns a pointer to the command's parameter struct. Its
	// tagged fields become flags (see [BindFlags]). If nil, the command
	// accepts no flags.
	Params func() any

	// Subcommands are nested commands dispatched by the first positional arg.
	Subcommands []*Command

	// Run executes the command with the remaining args (after flag parsing).
	// Exactly one of Run or Subcommands should be set. If both are set,
	// Run is used when no subcommand matches.
	Run func(ctx context.Context, args []string) error

	// parent is set during dispatch to build the full command path for help.
	parent *Command
}

// Example is a usage example shown in help output.
type Example struct {
	// Description explains what the example does.
	Description string
	// Command is the literal command line.
	Command string
}

// flagSet builds a fresh flag set bound to the command's params.
func (c *Command) flagSet() *pflag.FlagSet {
	if c.Params == nil {
		return nil
	}
	return FlagsFromParams(c.Name, c.Params())
}

// Execute parses args and dispatches to the matching subcommand or to
// Run.
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(os.Stderr)
		return nil
	}

	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		if sub := c.subcommand(args[0]); sub != nil {
			sub.parent = c
			return sub.Execute(ctx, args[1:])
		}
		if c.Run == nil {
			if suggestion := suggestCommand(args[0], c.Subcommands); suggestion != "" {
				return c.usageError("unknown command %q (did you mean %q?)", args[0], suggestion)
			}
			return c.usageError("unknown command %q", args[0])
		}
	}

	if c.Run == nil {
		c.PrintHelp(os.Stderr)
		if len(c.Subcommands) == 0 {
			return fmt.Errorf("no action defined for %q", c.fullName())
		}
		if len(args) == 0 {
			return fmt.Errorf("subcommand required")
		}
		return fmt.Errorf("subcommand required (got flag %q)", args[0])
	}

	remaining, err := c.parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		c.PrintHelp(os.Stderr)
		return nil
	}
	if err != nil {
		return err
	}
	return c.Run(ctx, remaining)
}

func (c *Command) subcommand(name string) *Command {
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			return sub
		}
	}
	return nil
}

// parseFlags binds the command's params and returns the positional
// arguments left after parsing.
func (c *Command) parseFlags(args []string) ([]string, error) {
	flagSet := c.flagSet()
	if flagSet == nil {
		return args, nil
	}
	// pflag's own error output and usage dump are replaced by
	// usageError.
	flagSet.SetOutput(io.Discard)

	err := flagSet.Parse(args)
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return flagSet.Args(), err
	}
	message := err.Error()
	if strings.Contains(message, "unknown flag") || strings.Contains(message, "unknown shorthand flag") {
		if suggestion := suggestFlag(args, c.flagSet()); suggestion != "" {
			return nil, c.usageError("%s (did you mean %s?)", message, suggestion)
		}
	}
	return nil, c.usageError("%s", message)
}

// usageError formats a command line mistake with a pointer to help.
func (c *Command) usageError(format string, args ...any) error {
	return fmt.Errorf("%s\n\nRun '%s --help' for usage.", fmt.Sprintf(format, args...), c.fullName())
}

// PrintHelp writes structured help output to w.
func (c *Command) PrintHelp(w io.Writer) {
	name := c.fullName()

	if c.Description != "" {
		fmt.Fprintf(w, "%s\n\n", c.Description)
	} else if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	if c.Usage != "" {
		fmt.Fprintf(w, "Usage:\n  %s\n", c.Usage)
	} else if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n", name)
	} else {
		fmt.Fprintf(w, "Usage:\n  %s [flags]\n", name)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
	}

	if flagSet := c.flagSet(); flagSet != nil {
		if usage := flagSet.FlagUsages(); usage != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", usage)
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
			if example.Description != "" {
				fmt.Fprintln(w)
			}
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

// fullName returns the complete command path (e.g., "humanthrift schema show").
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

// isHelpFlag returns true for common help flag variants.
func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
