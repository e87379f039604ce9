// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the humanthrift
// binary.
//
// The central type is [Command], which represents a named subcommand
// with optional nested [Command.Subcommands], a parameter struct whose
// tagged fields become flags ([BindFlags]), and a Run function.
// Commands are assembled into a tree by the commands package and
// dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and structured help output with examples.
//
// When a user types an unknown subcommand or flag, the framework
// computes Levenshtein edit distance against all known names and
// suggests the closest match (threshold: distance <= 3).
//
// [NewCommandLogger] builds the slog logger every command uses: text on
// a terminal, JSON otherwise.
package cli
