// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package idl loads and indexes Thrift schema documents.
//
// A schema document is the JSON that "thrift --gen json" writes for
// one IDL program: the program name, its structs (plain structs,
// unions and exceptions alike), and its services with their
// functions. Documents may also be hand-authored as JSONC, with
// comments and trailing commas.
//
// Every field, argument, return value and map/list/set element is
// described by a [Type]: a type name ("i32", "struct", "map", ...),
// the qualified class for struct-like types ("tutorial.Work"), and
// nested descriptors for container elements. Type names are not
// validated at load time; an unknown name is a decode-time failure for
// the message that reaches it.
//
// [NewStore] indexes a set of programs once. The resulting [Store] is
// immutable and safe for concurrent use by any number of readers:
//
//	programs, err := idl.ReadPrograms("schema/")
//	store, err := idl.NewStore(programs...)
//	function, ok := store.FindFunction("Calculator", "add")
//
// Lookups report absence with a boolean rather than an error. Whether a
// missing name is fatal is the caller's decision.
package idl
