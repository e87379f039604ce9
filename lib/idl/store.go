// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"encoding/hex"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/humanthrift/lib/codec"
)

// Digest is a BLAKE3 fingerprint of a schema set.
type Digest [32]byte

// String returns the hex encoding of the digest.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short returns the first 12 hex characters, for log lines.
func (d Digest) Short() string { return hex.EncodeToString(d[:6]) }

// schemaDomainKey separates schema digests from any other BLAKE3 keyed
// hash. ASCII "humanthrift.schema", zero padded to 32 bytes.
var schemaDomainKey = [32]byte{
	'h', 'u', 'm', 'a', 'n', 't', 'h', 'r', 'i', 'f', 't', '.',
	's', 'c', 'h', 'e', 'm', 'a', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Store is an immutable index over a set of programs.
type Store struct {
	programs []Program // sorted by name
	byName   map[string]*Program
	structs  map[string]*Struct
	services map[string]*Service
	digest   Digest
}

// NewStore indexes programs. Program names must be unique, as must
// struct and service names within a program, function names within a
// service, and field names and ids within a struct or argument list.
//
// The store copies the program, struct, service and function slices it
// indexes; the Field and Type values they reference are shared and
// must not be modified afterwards.
func NewStore(programs ...Program) (*Store, error) {
	store := &Store{
		programs: make([]Program, 0, len(programs)),
		byName:   make(map[string]*Program, len(programs)),
		structs:  make(map[string]*Struct),
		services: make(map[string]*Service),
	}

	for _, program := range programs {
		if program.Name == "" {
			return nil, fmt.Errorf("program with no name")
		}
		program.Structs = slices.Clone(program.Structs)
		program.Services = slices.Clone(program.Services)
		for i := range program.Services {
			program.Services[i].Functions = slices.Clone(program.Services[i].Functions)
		}
		store.programs = append(store.programs, program)
	}
	sort.SliceStable(store.programs, func(i, j int) bool {
		return store.programs[i].Name < store.programs[j].Name
	})

	for i := range store.programs {
		program := &store.programs[i]
		if _, exists := store.byName[program.Name]; exists {
			return nil, fmt.Errorf("duplicate program %q", program.Name)
		}
		store.byName[program.Name] = program

		for j := range program.Structs {
			definition := &program.Structs[j]
			qualified := program.Name + "." + definition.Name
			if _, exists := store.structs[qualified]; exists {
				return nil, fmt.Errorf("duplicate struct %q", qualified)
			}
			if err := definition.index(qualified); err != nil {
				return nil, err
			}
			store.structs[qualified] = definition
		}

		for j := range program.Services {
			service := &program.Services[j]
			if !strings.HasPrefix(service.Name, program.Name+".") {
				return nil, fmt.Errorf("service %q in program %q is not qualified with the program name",
					service.Name, program.Name)
			}
			if _, exists := store.services[service.Name]; exists {
				return nil, fmt.Errorf("duplicate service %q", service.Name)
			}
			if err := service.index(); err != nil {
				return nil, err
			}
			store.services[service.Name] = service
		}
	}

	encoded, err := codec.Marshal(store.programs)
	if err != nil {
		return nil, fmt.Errorf("encoding schema for digest: %w", err)
	}
	store.digest = keyedHash(encoded)

	return store, nil
}

// Struct returns the struct, union or exception with the given
// qualified name ("<program>.<Struct>").
func (s *Store) Struct(qualified string) (*Struct, bool) {
	definition, ok := s.structs[qualified]
	return definition, ok
}

// Service returns the service named name in program.
func (s *Store) Service(program, name string) (*Service, bool) {
	service, ok := s.services[program+"."+name]
	return service, ok
}

// Function returns method from the service with the given qualified
// name ("<program>.<service>").
func (s *Store) Function(qualifiedService, method string) (*Function, bool) {
	service, ok := s.services[qualifiedService]
	if !ok {
		return nil, false
	}
	return service.Function(method)
}

// FindFunction searches every program, in name order, for a service
// called serviceName that declares method. serviceName is unqualified;
// the first program whose "<program>.<serviceName>" has the method wins.
func (s *Store) FindFunction(serviceName, method string) (*Function, bool) {
	for i := range s.programs {
		service, ok := s.services[s.programs[i].Name+"."+serviceName]
		if !ok {
			continue
		}
		if function, ok := service.Function(method); ok {
			return function, true
		}
	}
	return nil, false
}

// Program returns the program with the given name.
func (s *Store) Program(name string) (*Program, bool) {
	program, ok := s.byName[name]
	return program, ok
}

// Programs returns every program in name order. The slice must not be
// modified.
func (s *Store) Programs() []Program { return s.programs }

// Digest returns the BLAKE3 keyed hash of the deterministic CBOR
// encoding of every program. Two stores built from the same documents
// have the same digest regardless of the order documents were given in.
func (s *Store) Digest() Digest { return s.digest }

func keyedHash(data []byte) Digest {
	// NewKeyed only fails for a key that is not 32 bytes.
	hasher, err := blake3.NewKeyed(schemaDomainKey[:])
	if err != nil {
		panic("idl: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}
