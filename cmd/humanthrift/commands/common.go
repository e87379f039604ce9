// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"unicode"

	"github.com/bureau-foundation/humanthrift/cmd/humanthrift/cli"
	"github.com/bureau-foundation/humanthrift/lib/config"
	"github.com/bureau-foundation/humanthrift/lib/idl"
	"github.com/bureau-foundation/humanthrift/lib/snapshot"
	"github.com/bureau-foundation/humanthrift/lib/transcode"
)

// schemaParams are the flags every schema-aware command shares. Flags
// override the config file, which overrides built-in defaults.
type schemaParams struct {
	Config   string   `flag:"config" desc:"config file (default $HUMANTHRIFT_CONFIG)"`
	Schema   []string `flag:"schema,s" desc:"schema documents or directories of them"`
	Snapshot string   `flag:"snapshot" desc:"schema snapshot file (instead of --schema)"`
	Service  string   `flag:"service" desc:"service that bare method names resolve against"`
	MaxDepth int      `flag:"max-depth" desc:"struct and container nesting limit (0 keeps the configured value)"`
	Verbose  bool     `flag:"verbose,v" desc:"log at debug level, tracing every token"`
}

// session is the loaded configuration and schema a command runs with.
type session struct {
	config    *config.Config
	logger    *slog.Logger
	store     *idl.Store
	assembler *transcode.Assembler
}

// settings loads the config file, if any, and applies flag overrides.
func (p *schemaParams) settings() (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case p.Config != "":
		cfg, err = config.LoadFile(p.Config)
	case os.Getenv("HUMANTHRIFT_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if len(p.Schema) > 0 {
		cfg.Schema.Paths = p.Schema
		cfg.Schema.Snapshot = ""
	}
	if p.Snapshot != "" {
		cfg.Schema.Snapshot = p.Snapshot
	}
	if p.Service != "" {
		cfg.Service = p.Service
	}
	if p.MaxDepth != 0 {
		cfg.Protocol.MaxDepth = p.MaxDepth
	}
	if p.Verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// open loads the configuration and schema and builds the assembler.
func (p *schemaParams) open() (*session, error) {
	cfg, err := p.settings()
	if err != nil {
		return nil, err
	}
	level, err := cli.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := cli.NewCommandLogger(level)

	store, err := loadStore(cfg.Schema, logger)
	if err != nil {
		return nil, err
	}
	assembler, err := transcode.NewAssembler(transcode.Config{
		Store:    store,
		Service:  cfg.Service,
		MaxDepth: cfg.Protocol.MaxDepth,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return &session{config: cfg, logger: logger, store: store, assembler: assembler}, nil
}

// loadStore reads the schema from a snapshot when one is configured and
// from schema documents otherwise.
func loadStore(schema config.SchemaConfig, logger *slog.Logger) (*idl.Store, error) {
	if schema.Snapshot != "" {
		store, header, err := snapshot.ReadFile(schema.Snapshot)
		if err != nil {
			return nil, err
		}
		logger.Debug("schema snapshot loaded",
			"path", schema.Snapshot,
			"compression", header.Compression.String(),
			"schema_digest", header.Digest.Short(),
		)
		return store, nil
	}

	programs, err := idl.ReadPrograms(schema.Paths...)
	if err != nil {
		return nil, err
	}
	store, err := idl.NewStore(programs...)
	if err != nil {
		return nil, fmt.Errorf("indexing schema: %w", err)
	}
	logger.Debug("schema loaded",
		"programs", len(store.Programs()),
		"schema_digest", store.Digest().Short(),
	)
	return store, nil
}

// readInput resolves input data from either a file (the last element
// of args, if it names a regular file on disk) or stdin.
//
// When hexMode is true, the raw bytes are treated as hex: whitespace
// is stripped and the hex is decoded to binary.
//
// Returns the input bytes and the args with any consumed file path
// removed.
func readInput(stdin io.Reader, args []string, hexMode bool) ([]byte, []string, error) {
	var data []byte
	remainingArgs := args

	if length := len(args); length > 0 {
		candidate := args[length-1]
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			data, err = os.ReadFile(candidate)
			if err != nil {
				return nil, nil, fmt.Errorf("read %s: %w", candidate, err)
			}
			remainingArgs = args[:length-1]
		}
	}

	if data == nil {
		var err error
		data, err = io.ReadAll(stdin)
		if err != nil {
			return nil, nil, fmt.Errorf("read stdin: %w", err)
		}
	}

	if hexMode {
		decoded, err := decodeHexInput(data)
		if err != nil {
			return nil, nil, err
		}
		data = decoded
	}

	return data, remainingArgs, nil
}

// decodeHexInput strips whitespace from hex-encoded input and decodes
// it. Whitespace between digit pairs is allowed ("80 01 00 01").
func decodeHexInput(data []byte) ([]byte, error) {
	cleaned := bytes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, data)

	if len(cleaned) == 0 {
		return nil, fmt.Errorf("empty input after stripping whitespace from hex")
	}

	decoded := make([]byte, hex.DecodedLen(len(cleaned)))
	count, err := hex.Decode(decoded, cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded[:count], nil
}

// noPositional rejects leftover positional arguments.
func noPositional(command string, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%s: unexpected argument %q", command, args[0])
	}
	return nil
}
