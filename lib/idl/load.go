// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/jsonc"
)

// ParseProgram strips JSONC comments and trailing commas from data,
// then decodes one schema document.
func ParseProgram(data []byte) (Program, error) {
	var program Program
	if err := json.Unmarshal(jsonc.ToJSON(data), &program); err != nil {
		return Program{}, fmt.Errorf("parsing schema document: %w", err)
	}
	if program.Name == "" {
		return Program{}, fmt.Errorf("schema document has no program name")
	}
	return program, nil
}

// ReadProgramFile reads and parses one schema document from disk.
func ReadProgramFile(path string) (Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Program{}, fmt.Errorf("reading %s: %w", path, err)
	}
	program, err := ParseProgram(data)
	if err != nil {
		return Program{}, fmt.Errorf("%s: %w", path, err)
	}
	return program, nil
}

// ReadPrograms reads schema documents from each path. A path naming a
// directory contributes every *.json and *.jsonc file directly inside
// it, in lexical order; nested directories are not searched.
func ReadPrograms(paths ...string) ([]Program, error) {
	var programs []Program
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("schema path: %w", err)
		}
		if !info.IsDir() {
			program, err := ReadProgramFile(path)
			if err != nil {
				return nil, err
			}
			programs = append(programs, program)
			continue
		}

		files, err := schemaFiles(path)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("schema directory %s contains no .json or .jsonc files", path)
		}
		for _, file := range files {
			program, err := ReadProgramFile(file)
			if err != nil {
				return nil, err
			}
			programs = append(programs, program)
		}
	}
	return programs, nil
}

func schemaFiles(directory string) ([]string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", directory, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".json", ".jsonc":
			files = append(files, filepath.Join(directory, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
