// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/humanthrift/lib/idl"
)

func testStore(t *testing.T) *idl.Store {
	t.Helper()
	programs, err := idl.ReadPrograms("../idl/testdata")
	if err != nil {
		t.Fatalf("ReadPrograms: %v", err)
	}
	store, err := idl.NewStore(programs...)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestRoundTrip(t *testing.T) {
	store := testStore(t)

	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			data, header, err := Encode(store, compression)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if header.Digest != store.Digest() {
				t.Errorf("header digest = %s, want %s", header.Digest.Short(), store.Digest().Short())
			}

			decoded, decodedHeader, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if decodedHeader != header {
				t.Errorf("decoded header = %+v, want %+v", decodedHeader, header)
			}
			if decoded.Digest() != store.Digest() {
				t.Errorf("decoded digest = %s, want %s", decoded.Digest().Short(), store.Digest().Short())
			}

			// Lookup indexes are rebuilt, not carried in the payload.
			work, ok := decoded.Struct("tutorial.Work")
			if !ok {
				t.Fatal("tutorial.Work missing after decode")
			}
			field, ok := work.FieldByName("tags")
			if !ok {
				t.Fatal("field tags missing after decode")
			}
			if got := field.Type.String(); got != "map<string,list<i64>>" {
				t.Errorf("tags type = %s, want map<string,list<i64>>", got)
			}
		})
	}
}

func TestIncompressibleFallsBackToNone(t *testing.T) {
	random := make([]byte, 64)
	for i := range random {
		random[i] = byte(i*151 + 7)
	}
	if _, err := compress(random[:8], CompressionZstd); !errors.Is(err, errIncompressible) {
		t.Errorf("zstd on 8 bytes: err = %v, want errIncompressible", err)
	}
	if _, err := compress(random[:8], CompressionLZ4); !errors.Is(err, errIncompressible) {
		t.Errorf("lz4 on 8 bytes: err = %v, want errIncompressible", err)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	store := testStore(t)
	data, _, err := Encode(store, CompressionNone)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   string
	}{
		{
			name:   "magic",
			mutate: func(b []byte) []byte { b[0] = 'X'; return b },
			want:   "bad magic",
		},
		{
			name:   "truncated header",
			mutate: func(b []byte) []byte { return b[:len(magic)+4] },
			want:   "truncated",
		},
		{
			name: "digest",
			mutate: func(b []byte) []byte {
				b[len(magic)+1] ^= 0xff
				return b
			},
			want: "digest mismatch",
		},
		{
			name:   "short payload",
			mutate: func(b []byte) []byte { return b[:len(b)-1] },
			want:   "header says",
		},
		{
			name: "compression tag",
			mutate: func(b []byte) []byte {
				b[len(magic)] = 9
				return b
			},
			want: "unsupported compression unknown(9)",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			corrupted := test.mutate(bytes.Clone(data))
			_, _, err := Decode(corrupted)
			if err == nil {
				t.Fatal("Decode succeeded on corrupted snapshot")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error = %v, want it to mention %q", err, test.want)
			}
		})
	}
}

func TestWriteFileReadFile(t *testing.T) {
	store := testStore(t)
	path := filepath.Join(t.TempDir(), "schema.snap")

	written, err := WriteFile(path, store, CompressionZstd)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, read, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if read != written {
		t.Errorf("read header = %+v, written %+v", read, written)
	}
	if loaded.Digest() != store.Digest() {
		t.Errorf("digest = %s, want %s", loaded.Digest().Short(), store.Digest().Short())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries after WriteFile, want only the snapshot", len(entries))
	}
}

func TestParseCompression(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompression(compression.String())
		if err != nil || parsed != compression {
			t.Errorf("ParseCompression(%q) = %v, %v", compression.String(), parsed, err)
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression(gzip) succeeded")
	}
}
