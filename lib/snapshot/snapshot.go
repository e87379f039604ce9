// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot stores a whole schema in one file so that servers
// can start without parsing a directory of IDL documents.
//
// A snapshot is
//
//	magic "HTSNAP1\n" | compression (1 byte) | schema digest (32 bytes) |
//	uncompressed length (uvarint) | payload
//
// where the payload is the deterministic CBOR encoding of the store's
// programs. Reading a snapshot rebuilds the store and checks that its
// digest matches the header, so a snapshot never loads as a different
// schema than the one written.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/humanthrift/lib/codec"
	"github.com/bureau-foundation/humanthrift/lib/idl"
)

const magic = "HTSNAP1\n"

// maxPayloadSize bounds the uncompressed payload a reader accepts.
const maxPayloadSize = 256 << 20

// Header is the fixed part of a snapshot.
type Header struct {
	Compression Compression
	Digest      idl.Digest
	Size        int
}

// Encode serializes store. When the payload does not shrink under the
// requested compression it is stored uncompressed; Header reports what
// was used.
func Encode(store *idl.Store, compression Compression) ([]byte, Header, error) {
	payload, err := codec.Marshal(store.Programs())
	if err != nil {
		return nil, Header{}, fmt.Errorf("encoding schema: %w", err)
	}
	header := Header{Compression: compression, Digest: store.Digest(), Size: len(payload)}

	compressed, err := compress(payload, compression)
	if errors.Is(err, errIncompressible) {
		header.Compression = CompressionNone
		compressed = payload
	} else if err != nil {
		return nil, Header{}, err
	}

	var buffer bytes.Buffer
	buffer.Grow(len(magic) + 1 + len(header.Digest) + binary.MaxVarintLen64 + len(compressed))
	buffer.WriteString(magic)
	buffer.WriteByte(byte(header.Compression))
	buffer.Write(header.Digest[:])
	buffer.Write(binary.AppendUvarint(nil, uint64(header.Size)))
	buffer.Write(compressed)
	return buffer.Bytes(), header, nil
}

// ReadHeader parses the header of data and returns it with the
// remaining payload bytes.
func ReadHeader(data []byte) (Header, []byte, error) {
	if !bytes.HasPrefix(data, []byte(magic)) {
		return Header{}, nil, errors.New("not a schema snapshot (bad magic)")
	}
	rest := data[len(magic):]

	var header Header
	if len(rest) < 1+len(header.Digest) {
		return Header{}, nil, errors.New("snapshot header is truncated")
	}
	header.Compression = Compression(rest[0])
	copy(header.Digest[:], rest[1:1+len(header.Digest)])
	rest = rest[1+len(header.Digest):]

	size, n := binary.Uvarint(rest)
	if n <= 0 {
		return Header{}, nil, errors.New("snapshot payload length is malformed")
	}
	if size > maxPayloadSize {
		return Header{}, nil, fmt.Errorf("snapshot payload of %d bytes exceeds the %d byte limit", size, maxPayloadSize)
	}
	header.Size = int(size)
	return header, rest[n:], nil
}

// Payload returns the decompressed CBOR payload of data without
// decoding it.
func Payload(data []byte) ([]byte, Header, error) {
	header, payload, err := ReadHeader(data)
	if err != nil {
		return nil, Header{}, err
	}
	payload, err = decompress(payload, header.Compression, header.Size)
	if err != nil {
		return nil, Header{}, err
	}
	return payload, header, nil
}

// Decode rebuilds the store serialized in data.
func Decode(data []byte) (*idl.Store, Header, error) {
	payload, header, err := Payload(data)
	if err != nil {
		return nil, Header{}, err
	}

	var programs []idl.Program
	if err := codec.Unmarshal(payload, &programs); err != nil {
		return nil, Header{}, fmt.Errorf("decoding schema: %w", err)
	}
	store, err := idl.NewStore(programs...)
	if err != nil {
		return nil, Header{}, fmt.Errorf("indexing schema: %w", err)
	}
	if store.Digest() != header.Digest {
		return nil, Header{}, fmt.Errorf("snapshot digest mismatch: header %s, content %s",
			header.Digest.Short(), store.Digest().Short())
	}
	return store, header, nil
}

// WriteFile atomically writes a snapshot of store to path.
func WriteFile(path string, store *idl.Store, compression Compression) (Header, error) {
	data, header, err := Encode(store, compression)
	if err != nil {
		return Header{}, err
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.tmp")
	if err != nil {
		return Header{}, fmt.Errorf("creating temp snapshot file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return Header{}, fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return Header{}, fmt.Errorf("closing temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return Header{}, fmt.Errorf("renaming snapshot to %s: %w", path, err)
	}

	success = true
	return header, nil
}

// ReadFile loads the snapshot at path.
func ReadFile(path string) (*idl.Store, Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, fmt.Errorf("reading snapshot: %w", err)
	}
	store, header, err := Decode(data)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return store, header, nil
}
