// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by everything that
// persists or fingerprints schema data.
//
// Human-readable JSON is the format on the wire; CBOR is only used
// internally: schema snapshots written by "humanthrift schema snapshot"
// and the canonical byte form that schema digests are computed over.
// Both need Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. Same
// logical schema, same bytes, same digest.
//
// Schema types carry `json` struct tags only. fxamacker/cbor falls
// back to them when `cbor` tags are absent, so one tag controls the
// field names in both the JSON documents and the CBOR snapshots.
package codec
