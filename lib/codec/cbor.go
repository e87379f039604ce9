// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2) so that
// equal schema sets encode to identical bytes. Schema digests depend
// on this.
var encMode cbor.EncMode

// decMode decodes snapshot payloads. Unknown fields are ignored so a
// newer snapshot writer can add fields without breaking older readers.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Snapshots never use non-string map keys; any-typed targets
		// should come back as map[string]any so they can be re-encoded
		// as JSON by the CLI.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// Schema documents nest types (map<string, list<map<...>>>)
		// and structs deeply, but a legitimate document stays far
		// below this.
		MaxNestedLevels: 256,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for
// data. The CLI uses it to inspect snapshot payloads.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
