// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

// descriptor mirrors the shape of the schema types: json tags only,
// recursive pointers, omitempty.
type descriptor struct {
	Name  string      `json:"typeId"`
	Class string      `json:"class,omitempty"`
	Elem  *descriptor `json:"elemType,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := descriptor{
		Name: "list",
		Elem: &descriptor{Name: "struct", Class: "tutorial.Work"},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded descriptor
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Name != original.Name || decoded.Elem == nil || *decoded.Elem != *original.Elem {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	first, err := Marshal(map[string]int{"b": 2, "a": 1, "c": 3})
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(map[string]int{"c": 3, "a": 1, "b": 2})
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestJSONTagNamesUsed(t *testing.T) {
	data, err := Marshal(descriptor{Name: "i32"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(notation, `"typeId"`) {
		t.Errorf("notation %q does not use the json tag name", notation)
	}
	if strings.Contains(notation, `"class"`) {
		t.Errorf("notation %q contains an omitempty field", notation)
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var decoded descriptor
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &decoded); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"name": "tutorial"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded.(map[string]any); !ok {
		t.Errorf("decoded %T, want map[string]any", decoded)
	}
}
