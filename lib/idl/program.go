// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"encoding/json"
	"fmt"
)

// Program is one IDL program (one .thrift file).
type Program struct {
	Name     string    `json:"name"`
	Structs  []Struct  `json:"structs,omitempty"`
	Services []Service `json:"services,omitempty"`
}

// Struct describes a struct, union or exception. The three shapes
// decode identically; the flags only matter to generated code.
type Struct struct {
	Name        string  `json:"name"`
	IsException bool    `json:"isException,omitempty"`
	IsUnion     bool    `json:"isUnion,omitempty"`
	Fields      []Field `json:"fields"`

	byName map[string]int
	byID   map[int16]int
}

// FieldByName returns the field with the given name.
func (s *Struct) FieldByName(name string) (*Field, bool) {
	index, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return &s.Fields[index], true
}

// FieldByID returns the field with the given field id.
func (s *Struct) FieldByID(id int16) (*Field, bool) {
	index, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return &s.Fields[index], true
}

// index builds the name and id lookups. Field ids and names must be
// unique within the struct.
func (s *Struct) index(owner string) error {
	s.byName = make(map[string]int, len(s.Fields))
	s.byID = make(map[int16]int, len(s.Fields))
	for i, field := range s.Fields {
		if field.Name == "" {
			return fmt.Errorf("%s: field %d has no name", owner, i)
		}
		if field.Type == nil || field.Type.Name == "" {
			return fmt.Errorf("%s.%s: missing typeId", owner, field.Name)
		}
		if _, exists := s.byName[field.Name]; exists {
			return fmt.Errorf("%s: duplicate field name %q", owner, field.Name)
		}
		if previous, exists := s.byID[field.Key]; exists {
			return fmt.Errorf("%s: fields %q and %q share id %d",
				owner, s.Fields[previous].Name, field.Name, field.Key)
		}
		s.byName[field.Name] = i
		s.byID[field.Key] = i
	}
	return nil
}

// Field is a struct field, function argument or declared exception.
type Field struct {
	Name     string `json:"name"`
	Key      int16  `json:"key"`
	Required string `json:"required,omitempty"`
	Type     *Type  `json:"type"`
}

// Service is a Thrift service. Name is qualified: "<program>.<service>".
type Service struct {
	Name      string     `json:"name"`
	Functions []Function `json:"functions"`

	byName map[string]int
}

// Function returns the function with the given name.
func (s *Service) Function(name string) (*Function, bool) {
	index, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return &s.Functions[index], true
}

func (s *Service) index() error {
	s.byName = make(map[string]int, len(s.Functions))
	for i := range s.Functions {
		function := &s.Functions[i]
		if function.Name == "" {
			return fmt.Errorf("service %s: function %d has no name", s.Name, i)
		}
		if _, exists := s.byName[function.Name]; exists {
			return fmt.Errorf("service %s: duplicate function %q", s.Name, function.Name)
		}
		if err := function.index(s.Name); err != nil {
			return err
		}
		s.byName[function.Name] = i
	}
	return nil
}

// Function is one service method.
type Function struct {
	Name       string  `json:"name"`
	Oneway     bool    `json:"oneway,omitempty"`
	ReturnType *Type   `json:"returnType"`
	Arguments  []Field `json:"arguments"`
	Exceptions []Field `json:"exceptions,omitempty"`

	args   Struct
	result Struct
}

// Args returns the synthetic struct whose fields are the function's
// arguments, as the generated "<name>_args" struct sees them.
func (f *Function) Args() *Struct { return &f.args }

// Result returns the synthetic reply struct: field 0 "success" typed as
// the return type (absent for void), plus one field per declared
// exception.
func (f *Function) Result() *Struct { return &f.result }

// Exception returns the declared exception with the given name.
func (f *Function) Exception(name string) (*Field, bool) {
	field, ok := f.result.FieldByName(name)
	if !ok || field.Name == SuccessField {
		return nil, false
	}
	return field, true
}

// SuccessField is the name of the reply struct's return-value field.
const SuccessField = "success"

func (f *Function) index(service string) error {
	owner := service + "." + f.Name
	if f.ReturnType == nil || f.ReturnType.Name == "" {
		return fmt.Errorf("%s: missing returnTypeId", owner)
	}

	f.args = Struct{Name: f.Name + "_args", Fields: f.Arguments}
	if err := f.args.index(owner + " arguments"); err != nil {
		return err
	}

	var resultFields []Field
	if !f.ReturnType.IsVoid() {
		resultFields = append(resultFields, Field{Name: SuccessField, Key: 0, Type: f.ReturnType})
	}
	resultFields = append(resultFields, f.Exceptions...)
	f.result = Struct{Name: f.Name + "_result", Fields: resultFields}
	if err := f.result.index(owner + " exceptions"); err != nil {
		return err
	}
	return nil
}

// Type describes the shape of a value. Class is set for struct, union
// and exception types (and enums, which decode as i32). Key and Value
// are set for maps, Elem for lists and sets.
type Type struct {
	Name  string `json:"typeId"`
	Class string `json:"class,omitempty"`
	Key   *Type  `json:"keyType,omitempty"`
	Value *Type  `json:"valueType,omitempty"`
	Elem  *Type  `json:"elemType,omitempty"`
}

// IsVoid reports whether t is the return type of a void function.
func (t *Type) IsVoid() bool { return t != nil && t.Name == "void" }

// String renders t in IDL-like notation, for diagnostics.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Name {
	case "map":
		return "map<" + t.Key.String() + "," + t.Value.String() + ">"
	case "list", "set":
		return t.Name + "<" + t.Elem.String() + ">"
	case "struct", "union", "exception":
		return t.Name + " " + t.Class
	default:
		return t.Name
	}
}

// typeDocument is a type descriptor as written by the JSON generator.
// The same keys may also appear flattened directly on a field.
type typeDocument struct {
	TypeID      string        `json:"typeId"`
	Class       string        `json:"class"`
	KeyTypeID   string        `json:"keyTypeId"`
	KeyType     *typeDocument `json:"keyType"`
	ValueTypeID string        `json:"valueTypeId"`
	ValueType   *typeDocument `json:"valueType"`
	ElemTypeID  string        `json:"elemTypeId"`
	ElemType    *typeDocument `json:"elemType"`
}

// resolve converts a descriptor into a Type. typeID, when non-empty,
// names the type and takes precedence over the descriptor's own typeId
// (the generator repeats it in both places). A nil receiver yields a
// bare type.
func (d *typeDocument) resolve(typeID string) *Type {
	name := typeID
	if name == "" && d != nil {
		name = d.TypeID
	}
	if name == "" {
		return nil
	}
	result := &Type{Name: name}
	if d == nil {
		return result
	}
	result.Class = d.Class
	if d.KeyTypeID != "" || d.KeyType != nil {
		result.Key = d.KeyType.resolve(d.KeyTypeID)
	}
	if d.ValueTypeID != "" || d.ValueType != nil {
		result.Value = d.ValueType.resolve(d.ValueTypeID)
	}
	if d.ElemTypeID != "" || d.ElemType != nil {
		result.Elem = d.ElemType.resolve(d.ElemTypeID)
	}
	return result
}

type fieldDocument struct {
	Name     string          `json:"name"`
	Key      *int16          `json:"key"`
	Required json.RawMessage `json:"required"`
	Type     *typeDocument   `json:"type"`
	typeDocument
}

// UnmarshalJSON accepts both the generator's field layout and the
// normalized layout that MarshalJSON produces.
func (f *Field) UnmarshalJSON(data []byte) error {
	var document fieldDocument
	if err := json.Unmarshal(data, &document); err != nil {
		return err
	}
	if document.Key == nil {
		return fmt.Errorf("field %q: missing key", document.Name)
	}

	descriptor := document.Type
	if descriptor == nil {
		descriptor = &document.typeDocument
	}

	*f = Field{
		Name:     document.Name,
		Key:      *document.Key,
		Required: requiredness(document.Required),
		Type:     descriptor.resolve(document.TypeID),
	}
	return nil
}

// requiredness accepts the generator's string form ("required",
// "optional", "req_out") and the boolean some hand-written documents
// use.
func requiredness(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil && flag {
		return "required"
	}
	return ""
}

type functionDocument struct {
	Name         string        `json:"name"`
	Oneway       bool          `json:"oneway"`
	ReturnTypeID string        `json:"returnTypeId"`
	ReturnType   *typeDocument `json:"returnType"`
	Arguments    []Field       `json:"arguments"`
	Exceptions   []Field       `json:"exceptions"`
}

// UnmarshalJSON accepts returnTypeId/returnType in generator form as
// well as a normalized returnType.
func (f *Function) UnmarshalJSON(data []byte) error {
	var document functionDocument
	if err := json.Unmarshal(data, &document); err != nil {
		return err
	}
	returnType := document.ReturnType.resolve(document.ReturnTypeID)
	if returnType == nil {
		return fmt.Errorf("function %q: missing returnTypeId", document.Name)
	}
	*f = Function{
		Name:       document.Name,
		Oneway:     document.Oneway,
		ReturnType: returnType,
		Arguments:  document.Arguments,
		Exceptions: document.Exceptions,
	}
	return nil
}

// NewStruct builds an indexed struct outside of any program, for
// synthetic shapes such as the application exception envelope.
func NewStruct(name string, fields ...Field) (*Struct, error) {
	definition := &Struct{Name: name, Fields: fields}
	if err := definition.index(name); err != nil {
		return nil, err
	}
	return definition, nil
}
