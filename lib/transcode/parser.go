// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/bureau-foundation/humanthrift/lib/idl"
	"github.com/bureau-foundation/humanthrift/lib/jsonvalue"
)

// parser walks a JSON value alongside its type descriptor and appends
// the tokens a binary reader would produce for it. A parser is used
// for one message and then discarded.
type parser struct {
	store    *idl.Store
	maxDepth int
	logger   *slog.Logger
	trace    bool

	tokens []Token
	path   []string
	depth  int
}

func newParser(assembler *Assembler, tokens []Token) *parser {
	return &parser{
		store:    assembler.store,
		maxDepth: assembler.maxDepth,
		logger:   assembler.logger,
		trace:    assembler.logger.Enabled(context.Background(), slog.LevelDebug),
		tokens:   tokens,
	}
}

func (p *parser) emit(token Token) {
	p.tokens = append(p.tokens, token)
	if p.trace {
		p.logger.Debug("token produced",
			"token", token.String(),
			"path", p.pathString(),
			"index", len(p.tokens)-1,
		)
	}
}

// mark and truncate bracket a region of the token slice so that a
// failed parse can be rolled back.
func (p *parser) mark() int { return len(p.tokens) }

func (p *parser) truncate(mark int) { p.tokens = p.tokens[:mark] }

func (p *parser) push(segment string) { p.path = append(p.path, segment) }

func (p *parser) pop() { p.path = p.path[:len(p.path)-1] }

// pathString renders the path to the value being parsed: names are
// joined with dots, list indexes and map keys are bracketed.
func (p *parser) pathString() string {
	var builder strings.Builder
	for i, segment := range p.path {
		if i > 0 && !strings.HasPrefix(segment, "[") {
			builder.WriteByte('.')
		}
		builder.WriteString(segment)
	}
	return builder.String()
}

func (p *parser) fail(kind Kind, format string, args ...any) error {
	err := newError(kind, format, args...)
	err.Path = p.pathString()
	return err
}

// locate attaches the current path to an *Error that has none.
func (p *parser) locate(err error) error {
	var decodeError *Error
	if errors.As(err, &decodeError) && decodeError.Path == "" {
		located := *decodeError
		located.Path = p.pathString()
		return &located
	}
	return err
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		return p.fail(KindDepthLimit, "nesting exceeds %d levels", p.maxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) mismatch(expected string, value jsonvalue.Value) error {
	return p.fail(KindTypeMismatch, "expected %s, got %s", expected, value.Kind())
}

// value emits the tokens for one value of type t.
func (p *parser) value(t *idl.Type, value jsonvalue.Value) error {
	if t == nil {
		return p.fail(KindUnknownType, "missing type descriptor")
	}
	switch t.Name {
	case "bool":
		boolean, ok := value.Bool()
		if !ok {
			return p.mismatch("boolean", value)
		}
		p.emit(scalarToken(Scalar{Type: thrift.BOOL, Bool: boolean}))
		return nil

	case "i8", "i16", "i32", "i64":
		if value.Kind() != jsonvalue.Number {
			return p.mismatch("number", value)
		}
		integer, err := value.Int64()
		if err != nil {
			return p.fail(KindTypeMismatch, "%s: %v", t.Name, err)
		}
		wire, _ := WireType(t.Name)
		p.emit(scalarToken(Scalar{Type: wire, Int: integer}))
		return nil

	case "double":
		if value.Kind() != jsonvalue.Number {
			return p.mismatch("number", value)
		}
		double, err := value.Float64()
		if err != nil {
			return p.fail(KindTypeMismatch, "%v", err)
		}
		p.emit(scalarToken(Scalar{Type: thrift.DOUBLE, Double: double}))
		return nil

	case "string", "binary":
		// Binary values are the bytes of the JSON string, as Copy
		// writes them back out.
		text, ok := value.Text()
		if !ok {
			return p.mismatch("string", value)
		}
		p.emit(scalarToken(Scalar{Type: thrift.STRING, Text: text}))
		return nil

	case "struct", "union", "exception":
		definition, ok := p.store.Struct(t.Class)
		if !ok {
			return p.fail(KindSchemaNotFound, "struct %q is not in the schema", t.Class)
		}
		return p.fields(definition, value)

	case "map":
		return p.mapValue(t, value)

	case "list", "set":
		return p.listValue(t, value)
	}
	return p.fail(KindUnknownType, "unknown type name %q", t.Name)
}

// fields emits one field header and value per object member, in the
// order the members appear, followed by a stop.
func (p *parser) fields(definition *idl.Struct, value jsonvalue.Value) error {
	if value.Kind() != jsonvalue.Object {
		return p.mismatch("object", value)
	}
	if err := p.enter(); err != nil {
		return err
	}
	defer p.leave()

	for _, member := range value.Members() {
		p.push(member.Key)
		field, ok := definition.FieldByName(member.Key)
		if !ok {
			return p.fail(KindUnknownField, "%s has no field %q", definition.Name, member.Key)
		}
		wire, err := WireType(field.Type.Name)
		if err != nil {
			return p.locate(err)
		}
		p.emit(fieldHeader(field.Name, wire, field.Key))
		if err := p.value(field.Type, member.Value); err != nil {
			return err
		}
		p.pop()
	}
	p.emit(structStop())
	return nil
}

func (p *parser) mapValue(t *idl.Type, value jsonvalue.Value) error {
	if value.Kind() != jsonvalue.Object {
		return p.mismatch("object", value)
	}
	if t.Key == nil || t.Value == nil {
		return p.fail(KindUnknownType, "map type without key or value descriptor")
	}
	keyWire, err := WireType(t.Key.Name)
	if err != nil {
		return p.locate(err)
	}
	valueWire, err := WireType(t.Value.Name)
	if err != nil {
		return p.locate(err)
	}
	if err := p.enter(); err != nil {
		return err
	}
	defer p.leave()

	members := value.Members()
	p.emit(Token{
		Kind:      TokenContainer,
		Container: thrift.MAP,
		Type:      keyWire,
		ValueType: valueWire,
		Size:      len(members),
	})
	for _, member := range members {
		p.push("[" + strconv.Quote(member.Key) + "]")
		key, err := p.mapKey(t.Key, member.Key)
		if err != nil {
			return err
		}
		if err := p.value(t.Key, key); err != nil {
			return err
		}
		if err := p.value(t.Value, member.Value); err != nil {
			return err
		}
		p.pop()
	}
	return nil
}

// mapKey recovers a typed key from JSON object key text. String and
// binary keys are taken verbatim; any other key type is parsed as a
// JSON literal, so "7" is the integer 7 and "true" the boolean.
func (p *parser) mapKey(keyType *idl.Type, text string) (jsonvalue.Value, error) {
	if keyType.Name == "string" || keyType.Name == "binary" {
		return jsonvalue.StringValue(text), nil
	}
	key, err := jsonvalue.Parse([]byte(text))
	if err != nil {
		return jsonvalue.Value{}, p.fail(KindTypeMismatch, "map key %q is not a valid %s", text, keyType)
	}
	return key, nil
}

func (p *parser) listValue(t *idl.Type, value jsonvalue.Value) error {
	if value.Kind() != jsonvalue.Array {
		return p.mismatch("array", value)
	}
	if t.Elem == nil {
		return p.fail(KindUnknownType, "%s type without element descriptor", t.Name)
	}
	elemWire, err := WireType(t.Elem.Name)
	if err != nil {
		return p.locate(err)
	}
	if err := p.enter(); err != nil {
		return err
	}
	defer p.leave()

	container := thrift.TType(thrift.LIST)
	if t.Name == "set" {
		container = thrift.SET
	}
	elements := value.Elements()
	p.emit(Token{Kind: TokenContainer, Container: container, Type: elemWire, Size: len(elements)})
	for i, element := range elements {
		p.push("[" + strconv.Itoa(i) + "]")
		if err := p.value(t.Elem, element); err != nil {
			return err
		}
		p.pop()
	}
	return nil
}
