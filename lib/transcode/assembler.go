// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/bureau-foundation/humanthrift/lib/idl"
	"github.com/bureau-foundation/humanthrift/lib/jsonvalue"
)

// DefaultMaxDepth is the nesting limit used when Config.MaxDepth is
// zero. It matches the recursion limit of Thrift's own Skip.
const DefaultMaxDepth = thrift.DEFAULT_RECURSION_DEPTH

// Envelope keys.
const (
	keyMethod    = "method"
	keyArguments = "arguments"
	keyResult    = "result"
	keyException = "exception"
)

// Sequence ids carried by decoded messages. The JSON format has no
// sequence ids, so calls and replies get fixed values.
const (
	CallSeqID  int32 = 0
	ReplySeqID int32 = 1
)

// Config configures an Assembler.
type Config struct {
	// Store resolves struct and service names. Required.
	Store *idl.Store

	// Service is the unqualified service that bare method names
	// ("ping" rather than "Echo.ping") resolve against.
	Service string

	// MaxDepth bounds struct and container nesting. Zero means
	// DefaultMaxDepth.
	MaxDepth int

	// Logger receives a debug record per token produced and consumed.
	// Nil discards.
	Logger *slog.Logger
}

// Assembler turns decoded JSON envelopes into token sequences. It is
// immutable and safe for concurrent use; every protocol a factory
// creates shares one.
type Assembler struct {
	store    *idl.Store
	service  string
	maxDepth int
	logger   *slog.Logger
}

// NewAssembler validates config and returns an Assembler.
func NewAssembler(config Config) (*Assembler, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("transcode: schema store is required")
	}
	if config.MaxDepth < 0 {
		return nil, fmt.Errorf("transcode: max depth %d is negative", config.MaxDepth)
	}
	assembler := &Assembler{
		store:    config.Store,
		service:  config.Service,
		maxDepth: config.MaxDepth,
		logger:   config.Logger,
	}
	if assembler.maxDepth == 0 {
		assembler.maxDepth = DefaultMaxDepth
	}
	if assembler.logger == nil {
		assembler.logger = slog.New(slog.DiscardHandler)
	}
	return assembler, nil
}

// Store returns the schema store the assembler resolves names in.
func (a *Assembler) Store() *idl.Store { return a.store }

// Service returns the default service for bare method names.
func (a *Assembler) Service() string { return a.service }

// Message is one decoded envelope.
type Message struct {
	// Name is the bare method name.
	Name string
	// Service is the service the method resolved against: the
	// service part of a qualified method, otherwise the default.
	Service string
	Type  thrift.TMessageType
	SeqID int32

	// Tokens is the message body: the fields of the arguments, result
	// or application exception struct, ending with a stop.
	Tokens []Token

	// Deferred is a reply body error. When set, Tokens holds a bare
	// stop and the error belongs to whoever reads the body.
	Deferred error
}

// Assemble decodes envelope into a Message. A non-nil error is fatal
// for the message; the returned Message then carries only the method
// name, when one could be read.
func (a *Assembler) Assemble(envelope jsonvalue.Value) (*Message, error) {
	return a.assemble(envelope, nil)
}

// assemble appends the body tokens to buffer, which lets a protocol
// reuse one backing array across messages.
func (a *Assembler) assemble(envelope jsonvalue.Value, buffer []Token) (*Message, error) {
	message := &Message{Type: thrift.INVALID_TMESSAGE_TYPE}
	if envelope.Kind() != jsonvalue.Object {
		return message, newError(KindMalformed, "message is a JSON %s, not an object", envelope.Kind())
	}

	method := ""
	if value, ok := envelope.Lookup(keyMethod); ok {
		text, ok := value.Text()
		if !ok {
			return message, newError(KindInvalidEnvelope, "method is a %s, not a string", value.Kind())
		}
		method = text
	}
	serviceName, bareName := a.splitMethod(method)
	message.Name = bareName
	message.Service = serviceName

	present := 0
	for _, key := range []string{keyArguments, keyResult, keyException} {
		if envelope.Has(key) {
			present++
		}
	}
	if present != 1 {
		return message, newError(KindInvalidEnvelope,
			"message must carry exactly one of %q, %q or %q, found %d",
			keyArguments, keyResult, keyException, present)
	}

	p := newParser(a, buffer[:0])
	var err error
	switch {
	case envelope.Has(keyArguments):
		err = a.arguments(p, message, serviceName, bareName, envelope)
	case envelope.Has(keyResult):
		err = a.result(p, message, serviceName, bareName, envelope)
	default:
		err = a.exception(p, message, envelope)
	}
	if err != nil {
		message.Type = thrift.INVALID_TMESSAGE_TYPE
		message.SeqID = 0
		message.Tokens = nil
		return message, err
	}
	message.Tokens = p.tokens

	a.logger.Debug("message assembled",
		"method", method,
		"type", messageTypeName(message.Type),
		"tokens", len(message.Tokens),
		"deferred", message.Deferred != nil,
	)
	return message, nil
}

// splitMethod separates "<service>.<method>" into its parts. A bare
// method name belongs to the default service. The service part may
// itself be qualified with its program ("tutorial.Calculator.ping").
func (a *Assembler) splitMethod(method string) (service, name string) {
	dot := strings.LastIndexByte(method, '.')
	if dot < 0 {
		return a.service, method
	}
	return method[:dot], method[dot+1:]
}

func (a *Assembler) function(service, name string) (*idl.Function, bool) {
	return lookupFunction(a.store, service, name)
}

// lookupFunction resolves name against service, which is either
// program-qualified or a bare service name searched across programs.
func lookupFunction(store *idl.Store, service, name string) (*idl.Function, bool) {
	if strings.Contains(service, ".") {
		return store.Function(service, name)
	}
	return store.FindFunction(service, name)
}

func (a *Assembler) arguments(p *parser, message *Message, service, name string, envelope jsonvalue.Value) error {
	message.Type = thrift.CALL
	message.SeqID = CallSeqID

	function, ok := a.function(service, name)
	if !ok {
		// An unknown method still reads as an empty struct so the
		// processor can answer with its own unknown-method exception.
		a.logger.Debug("method not in schema", "service", service, "method", name)
		p.emit(structStop())
		return nil
	}
	if function.Oneway {
		message.Type = thrift.ONEWAY
	}

	arguments, _ := envelope.Lookup(keyArguments)
	p.push(keyArguments)
	return p.fields(function.Args(), arguments)
}

func (a *Assembler) result(p *parser, message *Message, service, name string, envelope jsonvalue.Value) error {
	message.Type = thrift.REPLY
	message.SeqID = ReplySeqID

	function, ok := a.function(service, name)
	if !ok {
		a.logger.Debug("method not in schema", "service", service, "method", name)
		p.emit(structStop())
		return nil
	}

	result, _ := envelope.Lookup(keyResult)
	if result.Kind() != jsonvalue.Object {
		return &Error{Kind: KindInvalidResult, Path: keyResult,
			Message: fmt.Sprintf("result is a JSON %s, not an object", result.Kind())}
	}

	p.push(keyResult)
	if success, ok := result.Lookup(idl.SuccessField); ok {
		field, declared := function.Result().FieldByName(idl.SuccessField)
		if !declared {
			p.emit(structStop())
			message.Deferred = &Error{Kind: KindInvalidResult, Path: keyResult + "." + idl.SuccessField,
				Message: fmt.Sprintf("%s returns void but the result has a success value", name)}
			a.logger.Debug("reply body deferred", "error", message.Deferred)
			return nil
		}
		a.deferBody(p, message, field, success)
		return nil
	}

	switch result.Len() {
	case 0:
		p.emit(structStop())
		return nil
	case 1:
	default:
		return &Error{Kind: KindInvalidResult, Path: keyResult,
			Message: fmt.Sprintf("result has %d members and no success value", result.Len())}
	}

	member := result.Members()[0]
	field, ok := function.Exception(member.Key)
	if !ok {
		return &Error{Kind: KindInvalidResult, Path: keyResult,
			Message: fmt.Sprintf("%q is not a declared exception of %s", member.Key, name)}
	}
	a.deferBody(p, message, field, member.Value)
	return nil
}

// deferBody emits a single-field reply body. On failure the body is
// rolled back to a bare stop and the error saved for the reader.
func (a *Assembler) deferBody(p *parser, message *Message, field *idl.Field, value jsonvalue.Value) {
	mark := p.mark()
	err := func() error {
		p.push(field.Name)
		wire, err := WireType(field.Type.Name)
		if err != nil {
			return p.locate(err)
		}
		p.emit(fieldHeader(field.Name, wire, field.Key))
		if err := p.value(field.Type, value); err != nil {
			return err
		}
		p.pop()
		p.emit(structStop())
		return nil
	}()
	if err != nil {
		p.truncate(mark)
		p.emit(structStop())
		message.Deferred = err
		a.logger.Debug("reply body deferred", "error", err)
	}
}

func (a *Assembler) exception(p *parser, message *Message, envelope jsonvalue.Value) error {
	message.Type = thrift.EXCEPTION
	message.SeqID = ReplySeqID

	exception, _ := envelope.Lookup(keyException)
	if exception.Kind() != jsonvalue.Object {
		return &Error{Kind: KindInvalidEnvelope, Path: keyException,
			Message: fmt.Sprintf("exception is a JSON %s, not an object", exception.Kind())}
	}

	text := ""
	if value, ok := exception.Lookup("message"); ok {
		text, ok = value.Text()
		if !ok {
			return &Error{Kind: KindTypeMismatch, Path: keyException + ".message",
				Message: fmt.Sprintf("expected string, got %s", value.Kind())}
		}
	}
	exceptionType := int64(thrift.UNKNOWN_APPLICATION_EXCEPTION)
	if value, ok := exception.Lookup("type"); ok {
		number, err := value.Int64()
		if err != nil {
			return &Error{Kind: KindTypeMismatch, Path: keyException + ".type",
				Message: fmt.Sprintf("expected number, got %s", value.Kind())}
		}
		exceptionType = number
	}

	p.emit(fieldHeader("message", thrift.STRING, 1))
	p.emit(scalarToken(Scalar{Type: thrift.STRING, Text: text}))
	p.emit(fieldHeader("type", thrift.I32, 2))
	p.emit(scalarToken(Scalar{Type: thrift.I32, Int: exceptionType}))
	p.emit(structStop())
	return nil
}

func messageTypeName(messageType thrift.TMessageType) string {
	switch messageType {
	case thrift.CALL:
		return "call"
	case thrift.REPLY:
		return "reply"
	case thrift.EXCEPTION:
		return "exception"
	case thrift.ONEWAY:
		return "oneway"
	}
	return "invalid"
}

// parseStruct decodes one struct value outside any envelope.
func (a *Assembler) parseStruct(class string, value jsonvalue.Value, buffer []Token) ([]Token, error) {
	definition, ok := a.store.Struct(class)
	if !ok {
		return nil, newError(KindSchemaNotFound, "struct %q is not in the schema", class)
	}
	p := newParser(a, buffer[:0])
	if err := p.fields(definition, value); err != nil {
		return nil, err
	}
	return p.tokens, nil
}
