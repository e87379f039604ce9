// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/bureau-foundation/humanthrift/lib/idl"
	"github.com/bureau-foundation/humanthrift/lib/jsonvalue"
	"github.com/bureau-foundation/humanthrift/lib/transcode"
)

const calculatorSchema = `{
  "name": "calc",
  "structs": [
    {"name": "Overflow", "isException": true, "fields": [
      {"name": "why", "key": 1, "type": {"typeId": "string"}}
    ]}
  ],
  "services": [{"name": "calc.Calculator", "functions": [
    {"name": "add", "returnType": {"typeId": "i32"},
     "arguments": [
       {"name": "a", "key": 1, "type": {"typeId": "i32"}},
       {"name": "b", "key": 2, "type": {"typeId": "i32"}}
     ],
     "exceptions": [{"name": "overflow", "key": 1, "type": {"typeId": "exception", "class": "calc.Overflow"}}]},
    {"name": "log", "oneway": true, "returnType": {"typeId": "void"},
     "arguments": [{"name": "line", "key": 1, "type": {"typeId": "string"}}]}
  ]}]
}`

func testAssembler(t *testing.T) *transcode.Assembler {
	t.Helper()
	return serviceAssembler(t, "Calculator")
}

// serviceAssembler returns an assembler over the calculator schema
// whose default service is service.
func serviceAssembler(t *testing.T, service string) *transcode.Assembler {
	t.Helper()
	program, err := idl.ParseProgram([]byte(calculatorSchema))
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	store, err := idl.NewStore(program)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	assembler, err := transcode.NewAssembler(transcode.Config{Store: store, Service: service})
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	return assembler
}

// backendStub is a backend connection that records the request bytes
// and serves a canned reply.
type backendStub struct {
	reply    bytes.Buffer
	requests bytes.Buffer
	closed   bool
}

func (b *backendStub) Read(p []byte) (int, error)      { return b.reply.Read(p) }
func (b *backendStub) Write(p []byte) (int, error)     { return b.requests.Write(p) }
func (b *backendStub) Close() error                    { b.closed = true; return nil }
func (b *backendStub) Flush(ctx context.Context) error { return nil }
func (b *backendStub) RemainingBytes() uint64          { return uint64(b.reply.Len()) }
func (b *backendStub) Open() error                     { return nil }
func (b *backendStub) IsOpen() bool                    { return !b.closed }

// binaryMessage encodes a message whose body is a struct of i32 and
// string fields, written in the order given.
func binaryMessage(t *testing.T, name string, messageType thrift.TMessageType, fields ...any) []byte {
	t.Helper()
	ctx := context.Background()
	buffer := thrift.NewTMemoryBuffer()
	protocol := thrift.NewTBinaryProtocolConf(buffer, &thrift.TConfiguration{})
	check := func(err error) {
		if err != nil {
			t.Fatalf("encoding %s: %v", name, err)
		}
	}
	check(protocol.WriteMessageBegin(ctx, name, messageType, 0))
	check(protocol.WriteStructBegin(ctx, name))
	for i := 0; i < len(fields); i += 2 {
		id := fields[i].(int)
		switch value := fields[i+1].(type) {
		case int32:
			check(protocol.WriteFieldBegin(ctx, "", thrift.I32, int16(id)))
			check(protocol.WriteI32(ctx, value))
		case string:
			check(protocol.WriteFieldBegin(ctx, "", thrift.STRING, int16(id)))
			check(protocol.WriteString(ctx, value))
		case thrift.TStruct:
			check(protocol.WriteFieldBegin(ctx, "", thrift.STRUCT, int16(id)))
			check(value.Write(ctx, protocol))
		}
		check(protocol.WriteFieldEnd(ctx))
	}
	check(protocol.WriteFieldStop(ctx))
	check(protocol.WriteStructEnd(ctx))
	check(protocol.WriteMessageEnd(ctx))
	check(protocol.Flush(ctx))
	return buffer.Bytes()
}

type harness struct {
	gateway *Gateway
	backend *backendStub
	dials   int
	in      thrift.TProtocol
	output  *thrift.TMemoryBuffer
	out     thrift.TProtocol
}

func newHarness(t *testing.T, request string, reply []byte) *harness {
	t.Helper()
	return newServiceHarness(t, testAssembler(t), request, reply)
}

func newServiceHarness(t *testing.T, assembler *transcode.Assembler, request string, reply []byte) *harness {
	t.Helper()
	h := &harness{backend: &backendStub{}}
	h.backend.reply.Write(reply)

	gateway, err := New(Config{
		Assembler: assembler,
		Protocol:  transcode.SelectBinary,
		Dial: func(ctx context.Context) (thrift.TTransport, error) {
			h.dials++
			return h.backend, nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.gateway = gateway

	input := thrift.NewTMemoryBuffer()
	input.WriteString(request)
	h.in = assembler.NewProtocol(input)
	h.output = thrift.NewTMemoryBuffer()
	h.out = assembler.NewProtocol(h.output)
	return h
}

func (h *harness) process(t *testing.T) (bool, error) {
	t.Helper()
	more, err := h.gateway.Process(context.Background(), h.in, h.out)
	if err != nil {
		return more, err
	}
	return more, nil
}

func parseOutput(t *testing.T, h *harness) jsonvalue.Value {
	t.Helper()
	value, err := jsonvalue.Parse(h.output.Bytes())
	if err != nil {
		t.Fatalf("gateway wrote invalid JSON %q: %v", h.output.String(), err)
	}
	return value
}

func TestGatewayForwardsCall(t *testing.T) {
	h := newHarness(t,
		`{"method": "Calculator.add", "arguments": {"b": 2, "a": 40}}`,
		binaryMessage(t, "add", thrift.REPLY, 0, int32(42)))

	more, err := h.process(t)
	if err != nil || !more {
		t.Fatalf("Process = (%v, %v)", more, err)
	}
	if got, want := h.output.String(), `{"method":"add","result":{"success":42}}`; got != want {
		t.Errorf("reply = %s, want %s", got, want)
	}
	if !h.backend.closed {
		t.Error("backend connection left open")
	}

	// The backend saw a binary call with the arguments in client order.
	ctx := context.Background()
	request := thrift.NewTMemoryBuffer()
	request.Write(h.backend.requests.Bytes())
	protocol := thrift.NewTBinaryProtocolConf(request, &thrift.TConfiguration{})
	name, messageType, _, err := protocol.ReadMessageBegin(ctx)
	if err != nil || name != "add" || messageType != thrift.CALL {
		t.Fatalf("backend request header = (%q, %v, %v)", name, messageType, err)
	}
	protocol.ReadStructBegin(ctx)
	for _, want := range []struct {
		id    int16
		value int32
	}{{2, 2}, {1, 40}} {
		_, fieldType, id, err := protocol.ReadFieldBegin(ctx)
		if err != nil || fieldType != thrift.I32 || id != want.id {
			t.Fatalf("field = (%v, %d, %v), want I32 %d", fieldType, id, err, want.id)
		}
		value, _ := protocol.ReadI32(ctx)
		if value != want.value {
			t.Errorf("field %d = %d, want %d", id, value, want.value)
		}
		protocol.ReadFieldEnd(ctx)
	}
}

func TestGatewayNamesReplyAgainstRequestService(t *testing.T) {
	tests := []struct {
		name           string
		defaultService string
		request        string
	}{
		{"service qualified, no default", "", `{"method": "Calculator.add", "arguments": {"a": 40, "b": 2}}`},
		{"program qualified, no default", "", `{"method": "calc.Calculator.add", "arguments": {"a": 40, "b": 2}}`},
		{"qualified over unrelated default", "Other", `{"method": "Calculator.add", "arguments": {"a": 40, "b": 2}}`},
		{"bare with default", "Calculator", `{"method": "add", "arguments": {"a": 40, "b": 2}}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := newServiceHarness(t, serviceAssembler(t, test.defaultService), test.request,
				binaryMessage(t, "add", thrift.REPLY, 0, int32(42)))
			more, err := h.process(t)
			if err != nil || !more {
				t.Fatalf("Process = (%v, %v)", more, err)
			}
			if got, want := h.output.String(), `{"method":"add","result":{"success":42}}`; got != want {
				t.Errorf("reply = %s, want %s", got, want)
			}
		})
	}
}

func TestGatewayNamesDeclaredExceptions(t *testing.T) {
	overflow := &whyStruct{why: "too big"}
	h := newHarness(t,
		`{"method": "add", "arguments": {"a": 1, "b": 2}}`,
		binaryMessage(t, "add", thrift.REPLY, 1, overflow))

	if _, err := h.process(t); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got, want := h.output.String(), `{"method":"add","result":{"overflow":{"why":"too big"}}}`; got != want {
		t.Errorf("reply = %s, want %s", got, want)
	}
}

func TestGatewayOnewayWritesNoReply(t *testing.T) {
	h := newHarness(t, `{"method": "log", "arguments": {"line": "hello"}}`, nil)
	more, err := h.process(t)
	if err != nil || !more {
		t.Fatalf("Process = (%v, %v)", more, err)
	}
	if h.output.Len() != 0 {
		t.Errorf("oneway call produced a reply: %s", h.output.String())
	}
	if h.backend.requests.Len() == 0 {
		t.Error("oneway call was not forwarded")
	}
}

func TestGatewayRejectsUndecodableRequests(t *testing.T) {
	h := newHarness(t, `{"method": "add", "arguments": {"a": 1, "bogus": 2}}`, nil)
	more, err := h.process(t)
	if err != nil || !more {
		t.Fatalf("Process = (%v, %v), want the connection kept", more, err)
	}
	if h.dials != 0 {
		t.Errorf("backend dialed %d times for a bad request", h.dials)
	}

	reply := parseOutput(t, h)
	exception, ok := reply.Lookup("exception")
	if !ok {
		t.Fatalf("reply %s has no exception", h.output.String())
	}
	exceptionType, _ := exception.Lookup("type")
	if code, _ := exceptionType.Int64(); code != thrift.PROTOCOL_ERROR {
		t.Errorf("exception type = %d, want PROTOCOL_ERROR", code)
	}
	message, _ := exception.Lookup("message")
	if text, _ := message.Text(); !strings.Contains(text, "bogus") {
		t.Errorf("exception message %q does not name the field", text)
	}
	method, _ := reply.Lookup("method")
	if text, _ := method.Text(); text != "add" {
		t.Errorf("method = %q, want add", text)
	}
}

func TestGatewayDropsConnectionOnMalformedJSON(t *testing.T) {
	h := newHarness(t, `{"method": "add", "arguments": {`, nil)
	more, err := h.process(t)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if more {
		t.Error("Process kept a connection after malformed JSON")
	}
	if _, ok := parseOutput(t, h).Lookup("exception"); !ok {
		t.Errorf("no exception reply: %s", h.output.String())
	}
}

func TestGatewayRejectsReplies(t *testing.T) {
	h := newHarness(t, `{"method": "add", "result": {"success": 1}}`, nil)
	more, err := h.process(t)
	if err != nil || !more {
		t.Fatalf("Process = (%v, %v)", more, err)
	}
	exception, _ := parseOutput(t, h).Lookup("exception")
	exceptionType, _ := exception.Lookup("type")
	if code, _ := exceptionType.Int64(); code != thrift.INVALID_MESSAGE_TYPE_EXCEPTION {
		t.Errorf("exception type = %d, want INVALID_MESSAGE_TYPE_EXCEPTION", code)
	}
}

func TestGatewayReportsUnavailableBackend(t *testing.T) {
	h := newHarness(t, `{"method": "add", "arguments": {}}`, nil)
	h.gateway.dial = func(ctx context.Context) (thrift.TTransport, error) {
		return nil, errors.New("connection refused")
	}
	more, err := h.process(t)
	if err != nil || !more {
		t.Fatalf("Process = (%v, %v)", more, err)
	}
	exception, _ := parseOutput(t, h).Lookup("exception")
	exceptionType, _ := exception.Lookup("type")
	if code, _ := exceptionType.Int64(); code != thrift.INTERNAL_ERROR {
		t.Errorf("exception type = %d, want INTERNAL_ERROR", code)
	}
}

func TestGatewayStopsAtEndOfStream(t *testing.T) {
	h := newHarness(t, "", nil)
	more, err := h.process(t)
	if more {
		t.Error("Process wants more after end of stream")
	}
	var transportException thrift.TTransportException
	if !errors.As(err, &transportException) || transportException.TypeId() != thrift.END_OF_FILE {
		t.Errorf("error = %v, want END_OF_FILE", err)
	}
}

func TestNewDialsBackendNetwork(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "backend.sock")
	listener, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()
	accepted := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			conn.Close()
		}
		accepted <- err
	}()

	gateway, err := New(Config{
		Assembler:   testAssembler(t),
		Network:     "unix",
		Address:     socket,
		Protocol:    transcode.SelectBinary,
		DialTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	backend, err := gateway.dial(context.Background())
	if err != nil {
		t.Fatalf("dial unix backend: %v", err)
	}
	backend.Close()
	if err := <-accepted; err != nil {
		t.Errorf("Accept: %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	assembler := testAssembler(t)
	tests := []struct {
		name   string
		config Config
	}{
		{"no assembler", Config{Protocol: transcode.SelectBinary, Address: "localhost:1"}},
		{"human backend", Config{Assembler: assembler, Protocol: transcode.SelectHuman, Address: "localhost:1"}},
		{"no address", Config{Assembler: assembler, Protocol: transcode.SelectBinary}},
	}
	for _, test := range tests {
		if _, err := New(test.config); err == nil {
			t.Errorf("%s: New succeeded", test.name)
		}
	}
}

// whyStruct writes the calc.Overflow exception body.
type whyStruct struct{ why string }

func (w *whyStruct) Write(ctx context.Context, oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin(ctx, "Overflow"); err != nil {
		return err
	}
	if err := oprot.WriteFieldBegin(ctx, "why", thrift.STRING, 1); err != nil {
		return err
	}
	if err := oprot.WriteString(ctx, w.why); err != nil {
		return err
	}
	if err := oprot.WriteFieldEnd(ctx); err != nil {
		return err
	}
	if err := oprot.WriteFieldStop(ctx); err != nil {
		return err
	}
	return oprot.WriteStructEnd(ctx)
}

func (w *whyStruct) Read(ctx context.Context, iprot thrift.TProtocol) error {
	return iprot.Skip(ctx, thrift.STRUCT)
}
