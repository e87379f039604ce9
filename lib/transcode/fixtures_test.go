// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"context"
	"fmt"
	"testing"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/bureau-foundation/humanthrift/lib/idl"
)

const echoSchema = `{
  "name": "echo",
  "structs": [
    {"name": "Work", "fields": [
      {"name": "num1", "key": 1, "type": {"typeId": "i32"}},
      {"name": "num2", "key": 2, "type": {"typeId": "i32"}},
      {"name": "comment", "key": 3, "type": {"typeId": "string"}},
      {"name": "tags", "key": 4, "type": {"typeId": "map",
        "keyType": {"typeId": "string"},
        "valueType": {"typeId": "list", "elemType": {"typeId": "i64"}}}},
      {"name": "weights", "key": 5, "type": {"typeId": "map",
        "keyType": {"typeId": "i32"}, "valueType": {"typeId": "double"}}},
      {"name": "flags", "key": 6, "type": {"typeId": "set", "elemType": {"typeId": "bool"}}},
      {"name": "next", "key": 7, "type": {"typeId": "struct", "class": "echo.Work"}}
    ]},
    {"name": "Oops", "isException": true, "fields": [
      {"name": "code", "key": 1, "type": {"typeId": "i32"}},
      {"name": "why", "key": 2, "type": {"typeId": "string"}}
    ]}
  ],
  "services": [{"name": "echo.Echo", "functions": [
    {"name": "ping", "returnType": {"typeId": "string"},
     "arguments": [{"name": "arg", "key": 1, "type": {"typeId": "string"}}]},
    {"name": "submit", "returnType": {"typeId": "i64"},
     "arguments": [
       {"name": "id", "key": 1, "type": {"typeId": "i32"}},
       {"name": "work", "key": 2, "type": {"typeId": "struct", "class": "echo.Work"}}
     ],
     "exceptions": [{"name": "oops", "key": 1, "type": {"typeId": "exception", "class": "echo.Oops"}}]},
    {"name": "reset", "returnType": {"typeId": "void"}, "arguments": []},
    {"name": "stash", "returnType": {"typeId": "binary"},
     "arguments": [
       {"name": "blob", "key": 1, "type": {"typeId": "binary"}},
       {"name": "sizes", "key": 2, "type": {"typeId": "map",
         "keyType": {"typeId": "binary"}, "valueType": {"typeId": "i32"}}}
     ]},
    {"name": "notify", "oneway": true, "returnType": {"typeId": "void"},
     "arguments": [{"name": "note", "key": 1, "type": {"typeId": "string"}}]}
  ]}]
}`

// brokenSchema references a struct that does not exist and a type
// name no wire type matches.
const brokenSchema = `{
  "name": "broken",
  "structs": [
    {"name": "Holder", "fields": [
      {"name": "ghost", "key": 1, "type": {"typeId": "struct", "class": "broken.Ghost"}},
      {"name": "amount", "key": 2, "type": {"typeId": "decimal"}},
      {"name": "bag", "key": 3, "type": {"typeId": "list"}}
    ]}
  ],
  "services": [{"name": "broken.Store", "functions": [
    {"name": "put", "returnType": {"typeId": "void"},
     "arguments": [{"name": "holder", "key": 1, "type": {"typeId": "struct", "class": "broken.Holder"}}]}
  ]}]
}`

func testStore(t *testing.T) *idl.Store {
	t.Helper()
	var programs []idl.Program
	for _, document := range []string{echoSchema, brokenSchema} {
		program, err := idl.ParseProgram([]byte(document))
		if err != nil {
			t.Fatalf("ParseProgram: %v", err)
		}
		programs = append(programs, program)
	}
	store, err := idl.NewStore(programs...)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func testAssembler(t *testing.T) *Assembler {
	t.Helper()
	assembler, err := NewAssembler(Config{Store: testStore(t), Service: "Echo"})
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	return assembler
}

// The types below follow the shape of Thrift-generated Go code: each
// Read switches on field id, checks the wire type and skips anything
// it does not recognize.

type work struct {
	Num1    int32
	Num2    int32
	Comment *string
	Tags    map[string][]int64
	Weights map[int32]float64
	Flags   []bool
	Next    *work
}

func (w *work) Read(ctx context.Context, iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, fieldType, id, err := iprot.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if fieldType == thrift.STOP {
			break
		}
		switch {
		case id == 1 && fieldType == thrift.I32:
			if w.Num1, err = iprot.ReadI32(ctx); err != nil {
				return err
			}
		case id == 2 && fieldType == thrift.I32:
			if w.Num2, err = iprot.ReadI32(ctx); err != nil {
				return err
			}
		case id == 3 && fieldType == thrift.STRING:
			comment, err := iprot.ReadString(ctx)
			if err != nil {
				return err
			}
			w.Comment = &comment
		case id == 4 && fieldType == thrift.MAP:
			if err := w.readTags(ctx, iprot); err != nil {
				return err
			}
		case id == 5 && fieldType == thrift.MAP:
			if err := w.readWeights(ctx, iprot); err != nil {
				return err
			}
		case id == 6 && fieldType == thrift.SET:
			_, size, err := iprot.ReadSetBegin(ctx)
			if err != nil {
				return err
			}
			w.Flags = make([]bool, 0, size)
			for range size {
				flag, err := iprot.ReadBool(ctx)
				if err != nil {
					return err
				}
				w.Flags = append(w.Flags, flag)
			}
			if err := iprot.ReadSetEnd(ctx); err != nil {
				return err
			}
		case id == 7 && fieldType == thrift.STRUCT:
			w.Next = &work{}
			if err := w.Next.Read(ctx, iprot); err != nil {
				return err
			}
		default:
			if err := iprot.Skip(ctx, fieldType); err != nil {
				return err
			}
		}
		if err := iprot.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return iprot.ReadStructEnd(ctx)
}

func (w *work) readTags(ctx context.Context, iprot thrift.TProtocol) error {
	_, _, size, err := iprot.ReadMapBegin(ctx)
	if err != nil {
		return err
	}
	w.Tags = make(map[string][]int64, size)
	for range size {
		key, err := iprot.ReadString(ctx)
		if err != nil {
			return err
		}
		_, count, err := iprot.ReadListBegin(ctx)
		if err != nil {
			return err
		}
		values := make([]int64, 0, count)
		for range count {
			value, err := iprot.ReadI64(ctx)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		if err := iprot.ReadListEnd(ctx); err != nil {
			return err
		}
		w.Tags[key] = values
	}
	return iprot.ReadMapEnd(ctx)
}

func (w *work) readWeights(ctx context.Context, iprot thrift.TProtocol) error {
	_, _, size, err := iprot.ReadMapBegin(ctx)
	if err != nil {
		return err
	}
	w.Weights = make(map[int32]float64, size)
	for range size {
		key, err := iprot.ReadI32(ctx)
		if err != nil {
			return err
		}
		value, err := iprot.ReadDouble(ctx)
		if err != nil {
			return err
		}
		w.Weights[key] = value
	}
	return iprot.ReadMapEnd(ctx)
}

func (w *work) Write(ctx context.Context, oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin(ctx, "Work"); err != nil {
		return err
	}
	if err := writeI32Field(ctx, oprot, "num1", 1, w.Num1); err != nil {
		return err
	}
	if err := writeI32Field(ctx, oprot, "num2", 2, w.Num2); err != nil {
		return err
	}
	if w.Comment != nil {
		if err := writeStringField(ctx, oprot, "comment", 3, *w.Comment); err != nil {
			return err
		}
	}
	if w.Tags != nil {
		if err := oprot.WriteFieldBegin(ctx, "tags", thrift.MAP, 4); err != nil {
			return err
		}
		if err := oprot.WriteMapBegin(ctx, thrift.STRING, thrift.LIST, len(w.Tags)); err != nil {
			return err
		}
		for key, values := range w.Tags {
			if err := oprot.WriteString(ctx, key); err != nil {
				return err
			}
			if err := oprot.WriteListBegin(ctx, thrift.I64, len(values)); err != nil {
				return err
			}
			for _, value := range values {
				if err := oprot.WriteI64(ctx, value); err != nil {
					return err
				}
			}
			if err := oprot.WriteListEnd(ctx); err != nil {
				return err
			}
		}
		if err := oprot.WriteMapEnd(ctx); err != nil {
			return err
		}
		if err := oprot.WriteFieldEnd(ctx); err != nil {
			return err
		}
	}
	if w.Weights != nil {
		if err := oprot.WriteFieldBegin(ctx, "weights", thrift.MAP, 5); err != nil {
			return err
		}
		if err := oprot.WriteMapBegin(ctx, thrift.I32, thrift.DOUBLE, len(w.Weights)); err != nil {
			return err
		}
		for key, value := range w.Weights {
			if err := oprot.WriteI32(ctx, key); err != nil {
				return err
			}
			if err := oprot.WriteDouble(ctx, value); err != nil {
				return err
			}
		}
		if err := oprot.WriteMapEnd(ctx); err != nil {
			return err
		}
		if err := oprot.WriteFieldEnd(ctx); err != nil {
			return err
		}
	}
	if w.Flags != nil {
		if err := oprot.WriteFieldBegin(ctx, "flags", thrift.SET, 6); err != nil {
			return err
		}
		if err := oprot.WriteSetBegin(ctx, thrift.BOOL, len(w.Flags)); err != nil {
			return err
		}
		for _, flag := range w.Flags {
			if err := oprot.WriteBool(ctx, flag); err != nil {
				return err
			}
		}
		if err := oprot.WriteSetEnd(ctx); err != nil {
			return err
		}
		if err := oprot.WriteFieldEnd(ctx); err != nil {
			return err
		}
	}
	if w.Next != nil {
		if err := oprot.WriteFieldBegin(ctx, "next", thrift.STRUCT, 7); err != nil {
			return err
		}
		if err := w.Next.Write(ctx, oprot); err != nil {
			return err
		}
		if err := oprot.WriteFieldEnd(ctx); err != nil {
			return err
		}
	}
	if err := oprot.WriteFieldStop(ctx); err != nil {
		return err
	}
	return oprot.WriteStructEnd(ctx)
}

type oops struct {
	Code int32
	Why  string
}

func (o *oops) Error() string { return fmt.Sprintf("oops %d: %s", o.Code, o.Why) }

func (o *oops) Read(ctx context.Context, iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, fieldType, id, err := iprot.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if fieldType == thrift.STOP {
			break
		}
		switch {
		case id == 1 && fieldType == thrift.I32:
			if o.Code, err = iprot.ReadI32(ctx); err != nil {
				return err
			}
		case id == 2 && fieldType == thrift.STRING:
			if o.Why, err = iprot.ReadString(ctx); err != nil {
				return err
			}
		default:
			if err := iprot.Skip(ctx, fieldType); err != nil {
				return err
			}
		}
		if err := iprot.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return iprot.ReadStructEnd(ctx)
}

func (o *oops) Write(ctx context.Context, oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin(ctx, "Oops"); err != nil {
		return err
	}
	if err := writeI32Field(ctx, oprot, "code", 1, o.Code); err != nil {
		return err
	}
	if err := writeStringField(ctx, oprot, "why", 2, o.Why); err != nil {
		return err
	}
	if err := oprot.WriteFieldStop(ctx); err != nil {
		return err
	}
	return oprot.WriteStructEnd(ctx)
}

type submitArgs struct {
	ID   int32
	Work *work
}

func (a *submitArgs) Read(ctx context.Context, iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, fieldType, id, err := iprot.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if fieldType == thrift.STOP {
			break
		}
		switch {
		case id == 1 && fieldType == thrift.I32:
			if a.ID, err = iprot.ReadI32(ctx); err != nil {
				return err
			}
		case id == 2 && fieldType == thrift.STRUCT:
			a.Work = &work{}
			if err := a.Work.Read(ctx, iprot); err != nil {
				return err
			}
		default:
			if err := iprot.Skip(ctx, fieldType); err != nil {
				return err
			}
		}
		if err := iprot.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return iprot.ReadStructEnd(ctx)
}

func (a *submitArgs) Write(ctx context.Context, oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin(ctx, "submit_args"); err != nil {
		return err
	}
	if err := writeI32Field(ctx, oprot, "id", 1, a.ID); err != nil {
		return err
	}
	if a.Work != nil {
		if err := oprot.WriteFieldBegin(ctx, "work", thrift.STRUCT, 2); err != nil {
			return err
		}
		if err := a.Work.Write(ctx, oprot); err != nil {
			return err
		}
		if err := oprot.WriteFieldEnd(ctx); err != nil {
			return err
		}
	}
	if err := oprot.WriteFieldStop(ctx); err != nil {
		return err
	}
	return oprot.WriteStructEnd(ctx)
}

type submitResult struct {
	Success *int64
	Oops    *oops
}

func (r *submitResult) Read(ctx context.Context, iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, fieldType, id, err := iprot.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if fieldType == thrift.STOP {
			break
		}
		switch {
		case id == 0 && fieldType == thrift.I64:
			success, err := iprot.ReadI64(ctx)
			if err != nil {
				return err
			}
			r.Success = &success
		case id == 1 && fieldType == thrift.STRUCT:
			r.Oops = &oops{}
			if err := r.Oops.Read(ctx, iprot); err != nil {
				return err
			}
		default:
			if err := iprot.Skip(ctx, fieldType); err != nil {
				return err
			}
		}
		if err := iprot.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return iprot.ReadStructEnd(ctx)
}

func (r *submitResult) Write(ctx context.Context, oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin(ctx, "submit_result"); err != nil {
		return err
	}
	if r.Success != nil {
		if err := oprot.WriteFieldBegin(ctx, "success", thrift.I64, 0); err != nil {
			return err
		}
		if err := oprot.WriteI64(ctx, *r.Success); err != nil {
			return err
		}
		if err := oprot.WriteFieldEnd(ctx); err != nil {
			return err
		}
	}
	if r.Oops != nil {
		if err := oprot.WriteFieldBegin(ctx, "oops", thrift.STRUCT, 1); err != nil {
			return err
		}
		if err := r.Oops.Write(ctx, oprot); err != nil {
			return err
		}
		if err := oprot.WriteFieldEnd(ctx); err != nil {
			return err
		}
	}
	if err := oprot.WriteFieldStop(ctx); err != nil {
		return err
	}
	return oprot.WriteStructEnd(ctx)
}

// stringStruct serves both ping_args (field 1 "arg") and ping_result
// (field 0 "success").
type stringStruct struct {
	name  string
	id    int16
	Value *string
}

func pingArgs() *stringStruct   { return &stringStruct{name: "arg", id: 1} }
func pingResult() *stringStruct { return &stringStruct{name: "success", id: 0} }

func (s *stringStruct) Read(ctx context.Context, iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, fieldType, id, err := iprot.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if fieldType == thrift.STOP {
			break
		}
		if id == s.id && fieldType == thrift.STRING {
			value, err := iprot.ReadString(ctx)
			if err != nil {
				return err
			}
			s.Value = &value
		} else if err := iprot.Skip(ctx, fieldType); err != nil {
			return err
		}
		if err := iprot.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return iprot.ReadStructEnd(ctx)
}

func (s *stringStruct) Write(ctx context.Context, oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin(ctx, s.name); err != nil {
		return err
	}
	if s.Value != nil {
		if err := writeStringField(ctx, oprot, s.name, s.id, *s.Value); err != nil {
			return err
		}
	}
	if err := oprot.WriteFieldStop(ctx); err != nil {
		return err
	}
	return oprot.WriteStructEnd(ctx)
}

func writeI32Field(ctx context.Context, oprot thrift.TProtocol, name string, id int16, value int32) error {
	if err := oprot.WriteFieldBegin(ctx, name, thrift.I32, id); err != nil {
		return err
	}
	if err := oprot.WriteI32(ctx, value); err != nil {
		return err
	}
	return oprot.WriteFieldEnd(ctx)
}

func writeStringField(ctx context.Context, oprot thrift.TProtocol, name string, id int16, value string) error {
	if err := oprot.WriteFieldBegin(ctx, name, thrift.STRING, id); err != nil {
		return err
	}
	if err := oprot.WriteString(ctx, value); err != nil {
		return err
	}
	return oprot.WriteFieldEnd(ctx)
}

// writeMessage encodes one message with body to a fresh buffer using
// the protocol newProtocol builds.
func writeMessage(t *testing.T, newProtocol func(thrift.TTransport) thrift.TProtocol, name string, messageType thrift.TMessageType, seqID int32, body thrift.TStruct) *thrift.TMemoryBuffer {
	t.Helper()
	ctx := context.Background()
	buffer := thrift.NewTMemoryBuffer()
	protocol := newProtocol(buffer)
	if err := protocol.WriteMessageBegin(ctx, name, messageType, seqID); err != nil {
		t.Fatalf("WriteMessageBegin: %v", err)
	}
	if err := body.Write(ctx, protocol); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := protocol.WriteMessageEnd(ctx); err != nil {
		t.Fatalf("WriteMessageEnd: %v", err)
	}
	if err := protocol.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return buffer
}

func binaryProtocol(trans thrift.TTransport) thrift.TProtocol {
	return thrift.NewTBinaryProtocolConf(trans, &thrift.TConfiguration{})
}

func stringPointer(value string) *string { return &value }

func int64Pointer(value int64) *int64 { return &value }
