package functions_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tetratelabs/wazero/api"

	"github.com/sandrolain/jitq/pkg/document"
	"github.com/sandrolain/jitq/pkg/functions"
	"github.com/sandrolain/jitq/pkg/types"
)

type fakeEnv struct {
	memory []byte
	out    bytes.Buffer
}

func (e *fakeEnv) ReadString(ptr, length uint32) (string, bool) {
	end := uint64(ptr) + uint64(length)
	if end > uint64(len(e.memory)) {
		return "", false
	}
	return string(e.memory[ptr:end]), true
}

func (e *fakeEnv) Diagnostics() io.Writer { return &e.out }

func (e *fakeEnv) Logger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func setup(t *testing.T, raw string) (context.Context, *document.Arena, document.Handle) {
	t.Helper()
	doc, err := document.Decode([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	arena := document.NewArena()
	h := arena.Put(doc)
	return document.WithArena(context.Background(), arena), arena, h
}

func call(t *testing.T, name string, ctx context.Context, env functions.Env, stack []uint64) {
	t.Helper()
	p, ok := functions.Standard().Lookup(name)
	if !ok {
		t.Fatalf("primitive %s not declared", name)
	}
	p.Impl(ctx, env, stack)
}

func TestStandardOrder(t *testing.T) {
	var names []string
	for _, p := range functions.Standard().Primitives() {
		names = append(names, p.Name)
	}
	want := []string{"printDocument", "debugBreak", "getByKey", "getByIndex"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("primitives mismatch (-want +got):\n%s", diff)
	}

	r := functions.Standard()
	for i, name := range want {
		if got, ok := r.Index(name); !ok || got != i {
			t.Errorf("Index(%q) = %d, %v; want %d", name, got, ok, i)
		}
	}
	if _, ok := r.Index("nope"); ok {
		t.Error("Index of an undeclared name")
	}
}

func TestPrototypeSignature(t *testing.T) {
	p, _ := functions.Standard().Lookup(functions.GetByKey)
	params, results := p.Signature()
	wantParams := []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI64}
	wantResults := []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	if diff := cmp.Diff(wantParams, params); diff != "" {
		t.Errorf("params (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantResults, results); diff != "" {
		t.Errorf("results (-want +got):\n%s", diff)
	}
	if got := p.ParamNames(); len(got) != len(params) {
		t.Errorf("ParamNames %v does not match %d params", got, len(params))
	}
	if got := p.String(); got != "getByKey(doc: json, key: string, keyLength: integer) -> json" {
		t.Errorf("String() = %s", got)
	}
	if !p.Accepts(functions.Json, functions.String, functions.Integer) || p.Accepts(functions.Json) {
		t.Error("Accepts mismatch")
	}
}

func TestStringReturnPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	functions.Prototype{Name: "bad", Return: functions.String}.Signature()
}

func TestDeclare(t *testing.T) {
	impl := func(context.Context, functions.Env, []uint64) {}
	r := functions.NewRegistry()
	if err := r.Declare(functions.Primitive{Prototype: functions.Prototype{Name: "f", Return: functions.Void}, Impl: impl}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		p    functions.Primitive
	}{
		{"duplicate", functions.Primitive{Prototype: functions.Prototype{Name: "f", Return: functions.Void}, Impl: impl}},
		{"string return", functions.Primitive{Prototype: functions.Prototype{Name: "g", Return: functions.String}, Impl: impl}},
		{"no name", functions.Primitive{Impl: impl}},
		{"no impl", functions.Primitive{Prototype: functions.Prototype{Name: "h"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Declare(tt.p)
			if types.CodeOf(err) != types.ErrBuilder {
				t.Errorf("expected %s, got %v", types.ErrBuilder, err)
			}
		})
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d", r.Len())
	}
}

func TestGetByKey(t *testing.T) {
	env := &fakeEnv{memory: []byte("xxabzz")}

	tests := []struct {
		name     string
		doc      string
		ptr, len uint32
		wantCode document.ErrorCode
		want     string
	}{
		{"found", `{"ab":[1,2]}`, 2, 2, document.OK, `[1,2]`},
		{"missing", `{"a":1}`, 2, 2, document.ErrNotFound, ""},
		{"not object", `[1]`, 2, 2, document.ErrTypeMismatch, ""},
		{"empty key", `{"":true}`, 0, 0, document.OK, `true`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, arena, h := setup(t, tt.doc)
			stack := []uint64{uint64(h), 0, uint64(tt.ptr), uint64(tt.len)}
			call(t, functions.GetByKey, ctx, env, stack)

			if code := document.ErrorCode(stack[1]); code != tt.wantCode {
				t.Fatalf("code = %v, want %v", code, tt.wantCode)
			}
			if tt.wantCode != document.OK {
				return
			}
			v, ok := arena.Get(document.Handle(stack[0]))
			if !ok {
				t.Fatal("result handle not in arena")
			}
			got, _ := document.Render(v)
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGetByIndex(t *testing.T) {
	env := &fakeEnv{}
	tests := []struct {
		doc      string
		index    int64
		wantCode document.ErrorCode
	}{
		{`[10,20,30]`, 2, document.OK},
		{`[10,20,30]`, 3, document.ErrNotFound},
		{`"abc"`, 0, document.ErrTypeMismatch},
		{`{"0":1}`, 0, document.ErrTypeMismatch},
	}
	for _, tt := range tests {
		ctx, _, h := setup(t, tt.doc)
		stack := []uint64{uint64(h), 0, uint64(tt.index)}
		call(t, functions.GetByIndex, ctx, env, stack)
		if code := document.ErrorCode(stack[1]); code != tt.wantCode {
			t.Errorf("%s[%d]: code = %v, want %v", tt.doc, tt.index, code, tt.wantCode)
		}
	}
}

func TestNavigationPassesErrorsThrough(t *testing.T) {
	ctx, _, h := setup(t, `[1]`)
	stack := []uint64{uint64(h), uint64(document.ErrTypeMismatch), 0}
	call(t, functions.GetByIndex, ctx, &fakeEnv{}, stack)
	if stack[0] != uint64(h) || document.ErrorCode(stack[1]) != document.ErrTypeMismatch {
		t.Errorf("incoming error not preserved: %v", stack)
	}
}

func TestPrintDocument(t *testing.T) {
	ctx, _, h := setup(t, `{"b":"<x>","a":1}`)
	env := &fakeEnv{}
	call(t, functions.PrintDocument, ctx, env, []uint64{uint64(h), 0})
	call(t, functions.PrintDocument, ctx, env, []uint64{uint64(h), 1})
	want := "{\"b\":\"<x>\",\"a\":1}\nerror 1\n"
	if env.out.String() != want {
		t.Errorf("got %q, want %q", env.out.String(), want)
	}
}

func TestMissingArenaPanics(t *testing.T) {
	env := &fakeEnv{memory: []byte("a")}
	defer func() {
		r := recover()
		if r == nil || !strings.Contains(r.(string), "arena") {
			t.Errorf("expected arena panic, got %v", r)
		}
	}()
	call(t, functions.GetByKey, context.Background(), env, []uint64{0, 0, 0, 1})
}
