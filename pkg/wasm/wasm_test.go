package wasm_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/sandrolain/jitq/pkg/wasm"
)

func TestLeb128(t *testing.T) {
	tests := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{2, []byte{0x02}},
		{-1, []byte{0x7f}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-64, []byte{0x40}},
		{-65, []byte{0xbf, 0x7f}},
		{-123456, []byte{0xc0, 0xbb, 0x78}},
		{math.MinInt64, []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x7f}},
	}
	for _, tt := range tests {
		if got := wasm.AppendSleb128(nil, tt.v); !bytes.Equal(got, tt.want) {
			t.Errorf("sleb128(%d) = % x, want % x", tt.v, got, tt.want)
		}
	}

	if got := wasm.AppendUleb128(nil, 624485); !bytes.Equal(got, []byte{0xe5, 0x8e, 0x26}) {
		t.Errorf("uleb128(624485) = % x", got)
	}
	if got := wasm.AppendUleb128(nil, 127); !bytes.Equal(got, []byte{0x7f}) {
		t.Errorf("uleb128(127) = % x", got)
	}
}

func TestEncodeHeader(t *testing.T) {
	m := wasm.NewModule()
	f := m.AddFunction("main", wasm.FuncType{Results: []api.ValueType{api.ValueTypeI64}})
	f.I64Const(1)
	bin, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(bin, []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}) {
		t.Errorf("bad header % x", bin[:8])
	}
}

func TestBuilderErrors(t *testing.T) {
	t.Run("import after function", func(t *testing.T) {
		m := wasm.NewModule()
		m.AddFunction("main", wasm.FuncType{})
		if _, err := m.ImportFunction("env", "f", wasm.FuncType{}); !errors.Is(err, wasm.ErrImportAfterFunction) {
			t.Errorf("got %v", err)
		}
	})
	t.Run("unclosed block", func(t *testing.T) {
		m := wasm.NewModule()
		f := m.AddFunction("main", wasm.FuncType{Params: []api.ValueType{api.ValueTypeI32}})
		f.LocalGet(0)
		f.If()
		if _, err := m.Encode(); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("stray end", func(t *testing.T) {
		f := wasm.NewModule().AddFunction("main", wasm.FuncType{})
		f.End()
		if f.Err() == nil {
			t.Error("expected error")
		}
	})
	t.Run("unknown local", func(t *testing.T) {
		f := wasm.NewModule().AddFunction("main", wasm.FuncType{})
		f.LocalGet(3)
		if f.Err() == nil {
			t.Error("expected error")
		}
	})
	t.Run("unknown function", func(t *testing.T) {
		f := wasm.NewModule().AddFunction("main", wasm.FuncType{})
		f.Call(9)
		if f.Err() == nil {
			t.Error("expected error")
		}
	})
	t.Run("emit needs immediate", func(t *testing.T) {
		f := wasm.NewModule().AddFunction("main", wasm.FuncType{})
		f.Emit(wasm.OpLocalGet)
		if f.Err() == nil {
			t.Error("expected error")
		}
	})
}

func TestAddDataInterns(t *testing.T) {
	m := wasm.NewModule()
	a := m.AddData([]byte("abc"))
	b := m.AddData([]byte("de"))
	c := m.AddData([]byte("abc"))
	if a != 0 || b != 3 || c != a {
		t.Errorf("offsets %d %d %d", a, b, c)
	}
}

// instantiate runs the module through wazero so the encoding is validated
// by a real decoder.
func instantiate(t *testing.T, m *wasm.Module, host func(wazero.Runtime)) api.Module {
	t.Helper()
	ctx := context.Background()
	bin, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	t.Cleanup(func() { r.Close(ctx) })
	if host != nil {
		host(r)
	}
	mod, err := r.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate: %v\n%s", err, m.Text())
	}
	return mod
}

func TestArithmeticRuns(t *testing.T) {
	m := wasm.NewModule()
	f := m.AddFunction("main", wasm.FuncType{
		Params:  []api.ValueType{api.ValueTypeI64, api.ValueTypeI64},
		Results: []api.ValueType{api.ValueTypeI64},
	})
	tmp := f.NewLocal(api.ValueTypeI64)
	f.LocalGet(0)
	f.LocalGet(1)
	f.Emit(wasm.OpI64Mul)
	f.LocalTee(tmp)
	f.I64Const(math.MinInt64)
	f.Emit(wasm.OpI64Add)
	f.I64Const(math.MinInt64)
	f.Emit(wasm.OpI64Sub)

	mod := instantiate(t, m, nil)
	res, err := mod.ExportedFunction("main").Call(context.Background(), api.EncodeI64(6), api.EncodeI64(-7))
	if err != nil {
		t.Fatal(err)
	}
	if got := int64(res[0]); got != -42 {
		t.Errorf("got %d, want -42", got)
	}
}

func TestImportsDataAndEarlyReturn(t *testing.T) {
	var seen string
	m := wasm.NewModule()
	get, err := m.ImportFunction("env", "seen", wasm.FuncType{
		Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI64},
	})
	if err != nil {
		t.Fatal(err)
	}
	off := m.AddData([]byte("hello"))

	f := m.AddFunction("main", wasm.FuncType{
		Params:  []api.ValueType{api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	})
	f.I32Const(int32(off))
	f.I64Const(5)
	f.Call(get)
	f.LocalGet(0)
	f.If()
	f.I32Const(7)
	f.Emit(wasm.OpReturn)
	f.End()
	f.I32Const(9)

	mod := instantiate(t, m, func(r wazero.Runtime) {
		_, err := r.NewHostModuleBuilder("env").
			NewFunctionBuilder().
			WithFunc(func(ctx context.Context, mod api.Module, ptr uint32, n uint64) {
				b, _ := mod.Memory().Read(ptr, uint32(n))
				seen = string(b)
			}).
			Export("seen").
			Instantiate(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	})

	for in, want := range map[uint64]uint64{0: 9, 1: 7} {
		res, err := mod.ExportedFunction("main").Call(context.Background(), in)
		if err != nil {
			t.Fatal(err)
		}
		if res[0] != want {
			t.Errorf("main(%d) = %d, want %d", in, res[0], want)
		}
	}
	if seen != "hello" {
		t.Errorf("host saw %q", seen)
	}

	text := m.Text()
	for _, want := range []string{`(import "env" "seen"`, `(data (i32.const 0) "hello")`, "call $seen", "    if\n", "      i32.const 7"} {
		if !strings.Contains(text, want) {
			t.Errorf("Text() missing %q:\n%s", want, text)
		}
	}
}
