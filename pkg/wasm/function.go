package wasm

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// Opcode is a single-byte wasm instruction.
type Opcode byte

const (
	OpIf       Opcode = 0x04
	OpEnd      Opcode = 0x0b
	OpReturn   Opcode = 0x0f
	OpCall     Opcode = 0x10
	OpDrop     Opcode = 0x1a
	OpLocalGet Opcode = 0x20
	OpLocalSet Opcode = 0x21
	OpLocalTee Opcode = 0x22
	OpI32Const Opcode = 0x41
	OpI64Const Opcode = 0x42
	OpI64Add   Opcode = 0x7c
	OpI64Sub   Opcode = 0x7d
	OpI64Mul   Opcode = 0x7e
	OpI64DivS  Opcode = 0x7f
)

var opNames = map[Opcode]string{
	OpIf:       "if",
	OpEnd:      "end",
	OpReturn:   "return",
	OpCall:     "call",
	OpDrop:     "drop",
	OpLocalGet: "local.get",
	OpLocalSet: "local.set",
	OpLocalTee: "local.tee",
	OpI32Const: "i32.const",
	OpI64Const: "i64.const",
	OpI64Add:   "i64.add",
	OpI64Sub:   "i64.sub",
	OpI64Mul:   "i64.mul",
	OpI64DivS:  "i64.div_s",
}

// String returns the text-format mnemonic.
func (op Opcode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(0x%02x)", byte(op))
}

const blockTypeEmpty = 0x40

type instr struct {
	text  string
	depth int
}

// Function builds the body of one defined function.
//
// Builder methods record the first error and ignore everything after it;
// Err and Module.Encode report it.
type Function struct {
	module  *Module
	name    string
	typ     FuncType
	typeIdx uint32
	index   uint32

	locals []api.ValueType
	code   []byte
	text   []instr
	depth  int
	err    error
}

// Name returns the exported name.
func (f *Function) Name() string { return f.name }

// Index returns the function index within the module.
func (f *Function) Index() uint32 { return f.index }

// Type returns the signature.
func (f *Function) Type() FuncType { return f.typ }

// Err returns the first builder error.
func (f *Function) Err() error { return f.err }

// NumLocals returns the number of locals including parameters.
func (f *Function) NumLocals() uint32 {
	return uint32(len(f.typ.Params) + len(f.locals))
}

// LocalType returns the type of local i.
func (f *Function) LocalType(i uint32) (api.ValueType, bool) {
	switch {
	case int(i) < len(f.typ.Params):
		return f.typ.Params[i], true
	case int(i) < len(f.typ.Params)+len(f.locals):
		return f.locals[int(i)-len(f.typ.Params)], true
	default:
		return 0, false
	}
}

// NewLocal declares a local of type t and returns its index.
func (f *Function) NewLocal(t api.ValueType) uint32 {
	f.locals = append(f.locals, t)
	return f.NumLocals() - 1
}

func (f *Function) fail(format string, args ...any) {
	if f.err == nil {
		f.err = fmt.Errorf("%s: "+format, append([]any{f.name}, args...)...)
	}
}

func (f *Function) emit(op Opcode, text string, immediate ...byte) {
	if f.err != nil {
		return
	}
	f.code = append(f.code, byte(op))
	f.code = append(f.code, immediate...)
	f.text = append(f.text, instr{text: text, depth: f.depth})
}

// Emit writes an instruction without immediates, such as i64.add or drop.
func (f *Function) Emit(op Opcode) {
	switch op {
	case OpDrop, OpReturn, OpI64Add, OpI64Sub, OpI64Mul, OpI64DivS:
		f.emit(op, op.String())
	default:
		f.fail("%s needs an immediate", op)
	}
}

func (f *Function) local(op Opcode, i uint32) {
	if _, ok := f.LocalType(i); !ok {
		f.fail("%s %d: no such local", op, i)
		return
	}
	f.emit(op, fmt.Sprintf("%s %d", op, i), AppendUleb128(nil, uint64(i))...)
}

// LocalGet pushes local i.
func (f *Function) LocalGet(i uint32) { f.local(OpLocalGet, i) }

// LocalSet pops into local i.
func (f *Function) LocalSet(i uint32) { f.local(OpLocalSet, i) }

// LocalTee stores into local i and keeps the value on the stack.
func (f *Function) LocalTee(i uint32) { f.local(OpLocalTee, i) }

// I32Const pushes an i32 constant.
func (f *Function) I32Const(v int32) {
	f.emit(OpI32Const, fmt.Sprintf("i32.const %d", v), AppendSleb128(nil, int64(v))...)
}

// I64Const pushes an i64 constant. Every int64, including the minimum,
// has an exact signed LEB128 form.
func (f *Function) I64Const(v int64) {
	f.emit(OpI64Const, fmt.Sprintf("i64.const %d", v), AppendSleb128(nil, v)...)
}

// Call calls the function at index.
func (f *Function) Call(index uint32) {
	if _, ok := f.module.FunctionType(index); !ok {
		f.fail("call %d: no such function", index)
		return
	}
	f.emit(OpCall, "call $"+f.module.functionName(index), AppendUleb128(nil, uint64(index))...)
}

// If opens a block without results, entered when the popped i32 is nonzero.
func (f *Function) If() {
	f.emit(OpIf, "if", blockTypeEmpty)
	f.depth++
}

// End closes the innermost block.
func (f *Function) End() {
	if f.depth == 0 {
		f.fail("end without open block")
		return
	}
	f.depth--
	f.emit(OpEnd, "end")
}

func (f *Function) check() error {
	if f.err != nil {
		return f.err
	}
	if f.depth != 0 {
		return fmt.Errorf("%s: %d unclosed block(s)", f.name, f.depth)
	}
	return nil
}

func (f *Function) body() []byte {
	var groups [][2]uint64
	for _, t := range f.locals {
		if n := len(groups); n > 0 && groups[n-1][1] == uint64(t) {
			groups[n-1][0]++
			continue
		}
		groups = append(groups, [2]uint64{1, uint64(t)})
	}

	out := AppendUleb128(nil, uint64(len(groups)))
	for _, g := range groups {
		out = AppendUleb128(out, g[0])
		out = append(out, byte(g[1]))
	}
	out = append(out, f.code...)
	return append(out, byte(OpEnd))
}

func (f *Function) writeText(b *strings.Builder) {
	fmt.Fprintf(b, "  (func $%s (export %q) %s\n", f.name, f.name, f.typ)
	if len(f.locals) > 0 {
		fmt.Fprintf(b, "    (local %s)\n", typeList(f.locals))
	}
	for _, in := range f.text {
		b.WriteString(strings.Repeat("  ", in.depth+2))
		b.WriteString(in.text)
		b.WriteByte('\n')
	}
	b.WriteString("  )\n")
}
