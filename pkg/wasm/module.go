// Package wasm builds WebAssembly modules in the binary format.
//
// Only the subset the code generator needs is supported: imported and
// defined functions, one exported linear memory, one active data segment,
// and the integer, local and control instructions listed in function.go.
package wasm

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

const (
	pageSize   = 65536
	memoryName = "memory"
)

var (
	magic   = []byte{0x00, 0x61, 0x73, 0x6d}
	version = []byte{0x01, 0x00, 0x00, 0x00}
)

// Section ids, in the order they must appear.
const (
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionMemory   byte = 5
	sectionExport   byte = 7
	sectionCode     byte = 10
	sectionData     byte = 11
)

// ErrImportAfterFunction is returned when an import is declared after a
// defined function, which would shift function indices already in use.
var ErrImportAfterFunction = errors.New("imports must be declared before functions")

// FuncType is a function signature.
type FuncType struct {
	Params  []api.ValueType
	Results []api.ValueType
}

// Equal reports whether both signatures are identical.
func (t FuncType) Equal(o FuncType) bool {
	return slices.Equal(t.Params, o.Params) && slices.Equal(t.Results, o.Results)
}

// String renders the type as "(param i32 i32) (result i64)".
func (t FuncType) String() string {
	var parts []string
	if len(t.Params) > 0 {
		parts = append(parts, "(param "+typeList(t.Params)+")")
	}
	if len(t.Results) > 0 {
		parts = append(parts, "(result "+typeList(t.Results)+")")
	}
	return strings.Join(parts, " ")
}

func typeList(vts []api.ValueType) string {
	names := make([]string, len(vts))
	for i, vt := range vts {
		names[i] = api.ValueTypeName(vt)
	}
	return strings.Join(names, " ")
}

type importEntry struct {
	module, name string
	typeIdx      uint32
}

// Module accumulates the contents of one wasm module.
type Module struct {
	types   []FuncType
	imports []importEntry
	funcs   []*Function
	data    []byte
	interns map[string]uint32
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{interns: make(map[string]uint32)}
}

func (m *Module) typeIndex(t FuncType) uint32 {
	for i, existing := range m.types {
		if existing.Equal(t) {
			return uint32(i)
		}
	}
	m.types = append(m.types, t)
	return uint32(len(m.types) - 1)
}

// ImportFunction declares an imported function and returns its index.
func (m *Module) ImportFunction(module, name string, t FuncType) (uint32, error) {
	if len(m.funcs) > 0 {
		return 0, ErrImportAfterFunction
	}
	m.imports = append(m.imports, importEntry{module: module, name: name, typeIdx: m.typeIndex(t)})
	return uint32(len(m.imports) - 1), nil
}

// AddFunction defines an exported function and returns its builder.
func (m *Module) AddFunction(name string, t FuncType) *Function {
	f := &Function{
		module:  m,
		name:    name,
		typ:     t,
		typeIdx: m.typeIndex(t),
		index:   uint32(len(m.imports) + len(m.funcs)),
	}
	m.funcs = append(m.funcs, f)
	return f
}

// FunctionType returns the signature of the function at index.
func (m *Module) FunctionType(index uint32) (FuncType, bool) {
	switch {
	case int(index) < len(m.imports):
		return m.types[m.imports[index].typeIdx], true
	case int(index) < len(m.imports)+len(m.funcs):
		return m.funcs[int(index)-len(m.imports)].typ, true
	default:
		return FuncType{}, false
	}
}

func (m *Module) functionName(index uint32) string {
	switch {
	case int(index) < len(m.imports):
		return m.imports[index].name
	case int(index) < len(m.imports)+len(m.funcs):
		return m.funcs[int(index)-len(m.imports)].name
	default:
		return fmt.Sprintf("%d", index)
	}
}

// AddData places b in the data segment and returns its memory offset.
// Identical byte strings share one offset.
func (m *Module) AddData(b []byte) uint32 {
	if off, ok := m.interns[string(b)]; ok {
		return off
	}
	off := uint32(len(m.data))
	m.data = append(m.data, b...)
	m.interns[string(b)] = off
	return off
}

func (m *Module) pages() uint32 {
	n := uint32((len(m.data) + pageSize - 1) / pageSize)
	return max(n, 1)
}

// Encode returns the binary module.
func (m *Module) Encode() ([]byte, error) {
	for _, f := range m.funcs {
		if err := f.check(); err != nil {
			return nil, err
		}
	}

	out := append(slices.Clone(magic), version...)

	var sec []byte
	sec = AppendUleb128(sec, uint64(len(m.types)))
	for _, t := range m.types {
		sec = append(sec, 0x60)
		sec = appendTypes(sec, t.Params)
		sec = appendTypes(sec, t.Results)
	}
	out = appendSection(out, sectionType, sec)

	if len(m.imports) > 0 {
		sec = AppendUleb128(nil, uint64(len(m.imports)))
		for _, imp := range m.imports {
			sec = appendName(sec, imp.module)
			sec = appendName(sec, imp.name)
			sec = append(sec, 0x00)
			sec = AppendUleb128(sec, uint64(imp.typeIdx))
		}
		out = appendSection(out, sectionImport, sec)
	}

	sec = AppendUleb128(nil, uint64(len(m.funcs)))
	for _, f := range m.funcs {
		sec = AppendUleb128(sec, uint64(f.typeIdx))
	}
	out = appendSection(out, sectionFunction, sec)

	sec = AppendUleb128(nil, 1)
	sec = append(sec, 0x00)
	sec = AppendUleb128(sec, uint64(m.pages()))
	out = appendSection(out, sectionMemory, sec)

	sec = AppendUleb128(nil, uint64(len(m.funcs)+1))
	for _, f := range m.funcs {
		sec = appendName(sec, f.name)
		sec = append(sec, 0x00)
		sec = AppendUleb128(sec, uint64(f.index))
	}
	sec = appendName(sec, memoryName)
	sec = append(sec, 0x02)
	sec = AppendUleb128(sec, 0)
	out = appendSection(out, sectionExport, sec)

	sec = AppendUleb128(nil, uint64(len(m.funcs)))
	for _, f := range m.funcs {
		body := f.body()
		sec = AppendUleb128(sec, uint64(len(body)))
		sec = append(sec, body...)
	}
	out = appendSection(out, sectionCode, sec)

	if len(m.data) > 0 {
		sec = AppendUleb128(nil, 1)
		sec = append(sec, 0x00, byte(OpI32Const))
		sec = AppendSleb128(sec, 0)
		sec = append(sec, byte(OpEnd))
		sec = AppendUleb128(sec, uint64(len(m.data)))
		sec = append(sec, m.data...)
		out = appendSection(out, sectionData, sec)
	}

	return out, nil
}

func appendSection(out []byte, id byte, contents []byte) []byte {
	out = append(out, id)
	out = AppendUleb128(out, uint64(len(contents)))
	return append(out, contents...)
}

func appendName(buf []byte, s string) []byte {
	buf = AppendUleb128(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendTypes(buf []byte, vts []api.ValueType) []byte {
	buf = AppendUleb128(buf, uint64(len(vts)))
	return append(buf, vts...)
}

// Text renders the module in a WAT-like form for diagnostics.
func (m *Module) Text() string {
	var b strings.Builder
	b.WriteString("(module\n")
	for _, imp := range m.imports {
		fmt.Fprintf(&b, "  (import %q %q (func $%s %s))\n", imp.module, imp.name, imp.name, m.types[imp.typeIdx])
	}
	fmt.Fprintf(&b, "  (memory (export %q) %d)\n", memoryName, m.pages())
	if len(m.data) > 0 {
		fmt.Fprintf(&b, "  (data (i32.const 0) \"%s\")\n", escapeData(m.data))
	}
	for _, f := range m.funcs {
		f.writeText(&b)
	}
	b.WriteString(")\n")
	return b.String()
}

func escapeData(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "\\%02x", c)
	}
	return b.String()
}
