package compiler

import (
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/sandrolain/jitq/pkg/functions"
	"github.com/sandrolain/jitq/pkg/types"
	"github.com/sandrolain/jitq/pkg/wasm"
)

// gen is the state of one compilation.
type gen struct {
	c       *Compiler
	dialect types.Dialect
	mod     *wasm.Module
	fn      *wasm.Function
	symbols map[string]uint32
}

func (c *Compiler) newGen(dialect types.Dialect, entry wasm.FuncType) (*gen, error) {
	g := &gen{
		c:       c,
		dialect: dialect,
		mod:     wasm.NewModule(),
		symbols: make(map[string]uint32),
	}

	// Imports come first, so a primitive's function index is its
	// declaration position in the registry.
	for i, p := range c.registry.Primitives() {
		params, results := p.Signature()
		idx, err := g.mod.ImportFunction(functions.ModuleName, p.Name, wasm.FuncType{Params: params, Results: results})
		if err != nil {
			return nil, types.NewError(types.ErrBuilder, "cannot declare "+p.Name, -1).WithCause(err)
		}
		if idx != uint32(i) {
			return nil, types.NewError(types.ErrBuilder, fmt.Sprintf("%s imported at %d, declared at %d", p.Name, idx, i), -1)
		}
	}

	g.fn = g.mod.AddFunction(EntryName, entry)
	if c.opts.DebugBreak {
		if _, err := g.call(functions.DebugBreak); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// call emits a call to a declared primitive after checking the argument
// types already pushed against its prototype.
func (g *gen) call(name string, args ...functions.Type) (functions.Type, error) {
	p, ok := g.c.registry.Lookup(name)
	if !ok {
		return 0, types.UnknownFunction(name)
	}
	idx, ok := g.c.registry.Index(name)
	if !ok {
		return 0, types.UnknownFunction(name)
	}
	if !p.Accepts(args...) {
		return 0, types.NewError(types.ErrBuilder,
			fmt.Sprintf("call to %s does not match %s", name, p.Prototype), -1).WithToken(name)
	}
	g.fn.Call(uint32(idx))
	return p.Return, nil
}

func (g *gen) expr(e types.Expr) error {
	switch e := e.(type) {
	case types.Value:
		g.fn.I64Const(e.N)
		return nil

	case types.BinaryOp:
		if err := g.expr(e.Left); err != nil {
			return err
		}
		if err := g.expr(e.Right); err != nil {
			return err
		}
		op, err := arith(e.Op)
		if err != nil {
			return err
		}
		g.fn.Emit(op)
		return nil

	case types.Var:
		idx, ok := g.symbols[e.Name]
		if !ok {
			return types.UnknownVariable(e.Name)
		}
		g.fn.LocalGet(idx)
		return nil

	case types.Let:
		// The value is lowered before the name is (re)bound, so
		// "let a = a + 1" reads the previous binding.
		if err := g.expr(e.Value); err != nil {
			return err
		}
		idx, ok := g.symbols[e.Name]
		if !ok {
			idx = g.fn.NewLocal(api.ValueTypeI64)
			g.symbols[e.Name] = idx
		}
		g.fn.LocalTee(idx)
		return nil

	case types.Paren:
		return g.expr(e.Inner)

	default:
		return types.NewError(types.ErrInvalidProgram, fmt.Sprintf("unsupported expression %T", e), -1)
	}
}

func arith(op types.Operator) (wasm.Opcode, error) {
	switch op {
	case types.OpAdd:
		return wasm.OpI64Add, nil
	case types.OpSub:
		return wasm.OpI64Sub, nil
	case types.OpMul:
		return wasm.OpI64Mul, nil
	case types.OpDiv:
		return wasm.OpI64DivS, nil
	default:
		return 0, types.NewError(types.ErrInvalidProgram, fmt.Sprintf("unsupported operator %s", op), -1)
	}
}

func (g *gen) segment(seg types.Segment) error {
	g.fn.LocalGet(localDoc)
	g.fn.LocalGet(localErr)

	var name string
	switch seg := seg.(type) {
	case types.Key:
		if len(seg.Name) > math.MaxInt32 {
			return types.NewError(types.ErrBuilder, "key too long", -1)
		}
		ptr := g.mod.AddData([]byte(seg.Name))
		g.fn.I32Const(int32(ptr))
		g.fn.I64Const(int64(len(seg.Name)))
		name = functions.GetByKey
		if _, err := g.call(name, functions.Json, functions.String, functions.Integer); err != nil {
			return err
		}

	case types.Index:
		if seg.N > math.MaxInt64 {
			return types.NewError(types.ErrBuilder, fmt.Sprintf("index %d out of range", seg.N), -1)
		}
		g.fn.I64Const(int64(seg.N))
		name = functions.GetByIndex
		if _, err := g.call(name, functions.Json, functions.Integer); err != nil {
			return err
		}

	case types.Root:
		return types.NewError(types.ErrInvalidProgram, "root must be the first segment", -1)

	default:
		return types.NewError(types.ErrInvalidProgram, fmt.Sprintf("unsupported segment %T", seg), -1)
	}

	g.fn.LocalSet(localErr)
	g.fn.LocalSet(localDoc)

	if g.c.opts.Trace {
		g.fn.LocalGet(localDoc)
		g.fn.LocalGet(localErr)
		if _, err := g.call(functions.PrintDocument, functions.Json); err != nil {
			return err
		}
	}

	// Short-circuit: return the failing record as is.
	g.fn.LocalGet(localErr)
	g.fn.If()
	g.fn.LocalGet(localDoc)
	g.fn.LocalGet(localErr)
	g.fn.Emit(wasm.OpReturn)
	g.fn.End()

	g.c.logger.Debug("lowered segment", "segment", seg, "call", name)
	return nil
}

func (g *gen) finish() (*Unit, error) {
	if err := g.fn.Err(); err != nil {
		return nil, types.NewError(types.ErrBuilder, "code generation failed", -1).WithCause(err)
	}
	bin, err := g.mod.Encode()
	if err != nil {
		return nil, types.NewError(types.ErrBuilder, "cannot encode module", -1).WithCause(err)
	}
	g.c.logger.Debug("compiled module",
		"dialect", g.dialect,
		"bytes", len(bin),
		"locals", g.fn.NumLocals())
	return &Unit{
		Dialect:   g.dialect,
		Module:    bin,
		Entry:     EntryName,
		Signature: g.fn.Type(),
		text:      g.mod.Text(),
	}, nil
}
