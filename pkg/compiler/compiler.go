// Package compiler lowers parsed scripts into WebAssembly modules.
//
// Every compilation produces one module with a single exported entry
// function, "main", whose parameters are the input Record:
//
//	path scripts:       (doc i32, err i32) -> (doc i32, err i32)
//	expression scripts: (doc i32, err i32) -> i64
//
// Calls into the host go through the primitives of the Registry given to
// New; each one is imported from the "jitq" module before any code is
// emitted.
package compiler

import (
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero/api"

	"github.com/sandrolain/jitq/pkg/functions"
	"github.com/sandrolain/jitq/pkg/types"
	"github.com/sandrolain/jitq/pkg/wasm"
)

// EntryName is the exported name of the compiled entry function.
const EntryName = "main"

// Record parameter locals of the entry function.
const (
	localDoc uint32 = 0
	localErr uint32 = 1
)

// Options configures code generation.
type Options struct {
	// DebugBreak emits a debugBreak call at function entry.
	DebugBreak bool
	// Trace emits a printDocument call after every path segment.
	Trace bool
	// Logger for structured logging.
	Logger *slog.Logger
}

// Option configures a Compiler.
type Option func(*Options)

// WithDebugBreak enables or disables the entry debugBreak call.
func WithDebugBreak(enabled bool) Option {
	return func(opts *Options) {
		opts.DebugBreak = enabled
	}
}

// WithTrace enables or disables per-segment document tracing.
func WithTrace(enabled bool) Option {
	return func(opts *Options) {
		opts.Trace = enabled
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// Compiler turns scripts into Units. It holds no per-compilation state and
// may be reused.
type Compiler struct {
	registry *functions.Registry
	opts     Options
	logger   *slog.Logger
}

// New creates a Compiler resolving calls against registry.
func New(registry *functions.Registry, opts ...Option) *Compiler {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Compiler{
		registry: registry,
		opts:     options,
		logger:   options.Logger,
	}
}

// Unit is a compiled module ready for the engine.
type Unit struct {
	Dialect   types.Dialect
	Module    []byte
	Entry     string
	Signature wasm.FuncType
	text      string
}

// Text returns a WAT-like rendering of the module.
func (u *Unit) Text() string {
	return u.text
}

// RecordType is the lowered form of a Record.
func RecordType() []api.ValueType {
	return functions.Json.Lower()
}

// Compile compiles a parsed script in its own dialect.
func (c *Compiler) Compile(script *types.Script) (*Unit, error) {
	switch script.Dialect() {
	case types.DialectPath:
		return c.CompilePath(script.Path())
	case types.DialectExpressions:
		return c.CompileExpressions(script.Exprs())
	default:
		return nil, types.NewError(types.ErrInvalidProgram, fmt.Sprintf("unknown dialect %s", script.Dialect()), -1)
	}
}

// CompileExpressions compiles a statement sequence. The entry function
// returns the value of the last statement, or 0 for an empty sequence.
func (c *Compiler) CompileExpressions(exprs []types.Expr) (*Unit, error) {
	g, err := c.newGen(types.DialectExpressions, wasm.FuncType{
		Params:  RecordType(),
		Results: []api.ValueType{api.ValueTypeI64},
	})
	if err != nil {
		return nil, err
	}

	if len(exprs) == 0 {
		g.fn.I64Const(0)
	}
	for i, expr := range exprs {
		if err := g.expr(expr); err != nil {
			return nil, err
		}
		if i < len(exprs)-1 {
			g.fn.Emit(wasm.OpDrop)
		}
	}

	g.fn.LocalGet(localDoc)
	g.fn.LocalGet(localErr)
	if _, err := g.call(functions.PrintDocument, functions.Json); err != nil {
		return nil, err
	}
	return g.finish()
}

// CompilePath compiles a navigation path. The entry function returns the
// Record reached by the last segment, or the first failing one.
func (c *Compiler) CompilePath(path types.Path) (*Unit, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	g, err := c.newGen(types.DialectPath, wasm.FuncType{
		Params:  RecordType(),
		Results: RecordType(),
	})
	if err != nil {
		return nil, err
	}

	// Root seeds the fold with the entry parameters.
	for _, seg := range path[1:] {
		if err := g.segment(seg); err != nil {
			return nil, err
		}
	}

	g.fn.LocalGet(localDoc)
	g.fn.LocalGet(localErr)
	return g.finish()
}
