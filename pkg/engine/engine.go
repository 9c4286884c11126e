// Package engine turns compiled units into callable native functions.
//
// The engine owns one wazero runtime. The host module "jitq" is built once
// from the Registry, and every Finalize instantiates a new guest module that
// imports it. wazero's compiler backend translates the module to machine
// code; the interpreter backend is available for platforms without it.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/sandrolain/jitq/pkg/compiler"
	"github.com/sandrolain/jitq/pkg/functions"
	"github.com/sandrolain/jitq/pkg/types"
)

// Options configures an Engine.
type Options struct {
	// Interpreter selects wazero's interpreter instead of its compiler.
	Interpreter bool
	// Debug renders each unit's module text to Diagnostics before it is
	// instantiated.
	Debug bool
	// Diagnostics receives debug output, including printDocument. Defaults
	// to os.Stderr.
	Diagnostics io.Writer
	// Logger for structured logging.
	Logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Options)

// WithInterpreter selects the interpreter backend.
func WithInterpreter(enabled bool) Option {
	return func(opts *Options) {
		opts.Interpreter = enabled
	}
}

// WithDebug enables or disables module text rendering.
func WithDebug(enabled bool) Option {
	return func(opts *Options) {
		opts.Debug = enabled
	}
}

// WithDiagnostics sets the diagnostic writer.
func WithDiagnostics(w io.Writer) Option {
	return func(opts *Options) {
		opts.Diagnostics = w
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// Engine finalizes units into Functions.
type Engine struct {
	runtime  wazero.Runtime
	registry *functions.Registry
	opts     Options
	logger   *slog.Logger
}

// New creates an engine and links every primitive of registry.
func New(ctx context.Context, registry *functions.Registry, opts ...Option) (*Engine, error) {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	if options.Diagnostics == nil {
		options.Diagnostics = os.Stderr
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	cfg := wazero.NewRuntimeConfig()
	if options.Interpreter {
		cfg = wazero.NewRuntimeConfigInterpreter()
	}

	e := &Engine{
		runtime:  wazero.NewRuntimeWithConfig(ctx, cfg),
		registry: registry,
		opts:     options,
		logger:   options.Logger,
	}
	if err := e.linkHost(ctx); err != nil {
		e.runtime.Close(ctx)
		return nil, err
	}
	e.logger.Debug("engine ready", "backend", e.Backend(), "primitives", registry.Len())
	return e, nil
}

func (e *Engine) linkHost(ctx context.Context) error {
	b := e.runtime.NewHostModuleBuilder(functions.ModuleName)
	for _, p := range e.registry.Primitives() {
		params, results := p.Signature()
		impl := p.Impl
		b.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				impl(ctx, hostEnv{mod: mod, engine: e}, stack)
			}), params, results).
			WithName(p.Name).
			WithParameterNames(p.ParamNames()...).
			Export(p.Name)
	}
	if _, err := b.Instantiate(ctx); err != nil {
		return types.NewError(types.ErrBuilder, "cannot link host primitives", -1).WithCause(err)
	}
	return nil
}

// Backend names the wazero backend in use.
func (e *Engine) Backend() string {
	if e.opts.Interpreter {
		return "interpreter"
	}
	return "compiler"
}

// Registry returns the linked primitives.
func (e *Engine) Registry() *functions.Registry {
	return e.registry
}

// Finalize compiles and instantiates unit and resolves its entry point.
func (e *Engine) Finalize(ctx context.Context, unit *compiler.Unit) (*Function, error) {
	if e.opts.Debug {
		fmt.Fprint(e.opts.Diagnostics, unit.Text())
	}

	compiled, err := e.runtime.CompileModule(ctx, unit.Module)
	if err != nil {
		return nil, types.NewError(types.ErrBuilder, "cannot compile module", -1).WithCause(err)
	}

	name := fmt.Sprintf("%s-%s", unit.Dialect, uuid.NewString())
	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		compiled.Close(ctx)
		return nil, types.NewError(types.ErrBuilder, "cannot instantiate module", -1).WithCause(err)
	}

	entry := mod.ExportedFunction(unit.Entry)
	if entry == nil {
		mod.Close(ctx)
		compiled.Close(ctx)
		return nil, types.UnknownFunction(unit.Entry)
	}

	e.logger.Debug("finalized module", "module", name, "entry", unit.Entry, "signature", unit.Signature)
	return &Function{
		name:     name,
		dialect:  unit.Dialect,
		entry:    entry,
		module:   mod,
		compiled: compiled,
		results:  entry.Definition().ResultTypes(),
	}, nil
}

// Close releases the runtime and every module it instantiated.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// hostEnv exposes the calling guest module to a primitive.
type hostEnv struct {
	mod    api.Module
	engine *Engine
}

func (h hostEnv) ReadString(ptr, length uint32) (string, bool) {
	mem := h.mod.Memory()
	if mem == nil {
		return "", false
	}
	b, ok := mem.Read(ptr, length)
	if !ok {
		return "", false
	}
	return string(b), true
}

func (h hostEnv) Diagnostics() io.Writer {
	return h.engine.opts.Diagnostics
}

func (h hostEnv) Logger() *slog.Logger {
	return h.engine.logger
}
