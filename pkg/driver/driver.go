// Package driver runs compiled scripts.
//
// A Driver owns the registry, the code generator and the JIT engine. It
// compiles a script once into a Program, and a Program is then applied to
// any number of documents, one at a time, reusing the same native function.
//
// # Example
//
//	d, err := driver.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close(ctx)
//
//	prog, err := d.CompilePath(ctx, ".a[1]")
//	stats, err := d.RunStream(ctx, prog, os.Stdin, os.Stdout)
package driver

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/sandrolain/jitq/pkg/cache"
	"github.com/sandrolain/jitq/pkg/compiler"
	"github.com/sandrolain/jitq/pkg/engine"
	"github.com/sandrolain/jitq/pkg/functions"
	"github.com/sandrolain/jitq/pkg/parser"
	"github.com/sandrolain/jitq/pkg/types"
)

// Options configures a Driver.
type Options struct {
	// Caching enables program caching by dialect and source text.
	Caching bool
	// CacheSize sets the maximum number of cached programs.
	// Only used when Caching is true. Defaults to 64.
	CacheSize int
	// Debug renders every generated module to Diagnostics.
	Debug bool
	// Trace prints the current document after every path segment.
	Trace bool
	// DebugBreak emits a debugBreak call at the entry of every program.
	DebugBreak bool
	// Interpreter selects wazero's interpreter backend.
	Interpreter bool
	// MaxDepth limits parser recursion. Zero keeps the parser default.
	MaxDepth int
	// Diagnostics receives debug output. Defaults to os.Stderr.
	Diagnostics io.Writer
	// Registry overrides the standard primitives.
	Registry *functions.Registry
	// Logger for structured logging.
	Logger *slog.Logger
}

// Option configures a Driver.
type Option func(*Options)

// WithCaching enables or disables program caching.
func WithCaching(enabled bool) Option {
	return func(opts *Options) {
		opts.Caching = enabled
	}
}

// WithCacheSize sets the maximum number of cached programs.
func WithCacheSize(size int) Option {
	return func(opts *Options) {
		opts.CacheSize = size
	}
}

// WithDebug enables or disables module text rendering.
func WithDebug(enabled bool) Option {
	return func(opts *Options) {
		opts.Debug = enabled
	}
}

// WithTrace enables or disables per-segment tracing.
func WithTrace(enabled bool) Option {
	return func(opts *Options) {
		opts.Trace = enabled
	}
}

// WithDebugBreak enables or disables the entry debugBreak call.
func WithDebugBreak(enabled bool) Option {
	return func(opts *Options) {
		opts.DebugBreak = enabled
	}
}

// WithInterpreter selects the interpreter backend.
func WithInterpreter(enabled bool) Option {
	return func(opts *Options) {
		opts.Interpreter = enabled
	}
}

// WithMaxDepth sets the parser recursion limit.
func WithMaxDepth(depth int) Option {
	return func(opts *Options) {
		opts.MaxDepth = depth
	}
}

// WithDiagnostics sets the diagnostic writer.
func WithDiagnostics(w io.Writer) Option {
	return func(opts *Options) {
		opts.Diagnostics = w
	}
}

// WithRegistry replaces the standard primitives.
func WithRegistry(r *functions.Registry) Option {
	return func(opts *Options) {
		opts.Registry = r
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// Driver compiles and runs scripts.
type Driver struct {
	opts     Options
	logger   *slog.Logger
	compiler *compiler.Compiler
	engine   *engine.Engine
	cache    *cache.Cache[*Program] // non-nil when Caching is enabled
}

// New creates a Driver.
func New(ctx context.Context, opts ...Option) (*Driver, error) {
	options := Options{
		CacheSize: 64,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Diagnostics == nil {
		options.Diagnostics = os.Stderr
	}
	if options.Registry == nil {
		options.Registry = functions.Standard()
	}

	eng, err := engine.New(ctx, options.Registry,
		engine.WithInterpreter(options.Interpreter),
		engine.WithDebug(options.Debug),
		engine.WithDiagnostics(options.Diagnostics),
		engine.WithLogger(options.Logger),
	)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		opts:   options,
		logger: options.Logger,
		compiler: compiler.New(options.Registry,
			compiler.WithDebugBreak(options.DebugBreak),
			compiler.WithTrace(options.Trace),
			compiler.WithLogger(options.Logger),
		),
		engine: eng,
	}

	if options.Caching {
		d.cache = cache.New[*Program](options.CacheSize)
		d.cache.OnEvict(func(key string, p *Program) {
			if err := p.evict(context.Background()); err != nil {
				d.logger.Warn("cannot release evicted program", "key", key, "error", err)
			}
		})
	}
	return d, nil
}

// Cache returns the program cache, or nil if caching is disabled.
func (d *Driver) Cache() *cache.Cache[*Program] {
	return d.cache
}

// CompilePath compiles a path script.
func (d *Driver) CompilePath(ctx context.Context, src string) (*Program, error) {
	return d.Compile(ctx, types.DialectPath, src)
}

// CompileExpressions compiles an expression script.
func (d *Driver) CompileExpressions(ctx context.Context, src string) (*Program, error) {
	return d.Compile(ctx, types.DialectExpressions, src)
}

// Compile parses, lowers and finalizes src. Parse and compile errors are
// returned before anything is instantiated. With caching enabled the
// returned program may be shared; each caller must Close its copy.
func (d *Driver) Compile(ctx context.Context, dialect types.Dialect, src string) (*Program, error) {
	if d.cache == nil {
		return d.compile(ctx, dialect, src)
	}
	key := dialect.String() + ":" + src
	for {
		p, err := d.cache.GetOrCompile(key, func() (*Program, error) {
			p, err := d.compile(ctx, dialect, src)
			if err != nil {
				return nil, err
			}
			p.cached = true
			return p, nil
		})
		if err != nil {
			return nil, err
		}
		if p.acquire() {
			return p, nil
		}
		// Released between lookup and acquire; compile a fresh one.
		d.cache.Invalidate(key)
	}
}

func (d *Driver) compile(ctx context.Context, dialect types.Dialect, src string) (*Program, error) {
	var popts []parser.CompileOption
	if d.opts.MaxDepth > 0 {
		popts = append(popts, parser.WithMaxDepth(d.opts.MaxDepth))
	}
	script, err := parser.Parse(dialect, src, popts...)
	if err != nil {
		d.logger.Debug("parse failed", "dialect", dialect, "source", src, "error", err)
		return nil, err
	}

	unit, err := d.compiler.Compile(script)
	if err != nil {
		d.logger.Debug("compile failed", "dialect", dialect, "source", src, "error", err)
		return nil, err
	}

	fn, err := d.engine.Finalize(ctx, unit)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("compiled program", "dialect", dialect, "source", src, "module", fn.Name())
	return newProgram(script, unit, fn), nil
}

// Close releases every program and the engine.
func (d *Driver) Close(ctx context.Context) error {
	if d.cache != nil {
		d.cache.Clear()
	}
	return d.engine.Close(ctx)
}
