// Package jitq compiles tiny query scripts to native code and runs them.
//
// Two dialects are supported:
//   - path scripts navigate a JSON document, as in ".orders[0].id";
//   - expression scripts evaluate integer arithmetic with let bindings,
//     as in "let a = 3; let a = 4 + a; a * 6".
//
// Scripts are parsed, lowered to a WebAssembly module and compiled to
// machine code by wazero. A compiled Program is then called once per
// document without being recompiled.
//
// # Quick Start
//
//	// One-off evaluation
//	n, err := jitq.Eval("7 + 3*2")
//
//	// Compile once, apply many times
//	prog, err := jitq.CompilePath(".items[2].name")
//	defer prog.Close()
//	res1, _ := prog.Apply(ctx, doc1)
//	res2, _ := prog.Apply(ctx, doc2)
//
// # More Information
//
// For detailed documentation, see:
//   - Parser: github.com/sandrolain/jitq/pkg/parser
//   - Code generation: github.com/sandrolain/jitq/pkg/compiler
//   - Engine: github.com/sandrolain/jitq/pkg/engine
//   - Driver: github.com/sandrolain/jitq/pkg/driver
package jitq

import (
	"context"
	"fmt"

	"github.com/sandrolain/jitq/pkg/document"
	"github.com/sandrolain/jitq/pkg/driver"
	"github.com/sandrolain/jitq/pkg/types"
)

// Version returns the current version of jitq.
func Version() string {
	return "v0.1.0-dev"
}

// Program is a compiled script that owns its driver.
type Program struct {
	*driver.Program
	driver *driver.Driver
}

// Close releases the program and its driver.
func (p *Program) Close() error {
	ctx := context.Background()
	err := p.Program.Close(ctx)
	if derr := p.driver.Close(ctx); err == nil {
		err = derr
	}
	return err
}

func compile(ctx context.Context, dialect types.Dialect, src string, opts []driver.Option) (*Program, error) {
	d, err := driver.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	p, err := d.Compile(ctx, dialect, src)
	if err != nil {
		d.Close(ctx)
		return nil, err
	}
	return &Program{Program: p, driver: d}, nil
}

// CompilePath compiles a path script for repeated application.
//
// Example:
//
//	prog, err := jitq.CompilePath(".a[1]")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer prog.Close()
//	res, _ := prog.Apply(ctx, doc)
func CompilePath(src string, opts ...driver.Option) (*Program, error) {
	return compile(context.Background(), types.DialectPath, src, opts)
}

// CompileExpressions compiles an expression script.
func CompileExpressions(src string, opts ...driver.Option) (*Program, error) {
	return compile(context.Background(), types.DialectExpressions, src, opts)
}

// MustCompilePath is like CompilePath but panics if the script cannot be
// compiled. It simplifies safe initialization of global variables.
func MustCompilePath(src string) *Program {
	p, err := CompilePath(src)
	if err != nil {
		panic(fmt.Sprintf("jitq: CompilePath(%q): %v", src, err))
	}
	return p
}

// Eval compiles and runs an expression script in a single call.
//
// Example:
//
//	n, err := jitq.Eval("let a = 3; let a = 4 + a; a * 6") // 42
func Eval(src string, opts ...driver.Option) (int64, error) {
	return EvalWithContext(context.Background(), src, opts...)
}

// EvalWithContext is Eval with a custom context.
func EvalWithContext(ctx context.Context, src string, opts ...driver.Option) (int64, error) {
	p, err := compile(ctx, types.DialectExpressions, src, opts)
	if err != nil {
		return 0, err
	}
	defer p.Close()
	return p.Eval(ctx)
}

// Query applies a path script to doc in a single call. A navigation
// failure is reported through Result.Code, not as an error.
func Query(path string, doc any, opts ...driver.Option) (driver.Result, error) {
	ctx := context.Background()
	p, err := compile(ctx, types.DialectPath, path, opts)
	if err != nil {
		return driver.Result{}, err
	}
	defer p.Close()
	return p.Apply(ctx, doc)
}

// QueryJSON decodes raw and applies a path script to it.
func QueryJSON(path string, raw []byte, opts ...driver.Option) (driver.Result, error) {
	doc, err := document.Decode(raw)
	if err != nil {
		return driver.Result{}, fmt.Errorf("invalid document: %w", err)
	}
	return Query(path, doc, opts...)
}
