package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/sandrolain/jitq/pkg/compiler"
	"github.com/sandrolain/jitq/pkg/document"
	"github.com/sandrolain/jitq/pkg/engine"
	"github.com/sandrolain/jitq/pkg/types"
)

// Program is a compiled script bound to its native function.
//
// A Program reuses one arena across calls, so it must not be used from
// more than one goroutine at a time.
type Program struct {
	script *types.Script
	text   string
	fn     *engine.Function
	arena  *document.Arena
	cached bool

	// Cached programs are shared. refs counts the callers that hold one;
	// fn is released once the cache has evicted it and refs is zero.
	mu       sync.Mutex
	refs     int
	evicted  bool
	released bool
}

func newProgram(script *types.Script, unit *compiler.Unit, fn *engine.Function) *Program {
	return &Program{
		script: script,
		text:   unit.Text(),
		fn:     fn,
		arena:  document.NewArena(),
	}
}

// Script returns the parsed script.
func (p *Program) Script() *types.Script { return p.script }

// Source returns the script text.
func (p *Program) Source() string { return p.script.Source() }

// Dialect returns the script dialect.
func (p *Program) Dialect() types.Dialect { return p.script.Dialect() }

// Text returns the generated module in text form.
func (p *Program) Text() string { return p.text }

// Result is the outcome of applying a path to one document.
type Result struct {
	// Value is the reached sub-document. Nil when Code is not OK.
	Value any
	// Code is the navigation status.
	Code document.ErrorCode
}

// OK reports whether navigation succeeded.
func (r Result) OK() bool {
	return r.Code == document.OK
}

// Render returns the output line for r: the JSON text of Value, or
// "Error: <code>".
func (r Result) Render() (string, error) {
	if !r.OK() {
		return fmt.Sprintf("Error: %d", r.Code), nil
	}
	return document.Render(r.Value)
}

// Apply runs a path program against doc. Navigation failures are reported
// in Result.Code; the error is reserved for faults of the call itself.
func (p *Program) Apply(ctx context.Context, doc any) (Result, error) {
	if p.Dialect() != types.DialectPath {
		return Result{}, types.NewError(types.ErrSignature, "Apply needs a path program", -1)
	}

	p.arena.Reset()
	in := document.Record{Document: p.arena.Put(doc)}
	out, err := p.fn.CallRecord(ctx, p.arena, in)
	if err != nil {
		return Result{}, err
	}
	if !out.OK() {
		return Result{Code: out.ErrorCode}, nil
	}

	v, ok := p.arena.Get(out.Document)
	if !ok {
		return Result{}, types.NewError(types.ErrTrap, fmt.Sprintf("program returned unknown handle %d", out.Document), -1)
	}
	return Result{Value: v}, nil
}

// Eval runs an expression program and returns the value of its last
// statement. The program sees a null document.
func (p *Program) Eval(ctx context.Context) (int64, error) {
	if p.Dialect() != types.DialectExpressions {
		return 0, types.NewError(types.ErrSignature, "Eval needs an expression program", -1)
	}

	p.arena.Reset()
	in := document.Record{Document: p.arena.Put(nil)}
	return p.fn.CallInteger(ctx, p.arena, in)
}

// Close releases the native function. A cached program is shared: Close
// drops the caller's reference, and the function is released once the
// program has also left the cache.
func (p *Program) Close(ctx context.Context) error {
	if !p.cached {
		return p.fn.Close(ctx)
	}
	p.mu.Lock()
	if p.refs > 0 {
		p.refs--
	}
	release := p.evicted && p.refs == 0 && !p.released
	if release {
		p.released = true
	}
	p.mu.Unlock()
	if release {
		return p.fn.Close(ctx)
	}
	return nil
}

// acquire takes a reference on a cached program. It fails once the
// program has been released.
func (p *Program) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return false
	}
	p.refs++
	return true
}

// evict marks a cached program as removed from the cache and releases it
// when no caller holds a reference.
func (p *Program) evict(ctx context.Context) error {
	p.mu.Lock()
	p.evicted = true
	release := p.refs == 0 && !p.released
	if release {
		p.released = true
	}
	p.mu.Unlock()
	if release {
		return p.fn.Close(ctx)
	}
	return nil
}
