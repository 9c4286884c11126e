package functions

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sandrolain/jitq/pkg/types"
)

// ModuleName is the import module under which primitives are linked.
const ModuleName = "jitq"

// Env is what a primitive can reach of the running module and its host.
type Env interface {
	// ReadString reads length bytes of linear memory starting at ptr.
	ReadString(ptr, length uint32) (string, bool)
	// Diagnostics is the side channel for debug output.
	Diagnostics() io.Writer
	// Logger returns the host logger.
	Logger() *slog.Logger
}

// Impl implements a primitive. stack holds the lowered parameters on entry
// and receives the lowered results, as in wazero's api.GoModuleFunc.
type Impl func(ctx context.Context, env Env, stack []uint64)

// Primitive is a declared host function.
type Primitive struct {
	Prototype
	Impl Impl
}

// Registry is an ordered set of primitives, passed to the compiler and the
// engine explicitly.
type Registry struct {
	prims  []Primitive
	byName map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Declare adds p. Names must be unique and p must not return a String.
func (r *Registry) Declare(p Primitive) error {
	if p.Name == "" {
		return types.NewError(types.ErrBuilder, "primitive has no name", -1)
	}
	if _, dup := r.byName[p.Name]; dup {
		return types.NewError(types.ErrBuilder, fmt.Sprintf("primitive %q already declared", p.Name), -1).WithToken(p.Name)
	}
	if p.Return == String {
		return types.NewError(types.ErrBuilder, fmt.Sprintf("primitive %q cannot return a string", p.Name), -1).WithToken(p.Name)
	}
	if p.Impl == nil {
		return types.NewError(types.ErrBuilder, fmt.Sprintf("primitive %q has no implementation", p.Name), -1).WithToken(p.Name)
	}
	r.byName[p.Name] = len(r.prims)
	r.prims = append(r.prims, p)
	return nil
}

// Lookup returns the primitive called name.
func (r *Registry) Lookup(name string) (Primitive, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Primitive{}, false
	}
	return r.prims[i], true
}

// Index returns the declaration position of name.
func (r *Registry) Index(name string) (int, bool) {
	i, ok := r.byName[name]
	return i, ok
}

// Primitives returns every primitive in declaration order.
func (r *Registry) Primitives() []Primitive {
	out := make([]Primitive, len(r.prims))
	copy(out, r.prims)
	return out
}

// Len returns the number of declared primitives.
func (r *Registry) Len() int {
	return len(r.prims)
}
