package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/sandrolain/jitq/pkg/document"
	"github.com/sandrolain/jitq/pkg/types"
)

// Function is an invocable compiled entry point. It may be called any
// number of times but not concurrently.
type Function struct {
	name     string
	dialect  types.Dialect
	entry    api.Function
	module   api.Module
	compiled wazero.CompiledModule
	results  []api.ValueType
}

// Name returns the unique module instance name.
func (f *Function) Name() string { return f.name }

// Dialect returns the dialect the function was compiled from.
func (f *Function) Dialect() types.Dialect { return f.dialect }

// CallRecord invokes a (Record) -> Record function. The arena is reachable
// by primitives only for the duration of the call.
func (f *Function) CallRecord(ctx context.Context, arena *document.Arena, in document.Record) (document.Record, error) {
	if len(f.results) != 2 {
		return document.Record{}, f.signatureError("record")
	}
	res, err := f.call(ctx, arena, in)
	if err != nil {
		return document.Record{}, err
	}
	return document.Record{
		Document:  document.Handle(api.DecodeU32(res[0])),
		ErrorCode: document.ErrorCode(api.DecodeU32(res[1])),
	}, nil
}

// CallInteger invokes a (Record) -> Integer function.
func (f *Function) CallInteger(ctx context.Context, arena *document.Arena, in document.Record) (int64, error) {
	if len(f.results) != 1 || f.results[0] != api.ValueTypeI64 {
		return 0, f.signatureError("integer")
	}
	res, err := f.call(ctx, arena, in)
	if err != nil {
		return 0, err
	}
	return int64(res[0]), nil
}

func (f *Function) call(ctx context.Context, arena *document.Arena, in document.Record) ([]uint64, error) {
	ctx = document.WithArena(ctx, arena)
	res, err := f.entry.Call(ctx, api.EncodeU32(uint32(in.Document)), api.EncodeU32(uint32(in.ErrorCode)))
	if err != nil {
		return nil, trapError(err)
	}
	return res, nil
}

func (f *Function) signatureError(want string) error {
	names := make([]string, len(f.results))
	for i, vt := range f.results {
		names[i] = api.ValueTypeName(vt)
	}
	return types.NewError(types.ErrSignature,
		fmt.Sprintf("%s returns (%s), not %s", f.name, strings.Join(names, " "), want), -1)
}

// Close releases the module instance.
func (f *Function) Close(ctx context.Context) error {
	err := f.module.Close(ctx)
	if cerr := f.compiled.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

// trapError maps a failed wazero call to a coded error.
func trapError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "integer divide by zero"):
		return types.NewError(types.ErrDivisionByZero, "division by zero", -1).WithCause(err)
	case strings.Contains(msg, "integer overflow"):
		return types.NewError(types.ErrIntegerOverflow, "integer overflow", -1).WithCause(err)
	default:
		return types.NewError(types.ErrTrap, "execution trapped", -1).WithCause(err)
	}
}
