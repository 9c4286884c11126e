package functions

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/sandrolain/jitq/pkg/document"
)

// Names of the standard primitives.
const (
	PrintDocument = "printDocument"
	DebugBreak    = "debugBreak"
	GetByKey      = "getByKey"
	GetByIndex    = "getByIndex"
)

// Standard returns a registry holding the standard primitives.
func Standard() *Registry {
	r := NewRegistry()
	for _, p := range standard() {
		if err := r.Declare(p); err != nil {
			panic(err)
		}
	}
	return r
}

func standard() []Primitive {
	return []Primitive{
		{
			Prototype: Prototype{
				Name:   PrintDocument,
				Params: []Param{{Name: "doc", Type: Json}},
				Return: Void,
			},
			Impl: printDocument,
		},
		{
			Prototype: Prototype{
				Name:   DebugBreak,
				Return: Void,
			},
			Impl: debugBreak,
		},
		{
			Prototype: Prototype{
				Name: GetByKey,
				Params: []Param{
					{Name: "doc", Type: Json},
					{Name: "key", Type: String},
					{Name: "keyLength", Type: Integer},
				},
				Return: Json,
			},
			Impl: getByKey,
		},
		{
			Prototype: Prototype{
				Name: GetByIndex,
				Params: []Param{
					{Name: "doc", Type: Json},
					{Name: "index", Type: Integer},
				},
				Return: Json,
			},
			Impl: getByIndex,
		},
	}
}

func recordAt(stack []uint64, i int) document.Record {
	return document.Record{
		Document:  document.Handle(api.DecodeU32(stack[i])),
		ErrorCode: document.ErrorCode(api.DecodeU32(stack[i+1])),
	}
}

func putRecord(stack []uint64, rec document.Record) {
	stack[0] = api.EncodeU32(uint32(rec.Document))
	stack[1] = api.EncodeU32(uint32(rec.ErrorCode))
}

// deref resolves a record's document through the arena bound to ctx.
// A missing arena or a stale handle means the host broke the calling
// contract; the panic surfaces as an error from the wazero call.
func deref(ctx context.Context, rec document.Record) (*document.Arena, any) {
	arena, ok := document.ArenaFrom(ctx)
	if !ok {
		panic("no document arena bound to call")
	}
	v, ok := arena.Get(rec.Document)
	if !ok {
		panic(fmt.Sprintf("invalid document handle %d", rec.Document))
	}
	return arena, v
}

func printDocument(ctx context.Context, env Env, stack []uint64) {
	rec := recordAt(stack, 0)
	if !rec.OK() {
		fmt.Fprintf(env.Diagnostics(), "error %d\n", rec.ErrorCode)
		return
	}
	_, v := deref(ctx, rec)
	text, err := document.Render(v)
	if err != nil {
		env.Logger().Warn("cannot render document", "handle", rec.Document, "error", err)
		return
	}
	fmt.Fprintln(env.Diagnostics(), text)
}

func debugBreak(ctx context.Context, env Env, _ []uint64) {
	env.Logger().DebugContext(ctx, "debug break")
}

func getByKey(ctx context.Context, env Env, stack []uint64) {
	rec := recordAt(stack, 0)
	if !rec.OK() {
		putRecord(stack, rec)
		return
	}
	key, ok := env.ReadString(api.DecodeU32(stack[2]), uint32(stack[3]))
	if !ok {
		panic(fmt.Sprintf("key out of memory bounds: ptr=%d len=%d", api.DecodeU32(stack[2]), stack[3]))
	}

	arena, v := deref(ctx, rec)
	field, code := document.Lookup(v, key)
	if code != document.OK {
		rec.ErrorCode = code
		putRecord(stack, rec)
		return
	}
	putRecord(stack, document.Record{Document: arena.Put(field)})
}

func getByIndex(ctx context.Context, env Env, stack []uint64) {
	rec := recordAt(stack, 0)
	if !rec.OK() {
		putRecord(stack, rec)
		return
	}

	arena, v := deref(ctx, rec)
	elem, code := document.At(v, int64(stack[2]))
	if code != document.OK {
		rec.ErrorCode = code
		putRecord(stack, rec)
		return
	}
	putRecord(stack, document.Record{Document: arena.Put(elem)})
}
