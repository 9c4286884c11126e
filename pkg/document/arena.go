package document

import (
	"context"
	"strconv"
)

// Handle is an opaque reference to a document held by an Arena.
type Handle uint32

// ErrorCode is the in-band navigation status carried by a Record.
type ErrorCode uint32

const (
	// OK means the record holds a valid document.
	OK ErrorCode = 0
	// ErrNotFound means a key was missing or an index out of range.
	ErrNotFound ErrorCode = 1
	// ErrTypeMismatch means a segment expected an object or array and found neither.
	ErrTypeMismatch ErrorCode = 2
)

// String returns a short description of the code.
func (c ErrorCode) String() string {
	switch c {
	case OK:
		return "ok"
	case ErrNotFound:
		return "not found"
	case ErrTypeMismatch:
		return "type mismatch"
	default:
		return "error " + strconv.FormatUint(uint64(c), 10)
	}
}

// Record is the value passed into and returned from a compiled path function.
//
// Its ABI is two i32 values in field order: the document handle, then the
// error code. A Record is only meaningful together with the Arena it was
// created against.
type Record struct {
	Document  Handle
	ErrorCode ErrorCode
}

// OK reports whether the record carries no error.
func (r Record) OK() bool {
	return r.ErrorCode == OK
}

// Arena owns the documents reachable during one call.
//
// Arena is not thread-safe; the driver uses one arena per goroutine and
// resets it between records.
type Arena struct {
	docs []any
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{docs: make([]any, 0, 16)}
}

// Put stores v and returns its handle.
func (a *Arena) Put(v any) Handle {
	a.docs = append(a.docs, v)
	return Handle(len(a.docs) - 1)
}

// Get returns the document behind h.
func (a *Arena) Get(h Handle) (any, bool) {
	if int(h) >= len(a.docs) {
		return nil, false
	}
	return a.docs[h], true
}

// Len returns the number of stored documents.
func (a *Arena) Len() int {
	return len(a.docs)
}

// Reset drops every document. Handles issued before the reset become invalid.
func (a *Arena) Reset() {
	clear(a.docs)
	a.docs = a.docs[:0]
}

type arenaKey struct{}

// WithArena binds a to the returned context for the extent of one call.
func WithArena(ctx context.Context, a *Arena) context.Context {
	return context.WithValue(ctx, arenaKey{}, a)
}

// ArenaFrom returns the arena bound to ctx.
func ArenaFrom(ctx context.Context) (*Arena, bool) {
	a, ok := ctx.Value(arenaKey{}).(*Arena)
	return a, ok && a != nil
}
