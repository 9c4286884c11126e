package document

import (
	"bytes"
	"encoding/json"
	"sync"
)

// Object is a JSON object that remembers the order of its keys.
type Object struct {
	Keys   []string
	Values map[string]any
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{Values: make(map[string]any)}
}

// Get retrieves a value by key.
func (o *Object) Get(key string) (any, bool) {
	value, ok := o.Values[key]
	return value, ok
}

// Set stores value under key. A repeated key keeps its first position.
func (o *Object) Set(key string, value any) {
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = value
}

// Len returns the number of keys.
func (o *Object) Len() int {
	return len(o.Keys)
}

// MarshalJSON preserves key order during marshaling.
func (o *Object) MarshalJSON() ([]byte, error) {
	buf := acquireBuf()
	defer releaseBuf(buf)
	buf.WriteByte('{')
	for i, key := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encode(buf, o.Values[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	// buf.Bytes() points into the pooled buffer's memory; copy before releasing.
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// encode writes v without HTML escaping and without a trailing newline.
func encode(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

// bufPool is a process-wide pool of *bytes.Buffer used when rendering
// documents, one render per output record.
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// acquireBuf returns a reset buffer from the pool.
func acquireBuf() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// releaseBuf returns a buffer to the pool. Very large buffers are discarded.
func releaseBuf(b *bytes.Buffer) {
	if b.Cap() <= 64*1024 {
		bufPool.Put(b)
	}
}
