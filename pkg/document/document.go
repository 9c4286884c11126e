// Package document holds the JSON documents that compiled scripts navigate.
//
// Documents never cross into generated code as pointers. The driver owns an
// Arena per record; generated code only sees Handles (indices into it), and
// host primitives dereference them through the arena bound to the context of
// the running call.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrTrailingData is returned by Decode when input continues after the document.
var ErrTrailingData = errors.New("trailing data after document")

// Decode parses one JSON document. Objects become *Object (key order kept),
// arrays []any, numbers json.Number, and the remaining scalars their
// encoding/json representation.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := NewObject()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v is not a string", kt)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := make([]any, 0)
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", rune(delim))
	}
}

// Render returns the compact JSON text of v.
func Render(v any) (string, error) {
	buf := acquireBuf()
	defer releaseBuf(buf)
	if err := encode(buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Lookup returns field key of an object document.
func Lookup(v any, key string) (any, ErrorCode) {
	switch obj := v.(type) {
	case *Object:
		if field, ok := obj.Get(key); ok {
			return field, OK
		}
		return nil, ErrNotFound
	case map[string]any:
		if field, ok := obj[key]; ok {
			return field, OK
		}
		return nil, ErrNotFound
	default:
		return nil, ErrTypeMismatch
	}
}

// At returns element index of an array document.
func At(v any, index int64) (any, ErrorCode) {
	arr, ok := v.([]any)
	if !ok {
		return nil, ErrTypeMismatch
	}
	if index < 0 || index >= int64(len(arr)) {
		return nil, ErrNotFound
	}
	return arr[index], OK
}
