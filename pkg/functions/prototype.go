// Package functions declares the primitives that compiled scripts may call.
//
// A primitive is a host function with a typed Prototype. The code generator
// only emits calls to primitives found in the Registry it was given, and the
// engine links the same Registry into every module it instantiates.
//
// # Example
//
//	reg := functions.NewRegistry()
//	err := reg.Declare(functions.Primitive{
//	    Prototype: functions.Prototype{
//	        Name:   "double",
//	        Params: []functions.Param{{Name: "n", Type: functions.Integer}},
//	        Return: functions.Integer,
//	    },
//	    Impl: func(ctx context.Context, env functions.Env, stack []uint64) {
//	        stack[0] = api.EncodeI64(int64(stack[0]) * 2)
//	    },
//	})
package functions

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// Type is the type tag of a parameter or return value.
type Type uint8

const (
	// Json is a document record: a handle plus an error code.
	Json Type = iota
	// Integer is a signed 64-bit integer.
	Integer
	// Float is a 64-bit float.
	Float
	// String is a pointer into linear memory. Parameter only; the length
	// travels as a separate Integer.
	String
	// Void is the absence of a value. Return only.
	Void
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case Json:
		return "json"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case String:
		return "string"
	case Void:
		return "void"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Lower returns the wasm values that carry a value of type t.
func (t Type) Lower() []api.ValueType {
	switch t {
	case Json:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	case Integer:
		return []api.ValueType{api.ValueTypeI64}
	case Float:
		return []api.ValueType{api.ValueTypeF64}
	case String:
		return []api.ValueType{api.ValueTypeI32}
	case Void:
		return nil
	default:
		panic(fmt.Sprintf("functions: cannot lower %s", t))
	}
}

// Param is one named, typed parameter.
type Param struct {
	Name string
	Type Type
}

// Prototype is the signature of a callable primitive.
type Prototype struct {
	Name   string
	Params []Param
	Return Type
}

// Signature lowers the prototype to wasm parameter and result types.
// Prototypes returning String are a programming error and panic.
func (p Prototype) Signature() (params, results []api.ValueType) {
	if p.Return == String {
		panic(fmt.Sprintf("functions: %s cannot return a string", p.Name))
	}
	for _, param := range p.Params {
		if param.Type == Void {
			panic(fmt.Sprintf("functions: parameter %s of %s is void", param.Name, p.Name))
		}
		params = append(params, param.Type.Lower()...)
	}
	return params, p.Return.Lower()
}

// ParamNames returns one name per lowered parameter value. Json parameters
// expand to "<name>" and "<name>_err".
func (p Prototype) ParamNames() []string {
	var names []string
	for _, param := range p.Params {
		names = append(names, param.Name)
		if param.Type == Json {
			names = append(names, param.Name+"_err")
		}
	}
	return names
}

// String renders the prototype as "name(doc: json, index: integer) -> json".
func (p Prototype) String() string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteByte('(')
	for i, param := range p.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", param.Name, param.Type)
	}
	b.WriteString(") -> ")
	b.WriteString(p.Return.String())
	return b.String()
}

// Accepts reports whether a call with the given argument types matches the
// prototype.
func (p Prototype) Accepts(args ...Type) bool {
	if len(args) != len(p.Params) {
		return false
	}
	for i, arg := range args {
		if p.Params[i].Type != arg {
			return false
		}
	}
	return true
}
