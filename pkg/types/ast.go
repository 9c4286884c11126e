package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator identifies an arithmetic operator of a BinaryOp node.
type Operator uint8

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
)

// String returns the operator symbol.
func (o Operator) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	default:
		return "?"
	}
}

// Expr is a node of the arithmetic dialect.
//
// The set of implementations is closed: Value, BinaryOp, Var, Let and Paren.
// Consumers switch over the concrete types.
type Expr interface {
	fmt.Stringer
	// Debug returns a fully parenthesized rendering of the node.
	Debug() string
	exprNode()
}

// Value is an integer literal.
type Value struct {
	N int64
}

// BinaryOp applies Op to Left and Right.
type BinaryOp struct {
	Op    Operator
	Left  Expr
	Right Expr
}

// Var references a name bound by an earlier Let.
type Var struct {
	Name string
}

// Let binds (or rebinds) Name and evaluates to the bound value.
type Let struct {
	Name  string
	Value Expr
}

// Paren groups Inner. It has no effect on evaluation.
type Paren struct {
	Inner Expr
}

func (Value) exprNode()    {}
func (BinaryOp) exprNode() {}
func (Var) exprNode()      {}
func (Let) exprNode()      {}
func (Paren) exprNode()    {}

func (v Value) String() string { return strconv.FormatInt(v.N, 10) }
func (v Value) Debug() string  { return v.String() }

func (b BinaryOp) String() string {
	return fmt.Sprintf("%s %s %s", b.Left, b.Op, b.Right)
}

func (b BinaryOp) Debug() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.Debug(), b.Op, b.Right.Debug())
}

func (v Var) String() string { return v.Name }
func (v Var) Debug() string  { return strconv.Quote(v.Name) }

func (l Let) String() string {
	return fmt.Sprintf("let %s = %s", l.Name, l.Value)
}

func (l Let) Debug() string {
	return fmt.Sprintf("let %q = %s", l.Name, l.Value.Debug())
}

func (p Paren) String() string { return "(" + p.Inner.String() + ")" }
func (p Paren) Debug() string  { return "[" + p.Inner.Debug() + "]" }

// Segment is one step of a navigation path.
//
// The set of implementations is closed: Root, Key and Index.
type Segment interface {
	fmt.Stringer
	segmentNode()
}

// Root is the identity segment. It only appears first in a Path.
type Root struct{}

// Key selects an object field.
type Key struct {
	Name string
}

// Index selects an array element.
type Index struct {
	N uint64
}

func (Root) segmentNode()  {}
func (Key) segmentNode()   {}
func (Index) segmentNode() {}

func (Root) String() string    { return "." }
func (k Key) String() string   { return "." + k.Name }
func (i Index) String() string { return "[" + strconv.FormatUint(i.N, 10) + "]" }

// Path is an ordered segment sequence starting with Root.
type Path []Segment

// String renders the path in source form, e.g. ".a[1].b".
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		switch s := seg.(type) {
		case Root:
			b.WriteByte('.')
		case Key:
			// The first key after the root shares its dot.
			if i == 1 {
				b.WriteString(s.Name)
			} else {
				b.WriteString(s.String())
			}
		default:
			b.WriteString(s.String())
		}
	}
	return b.String()
}

// Validate checks the Root-first invariant.
func (p Path) Validate() error {
	if len(p) == 0 {
		return NewError(ErrInvalidProgram, "path has no root", -1)
	}
	if _, ok := p[0].(Root); !ok {
		return NewError(ErrInvalidProgram, "path must start at the root", -1)
	}
	for i, seg := range p[1:] {
		if _, ok := seg.(Root); ok {
			return NewError(ErrInvalidProgram, fmt.Sprintf("root segment at position %d", i+1), -1)
		}
	}
	return nil
}
