package parser

import (
	"slices"
	"strconv"
	"strings"

	pc "github.com/shibukawa/parsercombinator"

	"github.com/sandrolain/jitq/pkg/types"
)

// entity is the payload carried through the combinators. Raw tokens carry
// tok; reduced tokens carry either expr or seg.
type entity struct {
	tok  Token
	expr types.Expr
	seg  types.Segment
}

type (
	node = pc.Token[entity]
	rule = pc.Parser[entity]
)

var (
	exprGrammar = newExpressionGrammar()
	pathGrammar = newPathGrammar()
)

// kind matches a single token of one of the given types.
func kind(tt ...TokenType) rule {
	return func(_ *pc.ParseContext[entity], tokens []node) (int, []node, error) {
		if len(tokens) > 0 && slices.Contains(tt, tokens[0].Val.tok.Type) {
			return 1, tokens[:1], nil
		}
		return 0, nil, pc.ErrNotMatch
	}
}

// integer matches a number token that fits into an int64.
func integer() rule {
	return func(_ *pc.ParseContext[entity], tokens []node) (int, []node, error) {
		if len(tokens) > 0 && tokens[0].Val.tok.Type == TokenNumber {
			if _, err := strconv.ParseInt(tokens[0].Val.tok.Value, 10, 64); err == nil {
				return 1, tokens[:1], nil
			}
		}
		return 0, nil, pc.ErrNotMatch
	}
}

var sp = pc.Drop(pc.ZeroOrMore("space", kind(TokenSpace)))

// ws surrounds p with optional whitespace.
func ws(p rule) rule {
	return pc.Seq(sp, p, sp)
}

func reduceExpr(at node, e types.Expr) []node {
	return []node{{Type: "expr", Pos: at.Pos, Raw: at.Raw, Val: entity{tok: at.Val.tok, expr: e}}}
}

func reduceSegment(at node, s types.Segment) []node {
	return []node{{Type: "segment", Pos: at.Pos, Raw: at.Raw, Val: entity{tok: at.Val.tok, seg: s}}}
}

func operatorOf(tt TokenType) types.Operator {
	switch tt {
	case TokenPlus:
		return types.OpAdd
	case TokenMinus:
		return types.OpSub
	case TokenMult:
		return types.OpMul
	default:
		return types.OpDiv
	}
}

// foldLeft turns [e, op, e, op, e] into left-nested binary operations.
func foldLeft(_ *pc.ParseContext[entity], src []node) ([]node, error) {
	acc := src[0].Val.expr
	for i := 1; i+1 < len(src); i += 2 {
		acc = types.BinaryOp{
			Op:    operatorOf(src[i].Val.tok.Type),
			Left:  acc,
			Right: src[i+1].Val.expr,
		}
	}
	return reduceExpr(src[0], acc), nil
}

// newExpressionGrammar builds:
//
//	statements := stmt (";" stmt)*
//	stmt       := "let" name "=" arith | arith
//	arith      := term (("+" | "-") term)*
//	term       := factor (("*" | "/") factor)*
//	factor     := number | name | "(" arith ")"
func newExpressionGrammar() rule {
	var arith rule

	number := pc.Trans(ws(integer()), func(_ *pc.ParseContext[entity], src []node) ([]node, error) {
		n, _ := strconv.ParseInt(src[0].Val.tok.Value, 10, 64)
		return reduceExpr(src[0], types.Value{N: n}), nil
	})

	variable := pc.Trans(ws(kind(TokenName)), func(_ *pc.ParseContext[entity], src []node) ([]node, error) {
		return reduceExpr(src[0], types.Var{Name: src[0].Val.tok.Value}), nil
	})

	parens := pc.Trans(
		pc.Seq(
			ws(kind(TokenParenOpen)),
			pc.Lazy(func() rule { return arith }),
			ws(kind(TokenParenClose)),
		),
		func(_ *pc.ParseContext[entity], src []node) ([]node, error) {
			return reduceExpr(src[0], types.Paren{Inner: src[1].Val.expr}), nil
		},
	)

	factor := pc.Or(number, variable, parens)

	term := pc.Trans(
		pc.Seq(factor, pc.ZeroOrMore("term", pc.Seq(ws(kind(TokenMult, TokenDiv)), factor))),
		foldLeft,
	)

	arith = pc.Trans(
		pc.Seq(term, pc.ZeroOrMore("arith", pc.Seq(ws(kind(TokenPlus, TokenMinus)), term))),
		foldLeft,
	)

	let := pc.Trans(
		pc.Seq(ws(kind(TokenLet)), ws(kind(TokenName)), ws(kind(TokenAssign)), arith),
		func(_ *pc.ParseContext[entity], src []node) ([]node, error) {
			return reduceExpr(src[0], types.Let{Name: src[1].Val.tok.Value, Value: src[3].Val.expr}), nil
		},
	)

	stmt := pc.Or(let, arith)

	return pc.Seq(
		sp,
		pc.Optional(pc.Seq(
			stmt,
			pc.ZeroOrMore("statements", pc.Seq(pc.Drop(ws(kind(TokenSemicolon))), stmt)),
		)),
		sp,
	)
}

// newPathGrammar builds:
//
//	path    := "." (key | index)? segment*
//	segment := "." key | index
//	key     := name
//	index   := "[" digits "]"
func newPathGrammar() rule {
	root := pc.Trans(kind(TokenDot), func(_ *pc.ParseContext[entity], src []node) ([]node, error) {
		return reduceSegment(src[0], types.Root{}), nil
	})

	// "let" is only a keyword of the expression dialect.
	key := pc.Trans(kind(TokenName, TokenLet), func(_ *pc.ParseContext[entity], src []node) ([]node, error) {
		return reduceSegment(src[0], types.Key{Name: src[0].Val.tok.Value}), nil
	})

	index := pc.Trans(
		pc.Seq(kind(TokenBracketOpen), sp, integer(), sp, kind(TokenBracketClose)),
		func(_ *pc.ParseContext[entity], src []node) ([]node, error) {
			n, _ := strconv.ParseInt(src[1].Val.tok.Value, 10, 64)
			return reduceSegment(src[0], types.Index{N: uint64(n)}), nil
		},
	)

	segment := pc.Or(pc.Seq(pc.Drop(kind(TokenDot)), key), index)

	return pc.Seq(
		sp,
		root,
		pc.Optional(pc.Or(key, index)),
		pc.ZeroOrMore("segments", segment),
		sp,
	)
}

// toNodes wraps lexer tokens for the combinators.
func toNodes(tokens []Token) []node {
	nodes := make([]node, len(tokens))
	line, col := 1, 1
	for i, t := range tokens {
		nodes[i] = node{
			Type: "raw",
			Pos: &pc.Pos{
				Line:  line,
				Col:   col,
				Index: t.Position,
			},
			Val: entity{tok: t},
			Raw: t.Value,
		}
		if n := strings.Count(t.Value, "\n"); n > 0 {
			line += n
			col = len(t.Value) - strings.LastIndexByte(t.Value, '\n')
		} else {
			col += len(t.Value)
		}
	}
	return nodes
}
