// Package parser turns jitq script text into an AST.
//
// The parser is written in combinator style on top of
// github.com/shibukawa/parsercombinator: a hand-written lexer produces a token
// stream (including whitespace tokens) and the grammar rules in grammar.go
// consume it. Parsing is a pure function of the input; on failure the
// returned error carries the unconsumed remainder and no partial AST.
//
// # Example
//
//	exprs, err := parser.ParseExpressions("let a = 3; a * 2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	path, err := parser.ParsePath(".a[1]")
package parser

import (
	pc "github.com/shibukawa/parsercombinator"

	"github.com/sandrolain/jitq/pkg/types"
)

// CompileOption configures parsing behavior.
type CompileOption func(*CompileOptions)

// CompileOptions holds parser configuration.
type CompileOptions struct {
	// MaxDepth limits combinator recursion depth. Zero keeps the library default.
	MaxDepth int
}

// WithMaxDepth sets the maximum parsing depth.
func WithMaxDepth(depth int) CompileOption {
	return func(opts *CompileOptions) {
		opts.MaxDepth = depth
	}
}

// Parse parses text in the given dialect.
func Parse(dialect types.Dialect, text string, opts ...CompileOption) (*types.Script, error) {
	switch dialect {
	case types.DialectPath:
		path, err := ParsePath(text, opts...)
		if err != nil {
			return nil, err
		}
		return types.NewPathScript(path, text), nil
	case types.DialectExpressions:
		exprs, err := ParseExpressions(text, opts...)
		if err != nil {
			return nil, err
		}
		return types.NewExpressionScript(exprs, text), nil
	default:
		return nil, types.NewError(types.ErrInvalidProgram, "unknown dialect "+dialect.String(), -1)
	}
}

// ParseExpressions parses a ";"-separated statement sequence.
// An empty or all-whitespace text yields an empty sequence.
func ParseExpressions(text string, opts ...CompileOption) ([]types.Expr, error) {
	nodes, err := run(exprGrammar, text, opts)
	if err != nil {
		return nil, err
	}
	exprs := make([]types.Expr, 0, len(nodes))
	for _, n := range nodes {
		exprs = append(exprs, n.Val.expr)
	}
	return exprs, nil
}

// ParsePath parses a navigation path such as ".a.b[2]".
// The result always starts with types.Root.
func ParsePath(text string, opts ...CompileOption) (types.Path, error) {
	nodes, err := run(pathGrammar, text, opts)
	if err != nil {
		return nil, err
	}
	path := make(types.Path, 0, len(nodes))
	for _, n := range nodes {
		path = append(path, n.Val.seg)
	}
	return path, nil
}

// run applies grammar to the whole of text.
func run(grammar rule, text string, opts []CompileOption) ([]node, error) {
	var options CompileOptions
	for _, opt := range opts {
		opt(&options)
	}

	tokens := toNodes(Tokenize(text))
	pctx := pc.NewParseContext[entity]()
	if options.MaxDepth > 0 {
		pctx.MaxDepth = options.MaxDepth
	}

	consumed, out, err := grammar(pctx, tokens)
	if err == nil && consumed == len(tokens) {
		return out, nil
	}
	if err != nil {
		consumed = 0
	}
	pos := len(text)
	if consumed < len(tokens) {
		pos = tokens[consumed].Val.tok.Position
	}
	return nil, types.NewParseError(text[pos:], pos)
}
