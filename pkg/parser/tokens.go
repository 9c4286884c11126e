package parser

// TokenType represents the type of a lexical token.
type TokenType uint8

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal
	TokenSpace

	// Literals
	TokenNumber // 123
	TokenName   // lowercase identifier

	// Keywords
	TokenLet // let

	// Grouping symbols
	TokenBracketOpen  // [
	TokenBracketClose // ]
	TokenParenOpen    // (
	TokenParenClose   // )

	// Basic symbols
	TokenDot       // .
	TokenSemicolon // ;
	TokenAssign    // =

	// Arithmetic operators
	TokenPlus  // +
	TokenMinus // -
	TokenMult  // *
	TokenDiv   // /
)

// String returns a string representation of the token type.
func (tt TokenType) String() string {
	switch tt {
	case TokenEOF:
		return "(eof)"
	case TokenIllegal:
		return "(illegal)"
	case TokenSpace:
		return "(space)"
	case TokenNumber:
		return "(number)"
	case TokenName:
		return "(name)"
	case TokenLet:
		return "let"
	case TokenBracketOpen:
		return "["
	case TokenBracketClose:
		return "]"
	case TokenParenOpen:
		return "("
	case TokenParenClose:
		return ")"
	case TokenDot:
		return "."
	case TokenSemicolon:
		return ";"
	case TokenAssign:
		return "="
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenMult:
		return "*"
	case TokenDiv:
		return "/"
	default:
		return "(unknown)"
	}
}

// Token represents a lexical token of either dialect.
type Token struct {
	Type     TokenType // Type of the token
	Value    string    // Literal value of the token
	Position int       // Starting byte offset in the input string
}

// symbols maps single-character symbols to token types.
var symbols = [...]TokenType{
	'[': TokenBracketOpen,
	']': TokenBracketClose,
	'(': TokenParenOpen,
	')': TokenParenClose,
	'.': TokenDot,
	';': TokenSemicolon,
	'=': TokenAssign,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenMult,
	'/': TokenDiv,
}

const symbolCount = rune(len(symbols))

// lookupSymbol returns the token type for a single-character symbol.
// Returns 0 if the rune is not a valid symbol.
func lookupSymbol(r rune) TokenType {
	if r < 0 || r >= symbolCount {
		return 0
	}
	return symbols[r]
}

// lookupKeyword returns the token type for a keyword.
// Returns 0 if the string is not a recognized keyword.
func lookupKeyword(s string) TokenType {
	switch s {
	case "let":
		return TokenLet
	default:
		return 0
	}
}
