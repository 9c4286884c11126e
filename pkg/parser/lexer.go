package parser

import "unicode/utf8"

const eof = -1

// Lexer converts script text into a sequence of tokens.
// The implementation is based on Rob Pike's "Lexical Scanning in Go" technique.
//
// Whitespace is reported as TokenSpace rather than skipped, because the path
// dialect does not allow it between segments. Characters outside the language
// become single-rune TokenIllegal tokens; the grammar decides what to do with them.
type Lexer struct {
	input   string // Input string being scanned
	length  int    // Length of input string
	start   int    // Start position of current token
	current int    // Current position in input
	width   int    // Width of last rune read
}

// NewLexer creates a new lexer from the provided input string.
// The input is tokenized by successive calls to the Next method.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		length: len(input),
	}
}

// Next returns the next token from the input.
// When the end of the input is reached, Next returns TokenEOF for all subsequent calls.
func (l *Lexer) Next() Token {
	ch := l.nextRune()
	if ch == eof {
		return l.eof()
	}

	if isWhitespace(ch) {
		l.acceptAll(isWhitespace)
		return l.newToken(TokenSpace)
	}

	if tt := lookupSymbol(ch); tt > 0 {
		return l.newToken(tt)
	}

	if isDigit(ch) {
		l.acceptAll(isDigit)
		return l.newToken(TokenNumber)
	}

	if isLower(ch) {
		l.acceptAll(isLower)
		t := l.newToken(TokenName)
		if tt := lookupKeyword(t.Value); tt > 0 {
			t.Type = tt
		}
		return t
	}

	return l.newToken(TokenIllegal)
}

// Tokenize scans the whole input. The trailing TokenEOF is not included.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		t := l.Next()
		if t.Type == TokenEOF {
			return tokens
		}
		tokens = append(tokens, t)
	}
}

// Helper methods

func (l *Lexer) eof() Token {
	return Token{
		Type:     TokenEOF,
		Position: l.current,
	}
}

func (l *Lexer) newToken(tt TokenType) Token {
	t := Token{
		Type:     tt,
		Value:    l.input[l.start:l.current],
		Position: l.start,
	}
	l.width = 0
	l.start = l.current
	return t
}

func (l *Lexer) nextRune() rune {
	if l.current >= l.length {
		l.width = 0
		return eof
	}

	r, w := utf8.DecodeRuneInString(l.input[l.current:])
	l.width = w
	l.current += w
	return r
}

func (l *Lexer) backup() {
	l.current -= l.width
}

func (l *Lexer) accept(isValid func(rune) bool) bool {
	if isValid(l.nextRune()) {
		return true
	}
	l.backup()
	return false
}

func (l *Lexer) acceptAll(isValid func(rune) bool) bool {
	var matched bool
	for l.accept(isValid) {
		matched = true
	}
	return matched
}

// Character classification functions

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v':
		return true
	default:
		return false
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isLower(r rune) bool {
	return r >= 'a' && r <= 'z'
}
