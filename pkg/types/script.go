// Package types defines the core data model of jitq.
//
// This package contains type definitions for:
//   - Expr: arithmetic dialect AST nodes
//   - Segment and Path: navigation dialect AST
//   - Script: a parsed program of either dialect
//   - Error: structured errors with codes
package types

import "strings"

// Dialect selects one of the two surface languages.
type Dialect uint8

const (
	// DialectPath is the dotted-path navigation language (".a[1]").
	DialectPath Dialect = iota
	// DialectExpressions is the arithmetic / let-binding language.
	DialectExpressions
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case DialectPath:
		return "path"
	case DialectExpressions:
		return "expressions"
	default:
		return "unknown"
	}
}

// Script is a parsed program.
//
// Exactly one of Exprs or Path is meaningful, depending on Dialect.
type Script struct {
	dialect Dialect
	source  string
	exprs   []Expr
	path    Path
}

// NewExpressionScript creates a Script of the expression dialect.
func NewExpressionScript(exprs []Expr, source string) *Script {
	return &Script{
		dialect: DialectExpressions,
		source:  source,
		exprs:   exprs,
	}
}

// NewPathScript creates a Script of the path dialect.
func NewPathScript(path Path, source string) *Script {
	return &Script{
		dialect: DialectPath,
		source:  source,
		path:    path,
	}
}

// Dialect returns the dialect of the script.
func (s *Script) Dialect() Dialect {
	return s.dialect
}

// Source returns the original source code of the script.
func (s *Script) Source() string {
	return s.source
}

// Exprs returns the statements of an expression script.
func (s *Script) Exprs() []Expr {
	return s.exprs
}

// Path returns the segments of a path script.
func (s *Script) Path() Path {
	return s.path
}

// String returns a canonical rendering of the script.
func (s *Script) String() string {
	if s.dialect == DialectPath {
		return s.path.String()
	}
	parts := make([]string, len(s.exprs))
	for i, e := range s.exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}
