package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an Error.
type ErrorCode string

const (
	// S0xxx: syntax errors
	ErrSyntaxError ErrorCode = "S0201"

	// C0xxx: compile errors
	ErrUnknownVariable ErrorCode = "C0101"
	ErrUnknownFunction ErrorCode = "C0102"
	ErrInvalidProgram  ErrorCode = "C0103"
	ErrBuilder         ErrorCode = "C0201"

	// D1xxx: runtime faults
	ErrTrap            ErrorCode = "D1000"
	ErrDivisionByZero  ErrorCode = "D1001"
	ErrIntegerOverflow ErrorCode = "D1002"
	ErrSignature       ErrorCode = "D1003"
)

// Error is a structured jitq error.
type Error struct {
	Code     ErrorCode
	Message  string
	Position int
	Token    string
	// Remainder is the unconsumed source of a syntax error.
	Remainder string
	Err       error
}

// NewError creates a new error. Use a negative position when the error has no
// source location.
func NewError(code ErrorCode, message string, position int) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Position: position,
	}
}

// NewParseError reports that parsing stopped at position, leaving remainder.
func NewParseError(remainder string, position int) *Error {
	msg := "unexpected end of input"
	if remainder != "" {
		msg = fmt.Sprintf("unexpected input %q", remainder)
	}
	return &Error{
		Code:      ErrSyntaxError,
		Message:   msg,
		Position:  position,
		Remainder: remainder,
	}
}

// UnknownVariable reports a reference to an unbound name.
func UnknownVariable(name string) *Error {
	return &Error{
		Code:     ErrUnknownVariable,
		Message:  fmt.Sprintf("unknown variable %q", name),
		Position: -1,
		Token:    name,
	}
}

// UnknownFunction reports a call to an undeclared function.
func UnknownFunction(name string) *Error {
	return &Error{
		Code:     ErrUnknownFunction,
		Message:  fmt.Sprintf("unknown function %q", name),
		Position: -1,
		Token:    name,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("%s at position %d: %s", e.Code, e.Position, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithToken adds token information to the error.
func (e *Error) WithToken(token string) *Error {
	e.Token = token
	return e
}

// WithCause wraps another error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// Is reports whether target is an *Error with the same code, so callers can
// write errors.Is(err, types.NewError(types.ErrUnknownVariable, "", -1)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
