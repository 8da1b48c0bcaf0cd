// Package apperr defines the error kinds reported by the cleaning, weighting and
// pipeline packages. Every failure carries its kind plus the offending column/value.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a domain failure.
type Kind string

const (
	TypeMismatch          Kind = "TypeMismatch"
	UnsupportedColumnType Kind = "UnsupportedColumnType"
	MissingTimeColumn     Kind = "MissingTimeColumn"
	ColumnLocked          Kind = "ColumnLocked"
	ColumnSetMismatch     Kind = "ColumnSetMismatch"
	NoHistory             Kind = "NoHistory"
	InvalidWeightTotal    Kind = "InvalidWeightTotal"
	UnknownColumn         Kind = "UnknownColumn"
	InvalidParameter      Kind = "InvalidParameter"
	StageOrder            Kind = "StageOrder"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrTypeMismatch          = &Error{Kind: TypeMismatch}
	ErrUnsupportedColumnType = &Error{Kind: UnsupportedColumnType}
	ErrMissingTimeColumn     = &Error{Kind: MissingTimeColumn}
	ErrColumnLocked          = &Error{Kind: ColumnLocked}
	ErrColumnSetMismatch     = &Error{Kind: ColumnSetMismatch}
	ErrNoHistory             = &Error{Kind: NoHistory}
	ErrInvalidWeightTotal    = &Error{Kind: InvalidWeightTotal}
	ErrUnknownColumn         = &Error{Kind: UnknownColumn}
	ErrInvalidParameter      = &Error{Kind: InvalidParameter}
	ErrStageOrder            = &Error{Kind: StageOrder}
)

// Error is a kinded failure. Column and Value identify the offending input when known.
type Error struct {
	Kind    Kind
	Column  string
	Value   string
	Message string
	Err     error
}

// New builds an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithColumn returns a copy carrying the offending column name.
func (e *Error) WithColumn(column string) *Error {
	c := *e
	c.Column = column
	return &c
}

// WithValue returns a copy carrying the offending raw value.
func (e *Error) WithValue(value string) *Error {
	c := *e
	c.Value = value
	return &c
}

// Wrap returns a copy with an underlying cause.
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Column != "" {
		fmt.Fprintf(&b, " (column %q", e.Column)
		if e.Value != "" {
			fmt.Fprintf(&b, ", value %q", e.Value)
		}
		b.WriteString(")")
	} else if e.Value != "" {
		fmt.Fprintf(&b, " (value %q)", e.Value)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
