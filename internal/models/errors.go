package models

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	ErrSyntax    = errors.New("malformed JSON")
	ErrNotArray  = errors.New("expected a JSON array")
	ErrNotObject = errors.New("expected a JSON object")
)

// SyntaxError reports a document that is not well-formed JSON. Offset is
// the byte position of the problem, or -1 when it could not be located.
type SyntaxError struct {
	Offset int64
	Msg    string
}

func (e *SyntaxError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s: %s", ErrSyntax, e.Msg)
	}
	return fmt.Sprintf("%s at offset %d: %s", ErrSyntax, e.Offset, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// FieldError reports a recognised value whose JSON type does not fit.
// Path locates the value inside the document, e.g. "[0].windows.w1".
type FieldError struct {
	Path     string
	Field    string
	Expected string
	Actual   string
	Err      error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %q at %s: expected %s, got %s", e.Field, e.Path, e.Expected, e.Actual)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func typeMismatch(path, field, expected string, value gjson.Result) error {
	return &FieldError{Path: path, Field: field, Expected: expected, Actual: describe(value)}
}

func notObject(path, field string, value gjson.Result) error {
	return &FieldError{Path: path, Field: field, Expected: "object", Actual: describe(value), Err: ErrNotObject}
}

// describe names the JSON type of value for diagnostics. Numbers carry
// their literal so range and sign problems are visible.
func describe(value gjson.Result) string {
	switch {
	case value.IsObject():
		return "object"
	case value.IsArray():
		return "array"
	}
	switch value.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number " + value.Raw
	case gjson.True, gjson.False:
		return "boolean"
	case gjson.Null:
		return "null"
	}
	return "nothing"
}
