// Package param resolves node parameter definitions — literals,
// expressions, template strings, and cross-node references — against a
// node's execution context.
package param

import "fmt"

// ErrorKind enumerates the stable parameter-resolution error taxonomy.
type ErrorKind string

const (
	MissingValue   ErrorKind = "MissingValue"
	InvalidType    ErrorKind = "InvalidType"
	ValidationFail ErrorKind = "ValidationFail"
	ResolutionFail ErrorKind = "ResolutionFail"
)

// Error is the typed error returned by resolution and validation.
type Error struct {
	Kind    ErrorKind
	Param   string
	Message string
}

func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: parameter %q: %s", e.Kind, e.Param, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ValidationErrors collects every rule violation found during a single
// resolve pass. Validation never short-circuits on the first failure —
// every parameter is checked so the caller sees the full set at once.
type ValidationErrors struct {
	Errors []*Error
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}
	return fmt.Sprintf("%d parameter validation errors (first: %s)", len(v.Errors), v.Errors[0].Error())
}

func (v *ValidationErrors) Add(err *Error) {
	v.Errors = append(v.Errors, err)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}
