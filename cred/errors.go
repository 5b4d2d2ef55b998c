package cred

import "fmt"

type ErrorKind string

const (
	NotFound        ErrorKind = "NotFound"
	ScopeDenied     ErrorKind = "ScopeDenied"
	ScopeRequired   ErrorKind = "ScopeRequired"
	StorageError    ErrorKind = "StorageError"
	AlreadyExists   ErrorKind = "AlreadyExists"
	RotationFailed  ErrorKind = "RotationFailed"
	InvalidArgument ErrorKind = "InvalidArgument"
)

type Error struct {
	Kind    ErrorKind
	ID      ID
	Message string
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: credential %q: %s", e.Kind, e.ID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
