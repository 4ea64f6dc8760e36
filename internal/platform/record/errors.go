package record

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by single-record fetches when no row matches.
var ErrNotFound = errors.New("record not found")

// ErrRetryExhausted is returned when the versioned update protocol keeps
// losing the row-version race without finding a substantive conflict.
var ErrRetryExhausted = errors.New("row version retry limit exceeded")

// FieldError describes one invalid input value. Path is the property path
// from the top-level record down to the offending field (e.g.
// "selfContact.address.zip").
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors accumulates field errors across a whole insert/update
// tree. Nested operations append to the same instance so a single request
// reports every problem at once instead of failing on the first.
type ValidationErrors struct {
	Errors []FieldError
}

func (e *ValidationErrors) Add(path, format string, args ...interface{}) {
	e.Errors = append(e.Errors, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationErrors) Empty() bool { return len(e.Errors) == 0 }

func (e *ValidationErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.String()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Conflict is one detected optimistic-lock collision: the caller changed a
// column whose persisted value no longer matches what the caller last saw.
type Conflict struct {
	Table     string      `json:"table"`
	Column    string      `json:"column"`
	Known     interface{} `json:"known"`
	Persisted interface{} `json:"persisted"`
	Candidate interface{} `json:"candidate"`
}

// ConflictErrors accumulates conflicts across an update tree, mirroring
// ValidationErrors. Surfaced as a distinct type so callers can tell stale
// data (409) apart from malformed data (400).
type ConflictErrors struct {
	Conflicts []Conflict
}

func (e *ConflictErrors) Add(c Conflict) { e.Conflicts = append(e.Conflicts, c) }

func (e *ConflictErrors) Empty() bool { return len(e.Conflicts) == 0 }

func (e *ConflictErrors) Error() string {
	msgs := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		msgs[i] = fmt.Sprintf("%s.%s", c.Table, c.Column)
	}
	return "update conflicts on: " + strings.Join(msgs, ", ")
}

// SetupError marks a schema/configuration mismatch discovered while
// resolving an entity type. These abort startup.
type SetupError struct {
	Type   string
	Detail string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %s: %s", e.Type, e.Detail)
}

func setupErrf(typeName, format string, args ...interface{}) error {
	return &SetupError{Type: typeName, Detail: fmt.Sprintf(format, args...)}
}
