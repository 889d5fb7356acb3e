package errors

import (
	"errors"
	"fmt"
)

type ResourceNotFoundError struct {
	Kind string
	ID   string
}

func NewResourceNotFoundError(kind, id string) *ResourceNotFoundError {
	return &ResourceNotFoundError{Kind: kind, ID: id}
}

func NewWorkNotFoundError(id string) *ResourceNotFoundError {
	return NewResourceNotFoundError("work", id)
}

func NewQueueNotFoundError(id string) *ResourceNotFoundError {
	return NewResourceNotFoundError("queue", id)
}

func NewQueueSettingsNotFoundError(id string) *ResourceNotFoundError {
	return NewResourceNotFoundError("queue settings", id)
}

func (e *ResourceNotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func IsResourceNotFoundError(err error) bool {
	var e *ResourceNotFoundError
	return errors.As(err, &e)
}

// InvalidArgumentError is returned for requests that can never succeed as sent.
type InvalidArgumentError struct {
	Field string
	Err   error
}

func NewInvalidArgumentError(field string, err error) *InvalidArgumentError {
	return &InvalidArgumentError{Field: field, Err: err}
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *InvalidArgumentError) Unwrap() error { return e.Err }

func IsInvalidArgumentError(err error) bool {
	var e *InvalidArgumentError
	return errors.As(err, &e)
}

// ConflictError is returned when a request is valid but the resource is not in
// a state that allows it.
type ConflictError struct {
	Reason string
}

func NewConflictError(format string, args ...any) *ConflictError {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ConflictError) Error() string { return e.Reason }

func IsConflictError(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}
