package apperrors

import (
	"errors"
	"fmt"
)

// ValidationError reports bad caller input. No writes happen when it is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

func IsValidationError(err error) bool {
	var validationError *ValidationError
	return errors.As(err, &validationError)
}

// NotFoundError reports a referenced record that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func IsNotFoundError(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// ContentionError is returned when a bounded retry loop gives up.
type ContentionError struct {
	Scope    string
	Attempts int
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts due to concurrent writers", e.Scope, e.Attempts)
}

func NewContentionError(scope string, attempts int) error {
	return &ContentionError{Scope: scope, Attempts: attempts}
}

func IsContentionError(err error) bool {
	var contention *ContentionError
	return errors.As(err, &contention)
}

// OperationFailedError hides a store failure from the caller. The cause is
// kept for logging and errors.Is checks.
type OperationFailedError struct {
	Op  string
	Err error
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("failed to %s", e.Op)
}

func (e *OperationFailedError) Unwrap() error {
	return e.Err
}

func NewOperationFailed(op string, err error) error {
	return &OperationFailedError{Op: op, Err: err}
}

func IsOperationFailed(err error) bool {
	var failed *OperationFailedError
	return errors.As(err, &failed)
}
