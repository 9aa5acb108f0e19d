package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ERR_VALIDATION  ErrorKind = "validation"
	ERR_CONFLICT    ErrorKind = "conflict"
	ERR_CONCURRENCY ErrorKind = "concurrency"
	ERR_CONSISTENCY ErrorKind = "consistency"
	ERR_NOT_FOUND   ErrorKind = "not_found"
)

type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewValidationError(format string, args ...any) *DomainError {
	return &DomainError{Kind: ERR_VALIDATION, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...any) *DomainError {
	return &DomainError{Kind: ERR_CONFLICT, Message: fmt.Sprintf(format, args...)}
}

func NewConcurrencyError(format string, args ...any) *DomainError {
	return &DomainError{Kind: ERR_CONCURRENCY, Message: fmt.Sprintf(format, args...)}
}

// NewConsistencyViolation marks a transition that would break an engine
// invariant. The surrounding transaction must be aborted and the record
// flagged for manual audit, never repaired inline.
func NewConsistencyViolation(format string, args ...any) *DomainError {
	return &DomainError{Kind: ERR_CONSISTENCY, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...any) *DomainError {
	return &DomainError{Kind: ERR_NOT_FOUND, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the machine-readable kind from any error chain.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Retryable reports whether the caller may safely retry the whole
// operation from scratch.
func Retryable(err error) bool {
	return KindOf(err) == ERR_CONCURRENCY
}
