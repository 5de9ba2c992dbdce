package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so wrapped
// errors can be matched with errors.Is against the sentinel values below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// CodePreconditionFailed marks input the caller should have rejected before
// invoking a domain operation.
const CodePreconditionFailed = "PRECONDITION_FAILED"

// NewPreconditionError creates a precondition error with a descriptive message
func NewPreconditionError(message string) *DomainError {
	return NewDomainError(CodePreconditionFailed, message)
}

// IsPrecondition reports whether err (or anything it wraps) is a precondition error
func IsPrecondition(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == CodePreconditionFailed
	}
	return false
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrPrecondition        = NewPreconditionError("Precondition failed")
	ErrLockNotAcquired     = NewDomainError("LOCK_NOT_ACQUIRED", "Resource is locked by another writer")
)
