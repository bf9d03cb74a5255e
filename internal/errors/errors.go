package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Pocket error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrInvalidSchema  ErrorCode = "INVALID_SCHEMA"  // 422
	ErrCapsuleInvalid ErrorCode = "CAPSULE_INVALID" // 422
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// PocketError represents a structured error with code, status, and details.
type PocketError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *PocketError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *PocketError {
	return &PocketError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a capsule cannot be found.
func NewNotFound(id string) *PocketError {
	return &PocketError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("capsule not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *PocketError {
	return &PocketError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewInvalidSchema creates a 422 error for an import payload that fails validation.
// Nothing has been written when this error is returned.
func NewInvalidSchema() *PocketError {
	return &PocketError{
		Code:    ErrInvalidSchema,
		Status:  422,
		Message: "invalid capsule schema or missing fields",
	}
}

// NewCapsuleInvalid creates a 422 error listing the problems found in an authored capsule.
func NewCapsuleInvalid(problems []string) *PocketError {
	return &PocketError{
		Code:    ErrCapsuleInvalid,
		Status:  422,
		Message: fmt.Sprintf("capsule is invalid: %v", problems),
		Details: map[string]any{"problems": problems},
	}
}

// NewCancelled creates a 499 error when an operation stops because its context ended.
func NewCancelled(op string) *PocketError {
	return &PocketError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *PocketError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &PocketError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Wrap converts any error into a PocketError, keeping existing codes.
func Wrap(err error) *PocketError {
	if err == nil {
		return nil
	}
	var pErr *PocketError
	if stderrors.As(err, &pErr) {
		return pErr
	}
	return NewInternal(err)
}

// Is checks if an error is (or wraps) a PocketError with the given code.
func Is(err error, code ErrorCode) bool {
	var pErr *PocketError
	if stderrors.As(err, &pErr) {
		return pErr.Code == code
	}
	return false
}
