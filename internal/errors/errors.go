package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a texclean error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrUnsafeOutput   ErrorCode = "UNSAFE_OUTPUT"   // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrNameCollision  ErrorCode = "NAME_COLLISION"  // 409
	ErrDecodeFailed   ErrorCode = "DECODE_FAILED"   // 422
	ErrUnreadable     ErrorCode = "UNREADABLE"      // 500
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// CleanError represents a structured error with code, status, and details.
type CleanError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CleanError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CleanError {
	return &CleanError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnsafeOutput creates a 400 error when the output directory would clobber
// the input tree or write through a symlink.
func NewUnsafeOutput(path, reason string) *CleanError {
	return &CleanError{
		Code:    ErrUnsafeOutput,
		Status:  400,
		Message: fmt.Sprintf("refusing output directory %s: %s", path, reason),
		Details: map[string]any{"path": path, "reason": reason},
	}
}

// NewNotFound creates a 404 error for a missing input path.
func NewNotFound(path string) *CleanError {
	return &CleanError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("path not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNameCollision creates a 409 error when several input files flatten to the
// same output name.
func NewNameCollision(target string, sources []string) *CleanError {
	return &CleanError{
		Code:    ErrNameCollision,
		Status:  409,
		Message: fmt.Sprintf("%d files flatten to %q: %v", len(sources), target, sources),
		Details: map[string]any{"target": target, "sources": sources},
	}
}

// NewDecodeFailed creates a 422 error for markup that is not valid text under
// the strict decoding policy.
func NewDecodeFailed(path string, offset int) *CleanError {
	return &CleanError{
		Code:    ErrDecodeFailed,
		Status:  422,
		Message: fmt.Sprintf("%s: invalid UTF-8 at byte %d (set decode_errors to replace, ignore or latin1)", path, offset),
		Details: map[string]any{"path": path, "offset": offset},
	}
}

// NewUnreadable creates a 500 error for an input file that could not be read.
func NewUnreadable(path string, err error) *CleanError {
	return &CleanError{
		Code:    ErrUnreadable,
		Status:  500,
		Message: fmt.Sprintf("cannot read %s: %v", path, err),
		Details: map[string]any{"path": path},
	}
}

// NewCancelled creates an error for an operation stopped by its context.
func NewCancelled(op string) *CleanError {
	return &CleanError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *CleanError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CleanError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a CleanError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *CleanError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}
