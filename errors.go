package gccrec

import (
	"errors"
	"fmt"
	"syscall"
)

// Error represents a structured capture error with stage context and
// errno mapping
type Error struct {
	Op    string        // Operation that failed (e.g., "OPEN_SOURCE", "WRITE_ROW")
	Stage string        // Pipeline stage ("reader", "framer", "recorder"), empty if not applicable
	Code  ErrorCode     // High-level error category
	Errno syscall.Errno // Kernel errno (0 if not applicable)
	Msg   string        // Human-readable message
	Inner error         // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Stage != "" {
		parts = append(parts, fmt.Sprintf("stage=%s", e.Stage))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("gccrec: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("gccrec: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support by error code
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode represents high-level error categories
type ErrorCode string

const (
	ErrCodePermissionDenied  ErrorCode = "permission denied"
	ErrCodeMisalignment      ErrorCode = "data stream misaligned"
	ErrCodeMalformedPayload  ErrorCode = "malformed controller payload"
	ErrCodeOutputWrite       ErrorCode = "output write failed"
	ErrCodeInvalidParameters ErrorCode = "invalid parameters"
	ErrCodeSourceNotFound    ErrorCode = "capture source not found"
	ErrCodeIOError           ErrorCode = "I/O error"
	ErrCodeInternal          ErrorCode = "internal error"
)

// Error constructors

// NewError creates a new structured error
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:   op,
		Code: code,
		Msg:  msg,
	}
}

// NewStageError creates a new error attributed to a pipeline stage
func NewStageError(op, stage string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:    op,
		Stage: stage,
		Code:  code,
		Msg:   msg,
	}
}

// WrapError wraps an existing error with capture context
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	// If it's already a structured error, just update the operation
	if ce, ok := inner.(*Error); ok {
		return &Error{
			Op:    op,
			Stage: ce.Stage,
			Code:  ce.Code,
			Errno: ce.Errno,
			Msg:   ce.Msg,
			Inner: ce.Inner,
		}
	}

	// Preserve the errno when one is buried in the chain
	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{
			Op:    op,
			Code:  mapErrnoToCode(errno),
			Errno: errno,
			Msg:   inner.Error(),
			Inner: inner,
		}
	}

	return &Error{
		Op:    op,
		Code:  ErrCodeIOError,
		Msg:   inner.Error(),
		Inner: inner,
	}
}

// mapErrnoToCode maps syscall errno to capture error codes
func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.EPERM, syscall.EACCES:
		return ErrCodePermissionDenied
	case syscall.ENOENT, syscall.ENODEV:
		return ErrCodeSourceNotFound
	case syscall.EINVAL:
		return ErrCodeInvalidParameters
	default:
		return ErrCodeIOError
	}
}

// IsCode checks if an error matches a specific error code
func IsCode(err error, code ErrorCode) bool {
	var capErr *Error
	if errors.As(err, &capErr) {
		return capErr.Code == code
	}
	return false
}

// IsErrno checks if an error matches a specific errno
func IsErrno(err error, errno syscall.Errno) bool {
	var capErr *Error
	if errors.As(err, &capErr) {
		return capErr.Errno == errno
	}
	return false
}
