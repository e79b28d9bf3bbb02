package clinego

import (
	"errors"
	"fmt"
)

// ErrorType represents the distinct failure conditions surfaced to callers,
// so calling code can branch on cause (retry vs. fatal vs. misconfiguration).
type ErrorType int

const (
	// ErrorTypeUnknown represents an unclassified error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeExecutableNotFound means the resolver exhausted all search
	// tiers without finding the core artifact
	ErrorTypeExecutableNotFound
	// ErrorTypePortExhaustion means no free TCP port could be bound
	ErrorTypePortExhaustion
	// ErrorTypeProcessLaunch means an OS-level spawn failure
	ErrorTypeProcessLaunch
	// ErrorTypeProcessExited means a monitored process died before
	// readiness was observed
	ErrorTypeProcessExited
	// ErrorTypeReadinessTimeout means the timeout elapsed with no
	// readiness signal
	ErrorTypeReadinessTimeout
)

// Error represents a structured lifecycle error with type information
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsType checks if the error is of a specific type
func (e *Error) IsType(errorType ErrorType) bool {
	return e.Type == errorType
}

// NewError creates a new Error with the specified type and message
func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error with the specified type, message,
// and underlying cause
func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

func errorIsType(err error, errorType ErrorType) bool {
	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr.IsType(errorType)
	}
	return false
}

// IsExecutableNotFoundError checks if an error reports that the core
// artifact could not be located
func IsExecutableNotFoundError(err error) bool {
	return errorIsType(err, ErrorTypeExecutableNotFound)
}

// IsPortExhaustionError checks if an error reports port allocation failure
func IsPortExhaustionError(err error) bool {
	return errorIsType(err, ErrorTypePortExhaustion)
}

// IsProcessLaunchError checks if an error reports an OS-level spawn failure
func IsProcessLaunchError(err error) bool {
	return errorIsType(err, ErrorTypeProcessLaunch)
}

// IsProcessExitedError checks if an error reports that a process died
// before readiness
func IsProcessExitedError(err error) bool {
	return errorIsType(err, ErrorTypeProcessExited)
}

// IsReadinessTimeoutError checks if an error reports a readiness timeout
func IsReadinessTimeoutError(err error) bool {
	return errorIsType(err, ErrorTypeReadinessTimeout)
}
