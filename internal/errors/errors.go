package errors

import (
	"fmt"

	"permutest/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeStateError       = "STATE_ERROR"
	CodeComputationError = "COMPUTATION_ERROR"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func StateError(message string) *AppError {
	return New(CodeStateError, message)
}

func ComputationError(message string) *AppError {
	return New(CodeComputationError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

// FromDomain classifies a domain error into the application taxonomy.
// Unrecognized errors fall through as INTERNAL_ERROR.
func FromDomain(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case core.IsValidationError(err):
		return &AppError{Code: CodeValidationError, Message: err.Error(), Cause: err}
	case core.IsStateError(err):
		return &AppError{Code: CodeStateError, Message: err.Error(), Cause: err}
	case core.IsComputationError(err):
		return &AppError{Code: CodeComputationError, Message: err.Error(), Cause: err}
	}
	return &AppError{Code: CodeInternalError, Message: err.Error(), Cause: err}
}
