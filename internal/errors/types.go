package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeExport     ErrorType = "export"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes. The auth codes are the identity provider's own codes so
// provider errors can be matched without translation.
const (
	CodeAuthPopupClosed        = "auth/popup-closed-by-user"
	CodeAuthNetwork            = "auth/network-request-failed"
	CodeAuthPopupCancelled     = "auth/cancelled-popup-request"
	CodeAuthStorageUnsupported = "auth/web-storage-unsupported"
	CodeAuthOther              = "auth/internal-error"

	CodeEmptyGist      = "ERR_EMPTY_GIST"
	CodeExportFailed   = "ERR_EXPORT_FAILED"
	CodeConfigInvalid  = "ERR_CONFIG_INVALID"
	CodeProjectInvalid = "ERR_PROJECT_INVALID"
	CodeFileNotFound   = "ERR_FILE_NOT_FOUND"
	CodeInternalError  = "ERR_INTERNAL"
)

// PopcodeError is a structured error type with context.
type PopcodeError struct {
	Type      ErrorType
	Code      string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Component string
}

// Error implements the error interface.
func (e *PopcodeError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PopcodeError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code, so sentinel values built with the
// constructors below compare equal to errors carrying extra context.
func (e *PopcodeError) Is(target error) bool {
	var t *PopcodeError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PopcodeError) WithContext(key string, value interface{}) *PopcodeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *PopcodeError) WithComponent(component string) *PopcodeError {
	e.Component = component

	return e
}

// NewAuthError creates an authentication error carrying a provider code.
func NewAuthError(code, message string, cause error) *PopcodeError {
	return &PopcodeError{
		Type:    ErrorTypeAuth,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewExportError creates an export error.
func NewExportError(code, message string, cause error) *PopcodeError {
	return &PopcodeError{
		Type:    ErrorTypeExport,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(code, message string, cause error) *PopcodeError {
	return &PopcodeError{
		Type:    ErrorTypeNetwork,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *PopcodeError {
	return &PopcodeError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PopcodeError {
	return &PopcodeError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *PopcodeError {
	return &PopcodeError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PopcodeError {
	return &PopcodeError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Code returns the code of the first PopcodeError in err's chain, or "".
func Code(err error) string {
	var pe *PopcodeError
	if errors.As(err, &pe) {
		return pe.Code
	}

	return ""
}

// IsType reports whether err's chain contains a PopcodeError of type t.
func IsType(err error, t ErrorType) bool {
	var pe *PopcodeError
	if errors.As(err, &pe) {
		return pe.Type == t
	}

	return false
}

// ErrEmptyGist is returned when a project has no source content to export.
var ErrEmptyGist = NewExportError(CodeEmptyGist, "project has no source content to export", nil)

// IsEmptyGist reports whether err is the empty-gist export failure.
func IsEmptyGist(err error) bool {
	return errors.Is(err, ErrEmptyGist)
}
