package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the categories of the engine's error taxonomy.
//
// Configuration errors are fatal at load time, before any evaluation.
// Accessor errors are fatal for the single check being evaluated; other
// checks in the same asset continue. Unsupported-check errors mean no viable
// execution path existed and are reported as evaluation errors, excluded
// from blocking computation. A failing check is NOT an error: it is a normal
// outcome carried in the CheckResult.
type ErrorType string

const (
	ErrorTypeConfiguration    ErrorType = "configuration"
	ErrorTypeAccessor         ErrorType = "accessor"
	ErrorTypeUnsupportedCheck ErrorType = "unsupported_check"
	ErrorTypeHistory          ErrorType = "history"
	ErrorTypeInternal         ErrorType = "internal"
)

// AppError is an application-specific error with category, stable code and
// optional cause.
type AppError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error.
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{Type: errType, Code: code, Message: message}
}

// WrapError wraps an existing error with application context.
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{Type: errType, Code: code, Message: message, Cause: err}
}

// NewConfigurationError creates a configuration error (fatal at load time).
func NewConfigurationError(code, message string) *AppError {
	return NewAppError(ErrorTypeConfiguration, code, message)
}

// NewAccessorError creates a dataset-accessor error (fatal per check).
func NewAccessorError(code, message string) *AppError {
	return NewAppError(ErrorTypeAccessor, code, message)
}

// WrapAccessorError wraps an underlying source error as an accessor error.
func WrapAccessorError(err error, code, message string) *AppError {
	return WrapError(err, ErrorTypeAccessor, code, message)
}

// NewUnsupportedCheckError creates an error for a check/accessor combination
// with no viable execution path.
func NewUnsupportedCheckError(message string) *AppError {
	return NewAppError(ErrorTypeUnsupportedCheck, CodeUnsupportedCheck, message)
}

// NewHistoryError creates a history-store error.
func NewHistoryError(code, message string) *AppError {
	return NewAppError(ErrorTypeHistory, code, message)
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, CodeInternalError, message)
}

// TypeOf returns the taxonomy category of an error, or ErrorTypeInternal for
// bare errors.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsConfigurationError reports whether err belongs to the configuration
// category.
func IsConfigurationError(err error) bool {
	return TypeOf(err) == ErrorTypeConfiguration
}

// IsAccessorError reports whether err belongs to the accessor category.
func IsAccessorError(err error) bool {
	return TypeOf(err) == ErrorTypeAccessor
}

// IsUnsupportedCheckError reports whether err means no execution path was
// viable for a check.
func IsUnsupportedCheckError(err error) bool {
	return TypeOf(err) == ErrorTypeUnsupportedCheck
}

// Error codes for different error scenarios
const (
	// Configuration error codes
	CodeInvalidCheckType  = "INVALID_CHECK_TYPE"
	CodeMissingParameter  = "MISSING_PARAMETER"
	CodeInvalidParameter  = "INVALID_PARAMETER"
	CodeDuplicateCheck    = "DUPLICATE_CHECK"
	CodeInvalidDataSource = "INVALID_DATA_SOURCE"
	CodeConfigLoadFailed  = "CONFIG_LOAD_FAILED"

	// Accessor error codes
	CodeSourceUnreachable = "SOURCE_UNREACHABLE"
	CodeColumnNotFound    = "COLUMN_NOT_FOUND"
	CodeQueryFailed       = "QUERY_FAILED"
	CodeAggregateFailed   = "AGGREGATE_FAILED"
	CodeMaterializeFailed = "MATERIALIZE_FAILED"
	CodeEvaluationTimeout = "EVALUATION_TIMEOUT"

	// Unsupported-check error codes
	CodeUnsupportedCheck = "UNSUPPORTED_CHECK"

	// History error codes
	CodeHistoryAppendFailed = "HISTORY_APPEND_FAILED"
	CodeHistoryReadFailed   = "HISTORY_READ_FAILED"
	CodeHistoryBackend      = "HISTORY_BACKEND"

	// Internal error codes
	CodeInternalError = "INTERNAL_ERROR"
)
