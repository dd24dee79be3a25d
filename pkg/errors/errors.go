package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Graph and schema errors
	ErrorTypeValidation       ErrorType = "VALIDATION"
	ErrorTypeSchemaValidation ErrorType = "SCHEMA_VALIDATION"
	ErrorTypeSchema           ErrorType = "SCHEMA"
	ErrorTypeUnsupportedSpec  ErrorType = "UNSUPPORTED_SPEC"
	ErrorTypeNotFound         ErrorType = "NOT_FOUND"
	ErrorTypeConflict         ErrorType = "CONFLICT"
	ErrorTypeUnauthorized     ErrorType = "UNAUTHORIZED"

	// Service errors
	ErrorTypeInternal ErrorType = "INTERNAL"
	ErrorTypeDatabase ErrorType = "DATABASE"
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError is the error returned across every layer of the module.
type AppError struct {
	Type       ErrorType      `json:"type"`
	Message    string         `json:"message"`
	Code       string         `json:"code,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
	StackTrace string         `json:"-"`
	HTTPStatus int            `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError of the same type, so errors.Is(err, &AppError{Type: ...}) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails merges details into the error
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// Path returns the dotted data path of a schema validation failure, if any.
func (e *AppError) Path() string {
	if e.Details == nil {
		return ""
	}
	p, _ := e.Details["path"].(string)
	return p
}

func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

func newError(t ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// NewValidationError reports a structurally invalid node or edge payload.
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewMissingFieldError reports a required payload field that is absent.
func NewMissingFieldError(field, payload string) *AppError {
	return NewValidationError(fmt.Sprintf("missing '%s' in %s payload", field, payload)).
		WithDetails(map[string]any{"field": field})
}

// NewSchemaValidationError reports data rejected by a type schema. path is
// the dotted path of the first failing property, empty for the root.
func NewSchemaValidationError(path, reason string) *AppError {
	msg := fmt.Sprintf("schema validation failed: %s", reason)
	if path != "" {
		msg = fmt.Sprintf("schema validation failed at '%s': %s", path, reason)
	}
	return newError(ErrorTypeSchemaValidation, http.StatusUnprocessableEntity, msg).
		WithDetails(map[string]any{"path": path})
}

// NewSchemaError reports a schema source that cannot be normalized.
func NewSchemaError(message string) *AppError {
	return newError(ErrorTypeSchema, http.StatusBadRequest, message)
}

// NewUnsupportedSpecError reports a type registry value of an unknown shape.
func NewUnsupportedSpecError(kind, key string, value any) *AppError {
	return newError(ErrorTypeUnsupportedSpec, http.StatusBadRequest,
		fmt.Sprintf("unsupported %s type spec for '%s': %T", kind, key, value)).
		WithDetails(map[string]any{"key": key})
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newError(ErrorTypeUnauthorized, http.StatusUnauthorized, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	return newError(ErrorTypeDatabase, http.StatusInternalServerError,
		fmt.Sprintf("database operation '%s' failed", operation)).WithCause(err)
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	return newError(ErrorTypeExternal, http.StatusBadGateway,
		fmt.Sprintf("external service '%s' error", service)).WithCause(err)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

func IsValidation(err error) bool       { return IsType(err, ErrorTypeValidation) }
func IsSchemaValidation(err error) bool { return IsType(err, ErrorTypeSchemaValidation) }
func IsSchema(err error) bool           { return IsType(err, ErrorTypeSchema) }
func IsUnsupportedSpec(err error) bool  { return IsType(err, ErrorTypeUnsupportedSpec) }
func IsNotFound(err error) bool         { return IsType(err, ErrorTypeNotFound) }
func IsConflict(err error) bool         { return IsType(err, ErrorTypeConflict) }
func IsUnauthorized(err error) bool     { return IsType(err, ErrorTypeUnauthorized) }

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...any) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
