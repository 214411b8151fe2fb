// Package errors provides the structured application error used across the
// hybrid investigation orchestrator: a typed, HTTP-mappable error with
// optional details, an underlying cause, and safe-for-client messages.
package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorType classifies an AppError for status-code mapping, safe messaging,
// and metrics/log aggregation.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeInternal   ErrorType = "internal"

	// ErrorTypeProvider surfaces §7's ProviderError: a ConfidenceAssessor /
	// tool / agent provider failure that is not recoverable and must not be
	// papered over with synthesized output.
	ErrorTypeProvider ErrorType = "provider"
	// ErrorTypeTool is a single failed tool invocation; the investigation continues.
	ErrorTypeTool ErrorType = "tool"
	// ErrorTypeAgent is a failed domain-agent invocation; the domain is marked ERROR.
	ErrorTypeAgent ErrorType = "agent"
	// ErrorTypeSafetyViolation is a circuit breaker or safety concern forcing termination.
	ErrorTypeSafetyViolation ErrorType = "safety_violation"
	// ErrorTypeStateMerge is a node's attempt to overwrite a protected state field.
	ErrorTypeStateMerge ErrorType = "state_merge"
	// ErrorTypeCheckpoint is a checkpoint persistence failure.
	ErrorTypeCheckpoint ErrorType = "checkpoint"
)

// ProviderSubkind distinguishes the non-recoverable ProviderError variants of §7.
type ProviderSubkind string

const (
	ProviderSubkindContextLengthExceeded ProviderSubkind = "context_length_exceeded"
	ProviderSubkindModelNotFound         ProviderSubkind = "model_not_found"
	ProviderSubkindAPIError              ProviderSubkind = "api_error"
	ProviderSubkindRateLimited           ProviderSubkind = "rate_limited"
)

var statusCodes = map[ErrorType]int{
	ErrorTypeValidation:      http.StatusBadRequest,
	ErrorTypeAuth:            http.StatusUnauthorized,
	ErrorTypeNotFound:        http.StatusNotFound,
	ErrorTypeConflict:        http.StatusConflict,
	ErrorTypeTimeout:         http.StatusRequestTimeout,
	ErrorTypeRateLimit:       http.StatusTooManyRequests,
	ErrorTypeDatabase:        http.StatusInternalServerError,
	ErrorTypeNetwork:         http.StatusInternalServerError,
	ErrorTypeInternal:        http.StatusInternalServerError,
	ErrorTypeProvider:        http.StatusBadGateway,
	ErrorTypeTool:            http.StatusInternalServerError,
	ErrorTypeAgent:           http.StatusInternalServerError,
	ErrorTypeSafetyViolation: http.StatusInternalServerError,
	ErrorTypeStateMerge:      http.StatusInternalServerError,
	ErrorTypeCheckpoint:      http.StatusInternalServerError,
}

// AppError is the structured error carried across node, port, and API boundaries.
type AppError struct {
	Type       ErrorType
	Message    string
	Details    string
	StatusCode int
	Cause      error

	// ProviderSubkind is set only when Type == ErrorTypeProvider.
	ProviderSubkind ProviderSubkind
}

func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCodes[errType],
	}
}

func Wrap(cause error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCodes[errType],
		Cause:      cause,
	}
}

func Wrapf(cause error, errType ErrorType, format string, args ...interface{}) *AppError {
	return Wrap(cause, errType, fmt.Sprintf(format, args...))
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

// WithProviderSubkind tags a ErrorTypeProvider AppError with its non-recoverable subkind.
func (e *AppError) WithProviderSubkind(sub ProviderSubkind) *AppError {
	e.ProviderSubkind = sub
	return e
}

// Predefined constructors, matching the teacher's convenience wrappers.

func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

func NewDatabaseError(operation string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeDatabase, "database operation failed: %s", operation)
}

func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource))
}

func NewAuthError(message string) *AppError {
	return New(ErrorTypeAuth, message)
}

func NewTimeoutError(operation string) *AppError {
	return New(ErrorTypeTimeout, fmt.Sprintf("operation timed out: %s", operation))
}

// NewProviderError builds the non-recoverable ProviderError of §7.
func NewProviderError(sub ProviderSubkind, message string) *AppError {
	return New(ErrorTypeProvider, message).WithProviderSubkind(sub)
}

func NewToolError(tool string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeTool, "tool %q failed", tool)
}

func NewAgentError(domain string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeAgent, "agent %q failed", domain)
}

func NewSafetyViolation(concern, reasoning string) *AppError {
	return New(ErrorTypeSafetyViolation, fmt.Sprintf("%s: %s", concern, reasoning))
}

func NewStateMergeError(field string) *AppError {
	return New(ErrorTypeStateMerge, fmt.Sprintf("attempted write to protected field %q", field))
}

func NewCheckpointError(investigationID string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeCheckpoint, "checkpoint failed for investigation %q", investigationID)
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the error's type, or ErrorTypeInternal for non-AppErrors.
func GetType(err error) ErrorType {
	appErr, ok := err.(*AppError)
	if !ok {
		return ErrorTypeInternal
	}
	return appErr.Type
}

// GetStatusCode returns the error's mapped HTTP status, or 500 for non-AppErrors.
func GetStatusCode(err error) int {
	appErr, ok := err.(*AppError)
	if !ok {
		return http.StatusInternalServerError
	}
	return appErr.StatusCode
}

// ErrorMessages holds the client-safe text for error types whose real
// message may contain internal details.
var ErrorMessages = struct {
	ResourceNotFound       string
	AuthenticationFailed   string
	OperationTimeout       string
	RateLimitExceeded      string
	ConcurrentModification string
}{
	ResourceNotFound:       "The requested resource was not found",
	AuthenticationFailed:   "Authentication failed",
	OperationTimeout:       "The operation timed out",
	RateLimitExceeded:      "Rate limit exceeded, please try again later",
	ConcurrentModification: "The resource was modified concurrently, please retry",
}

// SafeErrorMessage returns a message safe to show to an external caller:
// validation errors pass their message through verbatim (it is assumed to
// already be client-safe); everything else is replaced with a generic or
// canned message so internal details never leak.
func SafeErrorMessage(err error) string {
	appErr, ok := err.(*AppError)
	if !ok {
		return "An unexpected error occurred"
	}

	switch appErr.Type {
	case ErrorTypeValidation:
		return appErr.Message
	case ErrorTypeNotFound:
		return ErrorMessages.ResourceNotFound
	case ErrorTypeAuth:
		return ErrorMessages.AuthenticationFailed
	case ErrorTypeTimeout:
		return ErrorMessages.OperationTimeout
	case ErrorTypeRateLimit:
		return ErrorMessages.RateLimitExceeded
	case ErrorTypeConflict:
		return ErrorMessages.ConcurrentModification
	default:
		return "An internal error occurred"
	}
}

// LogFields returns structured fields suitable for logrus.WithFields.
func LogFields(err error) map[string]interface{} {
	fields := map[string]interface{}{
		"error": err.Error(),
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return fields
	}

	fields["error_type"] = string(appErr.Type)
	fields["status_code"] = appErr.StatusCode
	if appErr.Details != "" {
		fields["error_details"] = appErr.Details
	}
	if appErr.Cause != nil {
		fields["underlying_error"] = appErr.Cause.Error()
	}
	if appErr.ProviderSubkind != "" {
		fields["provider_subkind"] = string(appErr.ProviderSubkind)
	}
	return fields
}

// Chain joins non-nil errors into a single error message separated by " -> ",
// returning nil if every argument is nil and the single error unchanged if
// exactly one is non-nil.
func Chain(errs ...error) error {
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}

	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		msgs := make([]string, len(nonNil))
		for i, e := range nonNil {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("%s", strings.Join(msgs, " -> "))
	}
}
