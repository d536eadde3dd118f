package apperrors

import "errors"

// Common errors
var (
	// Resource errors
	ErrResourceNotFound = errors.New("resource not found")
	ErrConflict         = errors.New("conflict")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrAccountDisabled    = errors.New("account is disabled")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")
)

// Student errors
var (
	ErrStudentNotFound    = errors.New("student not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCGPA        = errors.New("cgpa out of range")
	ErrInvalidBatch       = errors.New("unknown batch")
)

// Swap request errors
var (
	ErrRequestNotFound  = errors.New("swap request not found")
	ErrSelfSwap         = errors.New("cannot request a swap with yourself")
	ErrDuplicateRequest = errors.New("a pending swap request already exists for this pair")
	ErrNotEligible      = errors.New("students are not eligible swap partners")
	ErrInvalidState     = errors.New("transition not legal from current request state")
	ErrExchangeAborted  = errors.New("batch exchange aborted")
)

// Negotiation channel errors
var (
	ErrChannelClosed = errors.New("negotiation channel is closed")
)

// NewNotFoundError creates a new custom error for resource not found with a message
func NewNotFoundError(err error, message string) error {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) error {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
	}
}

// NewForbiddenError creates a new custom error for permission denied with a message
func NewForbiddenError(message string) error {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Message: message,
	}
}

// NewInvalidStateError creates a new custom error for illegal state transitions
// with a message naming the current state.
func NewInvalidStateError(message string) error {
	return &CustomError{
		Err:     ErrInvalidState,
		Message: message,
	}
}

// NewNotEligibleError creates a new custom error for eligibility violations
func NewNotEligibleError(message string) error {
	return &CustomError{
		Err:     ErrNotEligible,
		Message: message,
	}
}

// NewExchangeAbortedError creates a new custom error for an aborted batch
// exchange with a message naming the violated invariant.
func NewExchangeAbortedError(message string) error {
	return &CustomError{
		Err:     ErrExchangeAborted,
		Message: message,
	}
}

// NewBadRequestError creates a new custom error for bad request with a message
func NewBadRequestError(message string) error {
	return &CustomError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Details map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}
