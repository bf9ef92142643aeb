// Package errors provides the standardized error taxonomy for the registration
// and payment flow.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed          ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidPaymentMethod      ErrorCode = "INVALID_PAYMENT_METHOD"
	ErrCodeResourceNotFound          ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodePaymentAlreadySettled     ErrorCode = "PAYMENT_ALREADY_SETTLED"
	ErrCodePaymentInitiationFailed   ErrorCode = "PAYMENT_INITIATION_FAILED"
	ErrCodePaymentVerificationFailed ErrorCode = "PAYMENT_VERIFICATION_FAILED"
	ErrCodeInvalidSignature          ErrorCode = "INVALID_SIGNATURE"
	ErrCodeStoreOperationFailed      ErrorCode = "STORE_OPERATION_FAILED"
)

// StandardError represents a structured application error. Message is safe to
// return to clients; Details and Err are for server-side logs only.
type StandardError struct {
	Code      ErrorCode    `json:"code"`
	Message   string       `json:"message"`
	Details   string       `json:"details,omitempty"`
	Retryable bool         `json:"retryable"`
	Fields    []FieldError `json:"fields,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Err       error        `json:"-"`
}

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Err
}

// Is matches on code, so errors.Is(err, ErrNotFound) holds for any
// NOT_FOUND error regardless of message.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrValidation          = &StandardError{Code: ErrCodeValidationFailed}
	ErrInvalidMethod       = &StandardError{Code: ErrCodeInvalidPaymentMethod}
	ErrNotFound            = &StandardError{Code: ErrCodeResourceNotFound}
	ErrAlreadySettled      = &StandardError{Code: ErrCodePaymentAlreadySettled}
	ErrPaymentInitiation   = &StandardError{Code: ErrCodePaymentInitiationFailed}
	ErrPaymentVerification = &StandardError{Code: ErrCodePaymentVerificationFailed}
	ErrSignature           = &StandardError{Code: ErrCodeInvalidSignature}
	ErrStore               = &StandardError{Code: ErrCodeStoreOperationFailed}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable input error carrying field errors.
func NewValidationError(details string, fields ...FieldError) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Validation failed",
		Details:   details,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidMethodError rejects a payment method outside the supported set.
func NewInvalidMethodError(method string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPaymentMethod,
		Message:   "Unsupported payment method",
		Details:   fmt.Sprintf("method: %q", method),
		Fields:    []FieldError{{Field: "method", Message: "must be one of mtn, telecel, airtel, bank, card", Code: "oneof"}},
		Timestamp: time.Now().UTC(),
	}
}

// NewResourceNotFoundError creates a non-retryable lookup error.
func NewResourceNotFoundError(resource, key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("%s: %s", resource, key),
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadySettledError rejects a new payment attempt on a settled record.
func NewAlreadySettledError(applicationID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentAlreadySettled,
		Message:   "Payment already completed for this application",
		Details:   fmt.Sprintf("applicationId: %s, status: %s", applicationID, status),
		Timestamp: time.Now().UTC(),
	}
}

// NewPaymentInitiationError wraps a provider failure during initiation.
func NewPaymentInitiationError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentInitiationFailed,
		Message:   "Payment initialization failed",
		Details:   fmt.Sprintf("provider: %s, error: %v", provider, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewPaymentVerificationError wraps a provider failure during verification.
func NewPaymentVerificationError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentVerificationFailed,
		Message:   "Payment verification failed",
		Details:   fmt.Sprintf("provider: %s, error: %v", provider, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewSignatureError rejects an unauthenticated webhook delivery.
func NewSignatureError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidSignature,
		Message:   "Invalid signature",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreError wraps a persistence failure.
func NewStoreError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreOperationFailed,
		Message:   "Internal server error",
		Details:   fmt.Sprintf("operation: %s, error: %v", operation, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}
