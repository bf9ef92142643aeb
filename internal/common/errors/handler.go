package errors

import (
	stderrors "errors"
	"net/http"
)

// ==========================
// HTTP Mapping
// ==========================

var statusByCode = map[ErrorCode]int{
	ErrCodeValidationFailed:          http.StatusBadRequest,
	ErrCodeInvalidPaymentMethod:      http.StatusBadRequest,
	ErrCodeInvalidSignature:          http.StatusBadRequest,
	ErrCodeResourceNotFound:          http.StatusNotFound,
	ErrCodePaymentAlreadySettled:     http.StatusConflict,
	ErrCodePaymentInitiationFailed:   http.StatusBadGateway,
	ErrCodePaymentVerificationFailed: http.StatusBadGateway,
	ErrCodeStoreOperationFailed:      http.StatusInternalServerError,
}

// AsStandard extracts the first StandardError in the chain.
func AsStandard(err error) (*StandardError, bool) {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// CodeOf returns the error code, or "UNKNOWN_ERROR" for foreign errors.
func CodeOf(err error) ErrorCode {
	if se, ok := AsStandard(err); ok {
		return se.Code
	}
	return "UNKNOWN_ERROR"
}

// HTTPStatus maps an error to its response status. Unclassified errors are 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if se, ok := AsStandard(err); ok {
		if status, ok := statusByCode[se.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the client-facing message. Details and causes never
// leave the process.
func PublicMessage(err error, fallback string) string {
	if se, ok := AsStandard(err); ok && se.Message != "" {
		if HTTPStatus(se) >= http.StatusInternalServerError && fallback != "" {
			return fallback
		}
		return se.Message
	}
	return fallback
}

// FieldsOf returns the field-level errors attached to err, if any.
func FieldsOf(err error) []FieldError {
	if se, ok := AsStandard(err); ok {
		return se.Fields
	}
	return nil
}
