package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

// ServiceError carries everything the HTTP layer needs to render the error
// envelope: a stable kind, a numeric application code, and the status.
type ServiceError struct {
	Kind       string
	Code       int
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Error kinds.
const (
	KindUnauthorized        = "UNAUTHORIZED"
	KindForbidden           = "FORBIDDEN"
	KindValidation          = "BAD_REQUEST"
	KindNotFound            = "NOT_FOUND"
	KindConflict            = "CONFLICT"
	KindChargeFailed        = "PAYMENT_CHARGE_FAILED"
	KindProviderUnavailable = "PAYMENT_PROVIDER_UNAVAILABLE"
	KindInternal            = "INTERNAL_ERROR"
	KindDownstream          = "SERVICE_UNAVAILABLE"
)

// Numeric application codes. Ranges: 1xxx auth, 2xxx resource, 3xxx
// validation, 4xxx conflict, 5xxx authorization, 6xxx provider, 9xxx server.
const (
	CodeUnauthorized           = 1001
	CodeWalletNotFound         = 2001
	CodePaymentNotFound        = 2002
	CodeTransactionNotFound    = 2003
	CodeValidation             = 3001
	CodeInvalidAmount          = 3002
	CodeMissingField           = 3003
	CodeDuplicateResource      = 4001
	CodeConcurrentModification = 4002
	CodeInvalidTransition      = 4003
	CodeInvalidState           = 4004
	CodeAccessDenied           = 5001
	CodeInsufficientBalance    = 5002
	CodeChargeFailed           = 6001
	CodeProviderUnavailable    = 6002
	CodeInternal               = 9001
	CodeDownstream             = 9002
)

func NewUnauthorizedError() *ServiceError {
	return &ServiceError{
		Kind:       KindUnauthorized,
		Code:       CodeUnauthorized,
		Message:    "Authentication required",
		HTTPStatus: http.StatusUnauthorized,
	}
}

func NewAccessDeniedError(err error) *ServiceError {
	return &ServiceError{
		Kind:       KindForbidden,
		Code:       CodeAccessDenied,
		Message:    "Access denied",
		HTTPStatus: http.StatusForbidden,
		Err:        err,
	}
}

func NewInsufficientBalanceError(err error) *ServiceError {
	return &ServiceError{
		Kind:       KindForbidden,
		Code:       CodeInsufficientBalance,
		Message:    "Insufficient wallet balance",
		HTTPStatus: http.StatusForbidden,
		Err:        err,
	}
}

func NewValidationError(message string, err error) *ServiceError {
	return &ServiceError{
		Kind:       KindValidation,
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewNotFoundError(code int, message string, err error) *ServiceError {
	return &ServiceError{
		Kind:       KindNotFound,
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

func NewConflictError(code int, message string, err error) *ServiceError {
	return &ServiceError{
		Kind:       KindConflict,
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewChargeFailedError(message string, err error) *ServiceError {
	return &ServiceError{
		Kind:       KindChargeFailed,
		Code:       CodeChargeFailed,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

func NewProviderUnavailableError(err error) *ServiceError {
	return &ServiceError{
		Kind:       KindProviderUnavailable,
		Code:       CodeProviderUnavailable,
		Message:    "Payment provider is currently unavailable",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Kind:       KindInternal,
		Code:       CodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewDownstreamError(service string, err error) *ServiceError {
	return &ServiceError{
		Kind:       KindDownstream,
		Code:       CodeDownstream,
		Message:    fmt.Sprintf("%s unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
