package application

import (
	"context"
	"errors"
	"net/http"

	"github.com/payflowhq/payflow/internal/domain"
	"github.com/payflowhq/payflow/internal/provider"
)

// ToServiceError is the single place where domain, provider, and transport
// errors become an HTTP-renderable ServiceError. Total: every error maps to
// something, with 500 as the fallback.
func ToServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr
	}

	var domErr *domain.DomainError
	if errors.As(err, &domErr) {
		return fromDomainError(domErr)
	}

	if provErr, ok := provider.AsProviderError(err); ok {
		if provErr.IsRetryable() {
			return NewProviderUnavailableError(provErr)
		}
		return NewChargeFailedError(provErr.Message, provErr)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ServiceError{
			Kind:       KindDownstream,
			Code:       CodeDownstream,
			Message:    "Request timed out",
			HTTPStatus: http.StatusRequestTimeout,
			Err:        err,
		}
	}

	return NewInternalError(err)
}

func fromDomainError(err *domain.DomainError) *ServiceError {
	switch err.Code {
	case domain.ErrCodePaymentNotFound:
		return NewNotFoundError(CodePaymentNotFound, "Payment not found", err)
	case domain.ErrCodeWalletNotFound:
		return NewNotFoundError(CodeWalletNotFound, "Wallet not found", err)
	case domain.ErrCodeTransactionNotFound:
		return NewNotFoundError(CodeTransactionNotFound, "Transaction not found", err)

	case domain.ErrCodeInvalidTransition:
		return NewConflictError(CodeInvalidTransition, err.Message, err)
	case domain.ErrCodeInvalidState:
		return NewConflictError(CodeInvalidState, err.Message, err)
	case domain.ErrCodeConcurrentModification:
		return NewConflictError(CodeConcurrentModification, "Resource was modified concurrently, please retry", err)

	case domain.ErrCodeInsufficientBalance:
		return NewInsufficientBalanceError(err)
	case domain.ErrCodeAccessDenied:
		return NewAccessDeniedError(err)

	case domain.ErrCodeInvalidAmount:
		return &ServiceError{
			Kind:       KindValidation,
			Code:       CodeInvalidAmount,
			Message:    err.Message,
			HTTPStatus: http.StatusBadRequest,
			Err:        err,
		}
	case domain.ErrCodeMissingRequiredField:
		return &ServiceError{
			Kind:       KindValidation,
			Code:       CodeMissingField,
			Message:    err.Message,
			HTTPStatus: http.StatusBadRequest,
			Err:        err,
		}
	case domain.ErrCodeInvalidInput, domain.ErrCodeCurrencyMismatch:
		return NewValidationError(err.Message, err)
	}

	return NewInternalError(err)
}

// FromEnvelope rebuilds a ServiceError from a downstream error envelope.
// A known numeric code restores the original kind; otherwise the HTTP
// status decides.
func FromEnvelope(httpStatus, code int, message string) *ServiceError {
	kind, ok := kindForCode(code)
	if ok {
		return &ServiceError{
			Kind:       kind,
			Code:       code,
			Message:    message,
			HTTPStatus: httpStatus,
		}
	}

	switch {
	case httpStatus == http.StatusUnauthorized:
		return NewUnauthorizedError()
	case httpStatus == http.StatusForbidden:
		return NewAccessDeniedError(nil)
	case httpStatus == http.StatusNotFound:
		return NewNotFoundError(CodeWalletNotFound, message, nil)
	case httpStatus == http.StatusConflict:
		return NewConflictError(CodeInvalidState, message, nil)
	case httpStatus >= 400 && httpStatus < 500:
		return NewValidationError(message, nil)
	default:
		return &ServiceError{
			Kind:       KindDownstream,
			Code:       CodeDownstream,
			Message:    message,
			HTTPStatus: httpStatus,
		}
	}
}

func kindForCode(code int) (string, bool) {
	switch code {
	case CodeUnauthorized:
		return KindUnauthorized, true
	case CodeWalletNotFound, CodePaymentNotFound, CodeTransactionNotFound:
		return KindNotFound, true
	case CodeValidation, CodeInvalidAmount, CodeMissingField:
		return KindValidation, true
	case CodeDuplicateResource, CodeConcurrentModification, CodeInvalidTransition, CodeInvalidState:
		return KindConflict, true
	case CodeAccessDenied, CodeInsufficientBalance:
		return KindForbidden, true
	case CodeChargeFailed:
		return KindChargeFailed, true
	case CodeProviderUnavailable:
		return KindProviderUnavailable, true
	case CodeInternal:
		return KindInternal, true
	case CodeDownstream:
		return KindDownstream, true
	}
	return "", false
}
