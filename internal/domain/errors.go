package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DomainError represents a business rule violation
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInvalidTransition      = "INVALID_STATUS_TRANSITION"
	ErrCodeInvalidState           = "INVALID_STATE"
	ErrCodeInvalidAmount          = "INVALID_AMOUNT"
	ErrCodeInvalidInput           = "INVALID_INPUT"
	ErrCodeInsufficientBalance    = "INSUFFICIENT_BALANCE"
	ErrCodeConcurrentModification = "CONCURRENT_MODIFICATION"
	ErrCodeCurrencyMismatch       = "CURRENCY_MISMATCH"
	ErrCodePaymentNotFound        = "PAYMENT_NOT_FOUND"
	ErrCodeWalletNotFound         = "WALLET_NOT_FOUND"
	ErrCodeTransactionNotFound    = "TRANSACTION_NOT_FOUND"
	ErrCodeAccessDenied           = "ACCESS_DENIED"
	ErrCodeMissingRequiredField   = "MISSING_REQUIRED_FIELD"
)

func NewInvalidTransitionError(from, to string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewInvalidStateError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidState,
		Message: message,
	}
}

func NewInvalidAmountError(amount decimal.Decimal) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %s", amount.String()),
	}
}

func NewInvalidInputError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidInput,
		Message: message,
	}
}

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewInsufficientBalanceError(available, requested decimal.Decimal) *DomainError {
	return &DomainError{
		Code:    ErrCodeInsufficientBalance,
		Message: fmt.Sprintf("insufficient balance: available %s, requested %s", available.StringFixed(2), requested.StringFixed(2)),
	}
}

func NewConcurrentModificationError(entity string, id uuid.UUID) *DomainError {
	return &DomainError{
		Code:    ErrCodeConcurrentModification,
		Message: fmt.Sprintf("%s %s was modified concurrently", entity, id),
	}
}

func NewCurrencyMismatchError(want, got string) *DomainError {
	return &DomainError{
		Code:    ErrCodeCurrencyMismatch,
		Message: fmt.Sprintf("currency mismatch: wallet holds %s, request is %s", want, got),
	}
}

func NewPaymentNotFoundError(id uuid.UUID) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentNotFound,
		Message: fmt.Sprintf("payment %s not found", id),
	}
}

func NewWalletNotFoundError(id uuid.UUID) *DomainError {
	return &DomainError{
		Code:    ErrCodeWalletNotFound,
		Message: fmt.Sprintf("wallet %s not found", id),
	}
}

func NewTransactionNotFoundError(id uuid.UUID) *DomainError {
	return &DomainError{
		Code:    ErrCodeTransactionNotFound,
		Message: fmt.Sprintf("wallet transaction %s not found", id),
	}
}

func NewAccessDeniedError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAccessDenied,
		Message: message,
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
