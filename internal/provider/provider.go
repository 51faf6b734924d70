// Package provider defines the external payment provider contract and the
// reference mock implementation.
package provider

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeStatus is the tagged outcome of a charge or status lookup.
type ChargeStatus string

const (
	ChargeSuccess ChargeStatus = "SUCCESS"
	ChargePending ChargeStatus = "PENDING"
	ChargeFailed  ChargeStatus = "FAILED"
)

// ChargeRequest carries everything the provider needs for one charge.
// IdempotencyKey defaults to the stringified payment ID.
type ChargeRequest struct {
	PaymentID          uuid.UUID
	Amount             decimal.Decimal
	Currency           string
	PaymentMethodToken string
	Description        string
	IdempotencyKey     string
}

// Key returns the effective idempotency key for the request.
func (r ChargeRequest) Key() string {
	if r.IdempotencyKey != "" {
		return r.IdempotencyKey
	}
	return r.PaymentID.String()
}

// ChargeOutcome is the non-persistent result of a provider call.
// Failed outcomes carry a code, a human message and a retryability flag.
type ChargeOutcome struct {
	Status                ChargeStatus
	Provider              string
	ProviderTransactionID string
	FailureCode           FailureCode
	FailureMessage        string
	Retryable             bool
	ProcessedAt           time.Time
}

// PaymentProvider is the port every concrete provider adapter implements.
type PaymentProvider interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeOutcome, error)
	GetTransactionStatus(ctx context.Context, providerTxID string) (*ChargeOutcome, error)
	Name() string
}

// FailureCode enumerates provider failure classes. Retryability is intrinsic
// to the code, never decided per call site.
type FailureCode string

const (
	CodeCardDeclined        FailureCode = "CARD_DECLINED"
	CodeInsufficientFunds   FailureCode = "INSUFFICIENT_FUNDS"
	CodeExpiredCard         FailureCode = "EXPIRED_CARD"
	CodeInvalidCard         FailureCode = "INVALID_CARD"
	CodeFraudSuspected      FailureCode = "FRAUD_SUSPECTED"
	CodeNetworkError        FailureCode = "NETWORK_ERROR"
	CodeProviderUnavailable FailureCode = "PROVIDER_UNAVAILABLE"
	CodeRateLimited         FailureCode = "RATE_LIMITED"
	CodeTransactionNotFound FailureCode = "TRANSACTION_NOT_FOUND"
)

// IsRetryable reports whether a failure with this code may be re-attempted
// without risking a double charge (given the idempotency key).
func (c FailureCode) IsRetryable() bool {
	switch c {
	case CodeNetworkError, CodeProviderUnavailable, CodeRateLimited:
		return true
	default:
		return false
	}
}
