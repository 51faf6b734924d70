// Package domain encodes the payment and wallet entities and their lifecycle rules.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current state of a payment in its lifecycle
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSuccess   PaymentStatus = "SUCCESS"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentExpired   PaymentStatus = "EXPIRED"
)

// Payment is owned exclusively by the orchestrator. It references the wallet
// and the wallet transaction by identifier only.
type Payment struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Amount          decimal.Decimal
	Currency        string
	ClientRequestID string
	WalletID        uuid.UUID
	Status          PaymentStatus
	Version         int64

	Provider              *string
	ProviderTransactionID *string
	WalletTransactionID   *uuid.UUID
	FailureCode           *string
	FailureMessage        *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPayment(userID uuid.UUID, money Money, clientRequestID string, walletID uuid.UUID) (*Payment, error) {
	if userID == uuid.Nil {
		return nil, NewMissingRequiredFieldError("user ID")
	}
	if clientRequestID == "" {
		return nil, NewMissingRequiredFieldError("client request ID")
	}
	if walletID == uuid.Nil {
		return nil, NewMissingRequiredFieldError("wallet ID")
	}

	now := time.Now().UTC()
	return &Payment{
		ID:              uuid.New(),
		UserID:          userID,
		Amount:          money.Amount,
		Currency:        money.Currency,
		ClientRequestID: clientRequestID,
		WalletID:        walletID,
		Status:          PaymentInitiated,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// IsTerminal reports whether the payment can never change status again.
// EXPIRED is not terminal: it may be reset to INITIATED on reuse.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentSuccess || p.Status == PaymentFailed
}

func (p *Payment) transition(target PaymentStatus) error {
	if err := p.canTransitionTo(target); err != nil {
		return err
	}
	p.Status = target
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Payment) canTransitionTo(target PaymentStatus) error {
	switch p.Status {
	case PaymentInitiated:
		return p.allow(target, PaymentPending, PaymentSuccess, PaymentFailed, PaymentExpired)
	case PaymentPending:
		return p.allow(target, PaymentSuccess, PaymentFailed)
	case PaymentExpired:
		return p.allow(target, PaymentInitiated)
	}
	return NewInvalidTransitionError(string(p.Status), string(target))
}

func (p *Payment) allow(target PaymentStatus, allowed ...PaymentStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(string(p.Status), string(target))
}

// Succeed records the provider outcome and the confirmed wallet reservation.
func (p *Payment) Succeed(provider, providerTxID string, walletTxID uuid.UUID) error {
	if err := p.transition(PaymentSuccess); err != nil {
		return err
	}
	p.Provider = &provider
	p.ProviderTransactionID = &providerTxID
	p.WalletTransactionID = &walletTxID
	return nil
}

// MarkPending records an in-flight provider charge; the reservation stays open.
func (p *Payment) MarkPending(provider, providerTxID string, walletTxID uuid.UUID) error {
	if err := p.transition(PaymentPending); err != nil {
		return err
	}
	p.Provider = &provider
	p.ProviderTransactionID = &providerTxID
	p.WalletTransactionID = &walletTxID
	return nil
}

// Fail records a terminal failure with the provider's code and message.
func (p *Payment) Fail(code, message string) error {
	if err := p.transition(PaymentFailed); err != nil {
		return err
	}
	p.FailureCode = &code
	p.FailureMessage = &message
	return nil
}

// MarkExpired times out a payment that was never processed.
func (p *Payment) MarkExpired() error {
	return p.transition(PaymentExpired)
}

// Reset reuses an EXPIRED payment for a fresh initiation. Request fields are
// overwritten and all provider/wallet bookkeeping is cleared.
func (p *Payment) Reset(money Money, walletID uuid.UUID) error {
	if err := p.transition(PaymentInitiated); err != nil {
		return err
	}
	p.Amount = money.Amount
	p.Currency = money.Currency
	p.WalletID = walletID
	p.Provider = nil
	p.ProviderTransactionID = nil
	p.WalletTransactionID = nil
	p.FailureCode = nil
	p.FailureMessage = nil
	return nil
}

// ReconstitutePayment - special constructor for loading from DB
func ReconstitutePayment(
	id, userID uuid.UUID,
	amount decimal.Decimal, currency string,
	clientRequestID string, walletID uuid.UUID,
	status PaymentStatus, version int64,
	provider, providerTxID *string,
	walletTxID *uuid.UUID,
	failureCode, failureMessage *string,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		ID:                    id,
		UserID:                userID,
		Amount:                amount,
		Currency:              currency,
		ClientRequestID:       clientRequestID,
		WalletID:              walletID,
		Status:                status,
		Version:               version,
		Provider:              provider,
		ProviderTransactionID: providerTxID,
		WalletTransactionID:   walletTxID,
		FailureCode:           failureCode,
		FailureMessage:        failureMessage,
		CreatedAt:             createdAt,
		UpdatedAt:             updatedAt,
	}
}
