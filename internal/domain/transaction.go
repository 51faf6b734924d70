package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes movements into and out of a wallet.
type TransactionType string

const (
	TransactionCredit TransactionType = "CREDIT"
	TransactionDebit  TransactionType = "DEBIT"
)

// TransactionStatus is the journal entry lifecycle. PENDING entries are
// reservations; COMPLETED and CANCELLED are terminal.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionCancelled TransactionStatus = "CANCELLED"
)

// ReferenceType names the external operation a journal entry belongs to.
// (reference_id, PAYMENT) is unique and carries reservation idempotency.
type ReferenceType string

const (
	ReferenceTopUp    ReferenceType = "TOPUP"
	ReferenceTransfer ReferenceType = "TRANSFER"
	ReferencePayment  ReferenceType = "PAYMENT"
)

// WalletTransaction is a journal entry for one wallet. Everything except
// status is immutable after creation.
type WalletTransaction struct {
	ID            uuid.UUID
	WalletID      uuid.UUID
	Amount        decimal.Decimal
	Type          TransactionType
	Status        TransactionStatus
	ReferenceID   *string
	ReferenceType *ReferenceType
	Description   string
	CreatedAt     time.Time
}

// NewReservation creates the PENDING DEBIT entry backing a payment reservation.
func NewReservation(walletID uuid.UUID, amount decimal.Decimal, paymentID uuid.UUID, description string) *WalletTransaction {
	ref := paymentID.String()
	refType := ReferencePayment
	return &WalletTransaction{
		ID:            uuid.New(),
		WalletID:      walletID,
		Amount:        amount,
		Type:          TransactionDebit,
		Status:        TransactionPending,
		ReferenceID:   &ref,
		ReferenceType: &refType,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewCompletedEntry creates a journal entry that is final on insert
// (top-ups and transfers; no reservation phase).
func NewCompletedEntry(walletID uuid.UUID, amount decimal.Decimal, txType TransactionType, refID *string, refType *ReferenceType, description string) *WalletTransaction {
	return &WalletTransaction{
		ID:            uuid.New(),
		WalletID:      walletID,
		Amount:        amount,
		Type:          txType,
		Status:        TransactionCompleted,
		ReferenceID:   refID,
		ReferenceType: refType,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
}

// IsTerminal reports whether the entry status can never change again.
func (t *WalletTransaction) IsTerminal() bool {
	return t.Status == TransactionCompleted || t.Status == TransactionCancelled
}

// Complete moves a PENDING reservation to COMPLETED. Idempotent on COMPLETED.
func (t *WalletTransaction) Complete() error {
	if t.Status == TransactionCompleted {
		return nil
	}
	if t.Status != TransactionPending {
		return NewInvalidStateError("only a pending transaction can be completed")
	}
	t.Status = TransactionCompleted
	return nil
}

// Cancel moves a PENDING reservation to CANCELLED. Idempotent on CANCELLED.
func (t *WalletTransaction) Cancel() error {
	if t.Status == TransactionCancelled {
		return nil
	}
	if t.Status != TransactionPending {
		return NewInvalidStateError("only a pending transaction can be cancelled")
	}
	t.Status = TransactionCancelled
	return nil
}
