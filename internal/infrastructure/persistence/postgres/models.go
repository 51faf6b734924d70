package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentModel mirrors the payments table.
// (client_request_id, user_id) carries initiation idempotency.
type PaymentModel struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	Amount                decimal.Decimal
	Currency              string
	ClientRequestID       string
	WalletID              uuid.UUID
	Status                string
	Version               int64
	Provider              *string
	ProviderTransactionID *string
	WalletTransactionID   *uuid.UUID
	FailureCode           *string
	FailureMessage        *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// WalletModel mirrors the wallets table. Amounts are DECIMAL(15,2).
type WalletModel struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Balance         decimal.Decimal
	ReservedBalance decimal.Decimal
	Currency        string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WalletTransactionModel mirrors the wallet_transactions table.
// (reference_id, reference_type) is unique for reference_type = PAYMENT.
type WalletTransactionModel struct {
	ID            uuid.UUID
	WalletID      uuid.UUID
	Amount        decimal.Decimal
	Type          string
	Status        string
	ReferenceID   *string
	ReferenceType *string
	Description   string
	CreatedAt     time.Time
}
