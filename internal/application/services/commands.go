package services

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InitiatePaymentCommand struct {
	UserID          uuid.UUID
	Amount          decimal.Decimal
	Currency        string
	WalletID        uuid.UUID
	ClientRequestID string
	Provider        string
}

type ProcessPaymentCommand struct {
	PaymentID          uuid.UUID
	UserID             uuid.UUID
	PaymentMethodToken string
	PaymentMethodID    string
}

type ReserveFundsCommand struct {
	WalletID  uuid.UUID
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	PaymentID uuid.UUID
}

type ConfirmReservationCommand struct {
	WalletID              uuid.UUID
	UserID                uuid.UUID
	WalletTransactionID   uuid.UUID
	ProviderTransactionID string
	Provider              string
}

type CancelReservationCommand struct {
	WalletID            uuid.UUID
	UserID              uuid.UUID
	WalletTransactionID uuid.UUID
}

type TopUpCommand struct {
	WalletID uuid.UUID
	UserID   uuid.UUID
	Amount   decimal.Decimal
	Currency string
}

type TransferCommand struct {
	FromWalletID uuid.UUID
	ToWalletID   uuid.UUID
	UserID       uuid.UUID
	Amount       decimal.Decimal
	Currency     string
}

type CreateWalletCommand struct {
	UserID   uuid.UUID
	Currency string
}
