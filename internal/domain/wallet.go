package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a user's balance for one currency. Reserved balance is the
// portion earmarked for in-flight payments; available = balance - reserved.
//
// Invariants: reserved_balance >= 0, balance - reserved_balance >= 0, and
// version strictly increases on every mutation.
type Wallet struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Balance         decimal.Decimal
	ReservedBalance decimal.Decimal
	Currency        string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewWallet(userID uuid.UUID, currency string) (*Wallet, error) {
	if userID == uuid.Nil {
		return nil, NewMissingRequiredFieldError("user ID")
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, NewInvalidInputError("currency must be a 3-letter code")
	}

	now := time.Now().UTC()
	return &Wallet{
		ID:              uuid.New(),
		UserID:          userID,
		Balance:         decimal.Zero,
		ReservedBalance: decimal.Zero,
		Currency:        currency,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// AvailableBalance is the quantity that may be spent or newly reserved.
func (w *Wallet) AvailableBalance() decimal.Decimal {
	return w.Balance.Sub(w.ReservedBalance)
}

// CanReserve reports whether the available balance covers the amount.
func (w *Wallet) CanReserve(amount decimal.Decimal) bool {
	return w.AvailableBalance().GreaterThanOrEqual(amount)
}

// ReconstituteWallet - special constructor for loading from DB
func ReconstituteWallet(
	id, userID uuid.UUID,
	balance, reserved decimal.Decimal,
	currency string, version int64,
	createdAt, updatedAt time.Time,
) *Wallet {
	return &Wallet{
		ID:              id,
		UserID:          userID,
		Balance:         balance,
		ReservedBalance: reserved,
		Currency:        currency,
		Version:         version,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}
}
