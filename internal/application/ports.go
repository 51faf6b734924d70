package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payflowhq/payflow/internal/domain"
)

// PaymentRepository is the port for payment persistence.
// FindByIDForUpdate is only meaningful on a transaction-bound instance.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	FindByClientRequestID(ctx context.Context, clientRequestID string, userID uuid.UUID) (*domain.Payment, error)
	Update(ctx context.Context, payment *domain.Payment) error
	FindInitiatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error)
}

// WalletRepository is the port for wallet persistence.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*domain.Wallet, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Wallet, error)
	AddReserved(ctx context.Context, id uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error)
	ConfirmReserved(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error)
	ReleaseReserved(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error)
	Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error)
	Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error)
}

// WalletTransactionRepository is the port for the journal.
type WalletTransactionRepository interface {
	Create(ctx context.Context, t *domain.WalletTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error)
	FindByPaymentReference(ctx context.Context, paymentID uuid.UUID) (*domain.WalletTransaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, page int) ([]*domain.WalletTransaction, error)
	MonthlySummary(ctx context.Context, userID uuid.UUID, year int, month time.Month) (credits, debits decimal.Decimal, err error)
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.WalletTransaction, error)
}

// Repositories bundles transaction-bound repositories handed to a
// WithTransaction callback. All instances share one database transaction.
type Repositories struct {
	Payments     PaymentRepository
	Wallets      WalletRepository
	Transactions WalletTransactionRepository
}

// TransactionCoordinator runs a function inside a database transaction,
// committing on nil and rolling back on error.
type TransactionCoordinator interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// ReservationResult is what the ledger returns from a reserve call.
type ReservationResult struct {
	WalletTransactionID uuid.UUID
	WalletID            uuid.UUID
	AmountReserved      decimal.Decimal
	RemainingBalance    decimal.Decimal
}

// WalletLedger is the port the payment orchestrator uses to hold, settle,
// and release funds. The orchestrator never touches wallet rows directly;
// it may be backed by the in-process ledger service or an HTTP client.
type WalletLedger interface {
	ReserveFunds(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, currency string, paymentID uuid.UUID) (*ReservationResult, error)
	ConfirmReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID, providerTransactionID, providerName string) error
	CancelReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID) error
}
