package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payflowhq/payflow/internal/application"
)

// LocalLedger adapts WalletService to the application.WalletLedger port for
// single-process deployments. Ownership was already checked when the payment
// was initiated, so the ledger-side checks are skipped here.
type LocalLedger struct {
	wallets *WalletService
}

func NewLocalLedger(wallets *WalletService) *LocalLedger {
	return &LocalLedger{wallets: wallets}
}

func (l *LocalLedger) ReserveFunds(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, currency string, paymentID uuid.UUID) (*application.ReservationResult, error) {
	return l.wallets.ReserveFunds(ctx, ReserveFundsCommand{
		WalletID:  walletID,
		Amount:    amount,
		Currency:  currency,
		PaymentID: paymentID,
	})
}

func (l *LocalLedger) ConfirmReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID, providerTransactionID, providerName string) error {
	return l.wallets.ConfirmReservation(ctx, ConfirmReservationCommand{
		WalletID:              walletID,
		WalletTransactionID:   walletTransactionID,
		ProviderTransactionID: providerTransactionID,
		Provider:              providerName,
	})
}

func (l *LocalLedger) CancelReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID) error {
	return l.wallets.CancelReservation(ctx, CancelReservationCommand{
		WalletID:            walletID,
		WalletTransactionID: walletTransactionID,
	})
}
