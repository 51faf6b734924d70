package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/application/services"
	"github.com/payflowhq/payflow/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type walletFixture struct {
	service      *services.WalletService
	wallets      *services.MockWalletRepository
	transactions *services.MockWalletTransactionRepository
}

func newWalletFixture() *walletFixture {
	payments := services.NewMockPaymentRepository()
	wallets := services.NewMockWalletRepository()
	transactions := services.NewMockWalletTransactionRepository(wallets)
	coordinator := services.NewMockCoordinator(payments, wallets, transactions)
	return &walletFixture{
		service:      services.NewWalletService(coordinator, wallets, transactions, discardLogger()),
		wallets:      wallets,
		transactions: transactions,
	}
}

func (f *walletFixture) seedWallet(t *testing.T, userID uuid.UUID, balance string) *domain.Wallet {
	t.Helper()
	wallet, err := domain.NewWallet(userID, "SGD")
	require.NoError(t, err)
	wallet.Balance = decimal.RequireFromString(balance)
	require.NoError(t, f.wallets.Create(context.Background(), wallet))
	return wallet
}

func TestReserveFunds_HoldsAmountAndWritesPendingEntry(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	userID := uuid.New()
	wallet := f.seedWallet(t, userID, "100.00")
	paymentID := uuid.New()

	result, err := f.service.ReserveFunds(ctx, services.ReserveFundsCommand{
		WalletID:  wallet.ID,
		UserID:    userID,
		Amount:    decimal.RequireFromString("25.00"),
		Currency:  "SGD",
		PaymentID: paymentID,
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, wallet.ID, result.WalletID)
	assert.True(t, result.AmountReserved.Equal(decimal.RequireFromString("25.00")))
	assert.True(t, result.RemainingBalance.Equal(decimal.RequireFromString("75.00")))

	saved, err := f.wallets.FindByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, saved.Balance.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, saved.ReservedBalance.Equal(decimal.RequireFromString("25.00")))
	assert.Equal(t, int64(2), saved.Version)

	entry, err := f.transactions.FindByID(ctx, result.WalletTransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionPending, entry.Status)
	assert.Equal(t, domain.TransactionDebit, entry.Type)
	require.NotNil(t, entry.ReferenceID)
	assert.Equal(t, paymentID.String(), *entry.ReferenceID)
}

func TestReserveFunds_RetriesVersionConflict(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	userID := uuid.New()
	wallet := f.seedWallet(t, userID, "100.00")

	// First guarded update misses, as if another writer bumped the version
	// between the read and the update. The next attempt goes through.
	f.wallets.AddReservedFn = func(ctx context.Context, id uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error) {
		f.wallets.AddReservedFn = nil
		return false, nil
	}

	result, err := f.service.ReserveFunds(ctx, services.ReserveFundsCommand{
		WalletID:  wallet.ID,
		UserID:    userID,
		Amount:    decimal.RequireFromString("25.00"),
		Currency:  "SGD",
		PaymentID: uuid.New(),
	})
	require.NoError(t, err, "a transient version conflict must be retried, not surfaced")
	require.NotNil(t, result)

	saved, err := f.wallets.FindByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, saved.ReservedBalance.Equal(decimal.RequireFromString("25.00")))
}

func TestReserveFunds_ConcurrentModificationAfterRetriesExhausted(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	userID := uuid.New()
	wallet := f.seedWallet(t, userID, "100.00")

	// Every guarded update misses while funds stay available, so each
	// attempt classifies as a version conflict until the budget runs out.
	f.wallets.AddReservedFn = func(ctx context.Context, id uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error) {
		return false, nil
	}

	_, err := f.service.ReserveFunds(ctx, services.ReserveFundsCommand{
		WalletID:  wallet.ID,
		UserID:    userID,
		Amount:    decimal.RequireFromString("25.00"),
		Currency:  "SGD",
		PaymentID: uuid.New(),
	})
	require.Error(t, err)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.CodeConcurrentModification, svcErr.Code)
}

func TestReserveFunds_IdempotentOnPaymentID(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	userID := uuid.New()
	wallet := f.seedWallet(t, userID, "100.00")
	paymentID := uuid.New()
	cmd := services.ReserveFundsCommand{
		WalletID:  wallet.ID,
		UserID:    userID,
		Amount:    decimal.RequireFromString("25.00"),
		Currency:  "SGD",
		PaymentID: paymentID,
	}

	first, err := f.service.ReserveFunds(ctx, cmd)
	require.NoError(t, err)
	second, err := f.service.ReserveFunds(ctx, cmd)
	require.NoError(t, err)

	assert.Equal(t, first.WalletTransactionID, second.WalletTransactionID)

	// Only one hold was placed.
	saved, err := f.wallets.FindByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, saved.ReservedBalance.Equal(decimal.RequireFromString("25.00")))
}

func TestReserveFunds_InsufficientBalance(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	userID := uuid.New()
	wallet := f.seedWallet(t, userID, "10.00")

	_, err := f.service.ReserveFunds(ctx, services.ReserveFundsCommand{
		WalletID:  wallet.ID,
		UserID:    userID,
		Amount:    decimal.RequireFromString("25.00"),
		Currency:  "SGD",
		PaymentID: uuid.New(),
	})
	require.Error(t, err)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.CodeInsufficientBalance, svcErr.Code)
}

func TestReserveFunds_ForeignWalletReportedAsNotFound(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	wallet := f.seedWallet(t, uuid.New(), "100.00")

	_, err := f.service.ReserveFunds(ctx, services.ReserveFundsCommand{
		WalletID:  wallet.ID,
		UserID:    uuid.New(),
		Amount:    decimal.RequireFromString("25.00"),
		Currency:  "SGD",
		PaymentID: uuid.New(),
	})
	require.Error(t, err)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.CodeWalletNotFound, svcErr.Code)
}

func TestConfirmReservation_SettlesBalancesOnce(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	userID := uuid.New()
	wallet := f.seedWallet(t, userID, "100.00")

	reservation, err := f.service.ReserveFunds(ctx, services.ReserveFundsCommand{
		WalletID:  wallet.ID,
		UserID:    userID,
		Amount:    decimal.RequireFromString("25.00"),
		Currency:  "SGD",
		PaymentID: uuid.New(),
	})
	require.NoError(t, err)

	cmd := services.ConfirmReservationCommand{
		WalletTransactionID:   reservation.WalletTransactionID,
		ProviderTransactionID: "mp_test",
		Provider:              "mockpay",
	}
	require.NoError(t, f.service.ConfirmReservation(ctx, cmd))

	saved, err := f.wallets.FindByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, saved.Balance.Equal(decimal.RequireFromString("75.00")))
	assert.True(t, saved.ReservedBalance.IsZero())
	assert.Equal(t, int64(3), saved.Version)

	// Replay is a no-op.
	require.NoError(t, f.service.ConfirmReservation(ctx, cmd))
	saved, err = f.wallets.FindByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, saved.Balance.Equal(decimal.RequireFromString("75.00")))
	assert.Equal(t, int64(3), saved.Version)
}

func TestCancelReservation_ReleasesHoldOnce(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	userID := uuid.New()
	wallet := f.seedWallet(t, userID, "100.00")

	reservation, err := f.service.ReserveFunds(ctx, services.ReserveFundsCommand{
		WalletID:  wallet.ID,
		UserID:    userID,
		Amount:    decimal.RequireFromString("25.00"),
		Currency:  "SGD",
		PaymentID: uuid.New(),
	})
	require.NoError(t, err)

	cmd := services.CancelReservationCommand{WalletTransactionID: reservation.WalletTransactionID}
	require.NoError(t, f.service.CancelReservation(ctx, cmd))

	saved, err := f.wallets.FindByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, saved.Balance.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, saved.ReservedBalance.IsZero())
	assert.Equal(t, int64(3), saved.Version)

	require.NoError(t, f.service.CancelReservation(ctx, cmd))
	saved, err = f.wallets.FindByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), saved.Version)
}

func TestCancelReservation_RejectedAfterConfirm(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	userID := uuid.New()
	wallet := f.seedWallet(t, userID, "100.00")

	reservation, err := f.service.ReserveFunds(ctx, services.ReserveFundsCommand{
		WalletID:  wallet.ID,
		UserID:    userID,
		Amount:    decimal.RequireFromString("25.00"),
		Currency:  "SGD",
		PaymentID: uuid.New(),
	})
	require.NoError(t, err)

	require.NoError(t, f.service.ConfirmReservation(ctx, services.ConfirmReservationCommand{
		WalletTransactionID: reservation.WalletTransactionID,
	}))

	err = f.service.CancelReservation(ctx, services.CancelReservationCommand{
		WalletTransactionID: reservation.WalletTransactionID,
	})
	require.Error(t, err)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.CodeInvalidState, svcErr.Code)
}

func TestTopUp_CreditsAndJournals(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	userID := uuid.New()
	wallet := f.seedWallet(t, userID, "10.00")

	updated, err := f.service.TopUp(ctx, services.TopUpCommand{
		WalletID: wallet.ID,
		UserID:   userID,
		Amount:   decimal.RequireFromString("40.00"),
		Currency: "SGD",
	})
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(decimal.RequireFromString("50.00")))

	entries, err := f.service.History(ctx, wallet.ID, userID, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TransactionCredit, entries[0].Type)
	assert.Equal(t, domain.TransactionCompleted, entries[0].Status)
}

func TestTransfer_MovesFundsWithPairedEntries(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	userID := uuid.New()
	from := f.seedWallet(t, userID, "100.00")
	to := f.seedWallet(t, uuid.New(), "5.00")

	result, err := f.service.Transfer(ctx, services.TransferCommand{
		FromWalletID: from.ID,
		ToWalletID:   to.ID,
		UserID:       userID,
		Amount:       decimal.RequireFromString("30.00"),
		Currency:     "SGD",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	fromSaved, err := f.wallets.FindByID(ctx, from.ID)
	require.NoError(t, err)
	toSaved, err := f.wallets.FindByID(ctx, to.ID)
	require.NoError(t, err)
	assert.True(t, fromSaved.Balance.Equal(decimal.RequireFromString("70.00")))
	assert.True(t, toSaved.Balance.Equal(decimal.RequireFromString("35.00")))

	debit, err := f.transactions.FindByID(ctx, result.DebitTransactionID)
	require.NoError(t, err)
	credit, err := f.transactions.FindByID(ctx, result.CreditTransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionDebit, debit.Type)
	assert.Equal(t, domain.TransactionCredit, credit.Type)
	require.NotNil(t, debit.ReferenceID)
	require.NotNil(t, credit.ReferenceID)
	assert.Equal(t, to.ID.String(), *debit.ReferenceID, "debit leg references the receiving wallet")
	assert.Equal(t, from.ID.String(), *credit.ReferenceID, "credit leg references the sending wallet")
	require.NotNil(t, debit.ReferenceType)
	assert.Equal(t, domain.ReferenceTransfer, *debit.ReferenceType)
}

func TestTransfer_SameWalletRejected(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	userID := uuid.New()
	wallet := f.seedWallet(t, userID, "100.00")

	_, err := f.service.Transfer(ctx, services.TransferCommand{
		FromWalletID: wallet.ID,
		ToWalletID:   wallet.ID,
		UserID:       userID,
		Amount:       decimal.RequireFromString("10.00"),
		Currency:     "SGD",
	})
	require.Error(t, err)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.KindValidation, svcErr.Kind)
}

func TestTransfer_InsufficientAvailableBalance(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	userID := uuid.New()
	from := f.seedWallet(t, userID, "100.00")
	to := f.seedWallet(t, uuid.New(), "0.00")

	// A hold eats into the spendable balance.
	_, err := f.service.ReserveFunds(ctx, services.ReserveFundsCommand{
		WalletID:  from.ID,
		UserID:    userID,
		Amount:    decimal.RequireFromString("90.00"),
		Currency:  "SGD",
		PaymentID: uuid.New(),
	})
	require.NoError(t, err)

	_, err = f.service.Transfer(ctx, services.TransferCommand{
		FromWalletID: from.ID,
		ToWalletID:   to.ID,
		UserID:       userID,
		Amount:       decimal.RequireFromString("20.00"),
		Currency:     "SGD",
	})
	require.Error(t, err)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.CodeInsufficientBalance, svcErr.Code)
}

func TestMonthlySummary_AggregatesCompletedOnly(t *testing.T) {
	f := newWalletFixture()
	ctx := context.Background()
	userID := uuid.New()
	wallet := f.seedWallet(t, userID, "0.00")

	_, err := f.service.TopUp(ctx, services.TopUpCommand{
		WalletID: wallet.ID,
		UserID:   userID,
		Amount:   decimal.RequireFromString("80.00"),
		Currency: "SGD",
	})
	require.NoError(t, err)

	// A pending reservation must not count.
	_, err = f.service.ReserveFunds(ctx, services.ReserveFundsCommand{
		WalletID:  wallet.ID,
		UserID:    userID,
		Amount:    decimal.RequireFromString("30.00"),
		Currency:  "SGD",
		PaymentID: uuid.New(),
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	credits, debits, err := f.service.MonthlySummary(ctx, userID, now.Year(), now.Month())
	require.NoError(t, err)
	assert.True(t, credits.Equal(decimal.RequireFromString("80.00")))
	assert.True(t, debits.IsZero())
}
