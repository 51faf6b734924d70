package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/domain"
	"github.com/payflowhq/payflow/internal/infrastructure/persistence/postgres"
	"github.com/payflowhq/payflow/internal/infrastructure/persistence/postgres/testhelpers"
)

type RepositoriesTestSuite struct {
	suite.Suite
	testDB       *testhelpers.TestDatabase
	payments     *postgres.PaymentRepository
	wallets      *postgres.WalletRepository
	transactions *postgres.WalletTransactionRepository
	coordinator  *postgres.TransactionCoordinator
}

func TestRepositoriesSuite(t *testing.T) {
	suite.Run(t, new(RepositoriesTestSuite))
}

func (s *RepositoriesTestSuite) SetupSuite() {
	s.testDB = testhelpers.SetupTestDatabase(s.T())
	s.payments = postgres.NewPaymentRepository(s.testDB.DB)
	s.wallets = postgres.NewWalletRepository(s.testDB.DB)
	s.transactions = postgres.NewWalletTransactionRepository(s.testDB.DB)
	s.coordinator = postgres.NewTransactionCoordinator(s.testDB.DB)
}

func (s *RepositoriesTestSuite) TearDownSuite() {
	s.testDB.Cleanup(s.T())
}

func (s *RepositoriesTestSuite) SetupTest() {
	s.testDB.CleanTables(s.T())
}

func (s *RepositoriesTestSuite) newWallet(balance string) *domain.Wallet {
	t := s.T()
	wallet, err := domain.NewWallet(uuid.New(), "SGD")
	require.NoError(t, err)
	wallet.Balance = decimal.RequireFromString(balance)
	require.NoError(t, s.wallets.Create(context.Background(), wallet))
	return wallet
}

func (s *RepositoriesTestSuite) newPayment(userID uuid.UUID, clientRequestID string) *domain.Payment {
	t := s.T()
	money, err := domain.NewMoney(decimal.RequireFromString("25.00"), "SGD")
	require.NoError(t, err)
	payment, err := domain.NewPayment(userID, money, clientRequestID, uuid.New())
	require.NoError(t, err)
	return payment
}

func (s *RepositoriesTestSuite) Test_Wallet_RoundTripAndOwnerScoping() {
	ctx := context.Background()
	t := s.T()
	wallet := s.newWallet("100.00")

	found, err := s.wallets.FindByID(ctx, wallet.ID)
	require.NoError(t, err)
	s.True(found.Balance.Equal(decimal.RequireFromString("100.00")))
	s.Equal(wallet.UserID, found.UserID)
	s.Equal(int64(1), found.Version)

	_, err = s.wallets.FindByIDAndUser(ctx, wallet.ID, uuid.New())
	s.True(domain.IsErrorCode(err, domain.ErrCodeWalletNotFound),
		"foreign wallet lookup must not disclose existence")
}

func (s *RepositoriesTestSuite) Test_Wallet_ReserveConfirmLifecycle() {
	ctx := context.Background()
	t := s.T()
	wallet := s.newWallet("100.00")
	amount := decimal.RequireFromString("25.00")

	ok, err := s.wallets.AddReserved(ctx, wallet.ID, amount, wallet.Version)
	require.NoError(t, err)
	s.True(ok)

	// The guard condition makes a stale version a clean no-op.
	ok, err = s.wallets.AddReserved(ctx, wallet.ID, amount, wallet.Version)
	require.NoError(t, err)
	s.False(ok, "stale version must not reserve")

	ok, err = s.wallets.ConfirmReserved(ctx, wallet.ID, amount)
	require.NoError(t, err)
	s.True(ok)

	final, err := s.wallets.FindByID(ctx, wallet.ID)
	require.NoError(t, err)
	s.True(final.Balance.Equal(decimal.RequireFromString("75.00")), "balance is %s", final.Balance)
	s.True(final.ReservedBalance.IsZero())
	s.Equal(int64(3), final.Version)
}

func (s *RepositoriesTestSuite) Test_Wallet_ReleaseRestoresAvailable() {
	ctx := context.Background()
	t := s.T()
	wallet := s.newWallet("50.00")
	amount := decimal.RequireFromString("50.00")

	ok, err := s.wallets.AddReserved(ctx, wallet.ID, amount, wallet.Version)
	require.NoError(t, err)
	s.True(ok, "reserving the exact available balance must succeed")

	ok, err = s.wallets.ReleaseReserved(ctx, wallet.ID, amount)
	require.NoError(t, err)
	s.True(ok)

	final, err := s.wallets.FindByID(ctx, wallet.ID)
	require.NoError(t, err)
	s.True(final.Balance.Equal(decimal.RequireFromString("50.00")))
	s.True(final.ReservedBalance.IsZero())
}

func (s *RepositoriesTestSuite) Test_Wallet_ReserveBeyondAvailableFails() {
	ctx := context.Background()
	t := s.T()
	wallet := s.newWallet("30.00")

	ok, err := s.wallets.AddReserved(ctx, wallet.ID, decimal.RequireFromString("30.01"), wallet.Version)
	require.NoError(t, err)
	s.False(ok, "one cent over the available balance must be rejected")
}

func (s *RepositoriesTestSuite) Test_Payment_UniqueOnClientRequestAndUser() {
	ctx := context.Background()
	t := s.T()
	userID := uuid.New()

	first := s.newPayment(userID, "req-dup")
	require.NoError(t, s.payments.Create(ctx, first))

	second := s.newPayment(userID, "req-dup")
	err := s.payments.Create(ctx, second)
	s.True(postgres.IsUniqueViolation(err), "expected unique violation, got %v", err)

	otherUser := s.newPayment(uuid.New(), "req-dup")
	require.NoError(t, s.payments.Create(ctx, otherUser),
		"same client request id under a different user is a distinct payment")
}

func (s *RepositoriesTestSuite) Test_Payment_UpdateGuardsVersion() {
	ctx := context.Background()
	t := s.T()
	payment := s.newPayment(uuid.New(), "req-cas")
	require.NoError(t, s.payments.Create(ctx, payment))

	stale := *payment

	require.NoError(t, payment.MarkPending("mockpay", "ptx_1", uuid.New()))
	require.NoError(t, s.payments.Update(ctx, payment))
	s.Equal(int64(2), payment.Version)

	require.NoError(t, stale.Fail("CARD_DECLINED", "declined"))
	err := s.payments.Update(ctx, &stale)
	s.True(domain.IsErrorCode(err, domain.ErrCodeConcurrentModification))

	current, err := s.payments.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	s.Equal(domain.PaymentPending, current.Status)
}

func (s *RepositoriesTestSuite) Test_Transaction_PaymentReferenceIsUnique() {
	ctx := context.Background()
	t := s.T()
	wallet := s.newWallet("100.00")
	paymentID := uuid.New()
	amount := decimal.RequireFromString("10.00")

	first := domain.NewReservation(wallet.ID, amount, paymentID, "hold")
	require.NoError(t, s.transactions.Create(ctx, first))

	second := domain.NewReservation(wallet.ID, amount, paymentID, "hold again")
	err := s.transactions.Create(ctx, second)
	s.True(postgres.IsUniqueViolation(err), "expected unique violation, got %v", err)

	found, err := s.transactions.FindByPaymentReference(ctx, paymentID)
	require.NoError(t, err)
	require.NotNil(t, found)
	s.Equal(first.ID, found.ID)

	missing, err := s.transactions.FindByPaymentReference(ctx, uuid.New())
	require.NoError(t, err)
	s.Nil(missing)
}

func (s *RepositoriesTestSuite) Test_Transaction_StalePendingSweep() {
	ctx := context.Background()
	t := s.T()
	wallet := s.newWallet("100.00")
	amount := decimal.RequireFromString("10.00")

	old := domain.NewReservation(wallet.ID, amount, uuid.New(), "old hold")
	old.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.transactions.Create(ctx, old))

	fresh := domain.NewReservation(wallet.ID, amount, uuid.New(), "fresh hold")
	require.NoError(t, s.transactions.Create(ctx, fresh))

	settled := domain.NewReservation(wallet.ID, amount, uuid.New(), "settled hold")
	settled.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.transactions.Create(ctx, settled))
	require.NoError(t, s.transactions.UpdateStatus(ctx, settled.ID, domain.TransactionCompleted))

	stale, err := s.transactions.FindStalePending(ctx, time.Now().UTC().Add(-5*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	s.Equal(old.ID, stale[0].ID)
}

func (s *RepositoriesTestSuite) Test_Transaction_HistoryPagination() {
	ctx := context.Background()
	t := s.T()
	wallet := s.newWallet("100.00")
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 12; i++ {
		entry := domain.NewCompletedEntry(wallet.ID, decimal.RequireFromString("1.00"),
			domain.TransactionCredit, nil, nil, fmt.Sprintf("top-up %d", i))
		entry.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.transactions.Create(ctx, entry))
	}

	page1, err := s.transactions.ListByWallet(ctx, wallet.ID, 1)
	require.NoError(t, err)
	require.Len(t, page1, 10)
	s.Equal("top-up 11", page1[0].Description, "newest entry first")

	page2, err := s.transactions.ListByWallet(ctx, wallet.ID, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	s.Equal("top-up 0", page2[1].Description)

	page3, err := s.transactions.ListByWallet(ctx, wallet.ID, 3)
	require.NoError(t, err)
	s.Empty(page3)
}

func (s *RepositoriesTestSuite) Test_Transaction_MonthlySummary() {
	ctx := context.Background()
	t := s.T()
	wallet := s.newWallet("100.00")
	owner, err := s.wallets.FindByID(ctx, wallet.ID)
	require.NoError(t, err)

	now := time.Now().UTC()

	credit := domain.NewCompletedEntry(wallet.ID, decimal.RequireFromString("40.00"),
		domain.TransactionCredit, nil, nil, "top-up")
	require.NoError(t, s.transactions.Create(ctx, credit))

	debit := domain.NewCompletedEntry(wallet.ID, decimal.RequireFromString("15.00"),
		domain.TransactionDebit, nil, nil, "purchase")
	require.NoError(t, s.transactions.Create(ctx, debit))

	// Pending reservations must not count toward the summary.
	pending := domain.NewReservation(wallet.ID, decimal.RequireFromString("99.00"), uuid.New(), "hold")
	require.NoError(t, s.transactions.Create(ctx, pending))

	credits, debits, err := s.transactions.MonthlySummary(ctx, owner.UserID, now.Year(), now.Month())
	require.NoError(t, err)
	s.True(credits.Equal(decimal.RequireFromString("40.00")), "credits are %s", credits)
	s.True(debits.Equal(decimal.RequireFromString("15.00")), "debits are %s", debits)
}

func (s *RepositoriesTestSuite) Test_Coordinator_CommitsOnNilAndRollsBackOnError() {
	ctx := context.Background()
	t := s.T()

	committed := s.newPayment(uuid.New(), "req-commit")
	err := s.coordinator.WithTransaction(ctx, func(ctx context.Context, repos application.Repositories) error {
		return repos.Payments.Create(ctx, committed)
	})
	require.NoError(t, err)

	_, err = s.payments.FindByID(ctx, committed.ID)
	s.NoError(err, "committed payment must be visible outside the transaction")

	rolledBack := s.newPayment(uuid.New(), "req-rollback")
	err = s.coordinator.WithTransaction(ctx, func(ctx context.Context, repos application.Repositories) error {
		if err := repos.Payments.Create(ctx, rolledBack); err != nil {
			return err
		}
		return fmt.Errorf("force rollback")
	})
	s.Error(err)

	_, err = s.payments.FindByID(ctx, rolledBack.ID)
	s.True(domain.IsErrorCode(err, domain.ErrCodePaymentNotFound),
		"rolled-back payment must not be visible")
}
