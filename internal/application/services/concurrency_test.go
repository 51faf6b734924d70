package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/application/services"
)

func TestReserveFunds_ConcurrentReservesForLastAvailableUnit(t *testing.T) {
	f := newWalletFixture()
	userID := uuid.New()
	wallet := f.seedWallet(t, userID, "50.00")
	amount := decimal.RequireFromString("50.00")

	const numRequests = 2
	var wg sync.WaitGroup
	results := make(chan error, numRequests)

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.ReserveFunds(context.Background(), services.ReserveFundsCommand{
				WalletID:  wallet.ID,
				UserID:    userID,
				Amount:    amount,
				Currency:  "SGD",
				PaymentID: uuid.New(),
			})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok, "unexpected error shape: %v", err)
		assert.Contains(t,
			[]int{application.CodeInsufficientBalance, application.CodeConcurrentModification},
			svcErr.Code,
			"loser must fail with insufficient balance or a concurrency conflict, got %v", err)
	}
	assert.Equal(t, 1, successes, "exactly one reserve may win the last available unit")

	saved, err := f.wallets.FindByID(context.Background(), wallet.ID)
	require.NoError(t, err)
	assert.True(t, saved.ReservedBalance.Equal(amount), "only one hold may exist: %s", saved.ReservedBalance)
	assert.True(t, saved.Balance.Equal(amount), "balance is untouched until confirmation")
}
