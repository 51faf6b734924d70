package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func chargeReq(token string) ChargeRequest {
	return ChargeRequest{
		PaymentID:          uuid.New(),
		Amount:             decimal.RequireFromString("25.00"),
		Currency:           "SGD",
		PaymentMethodToken: token,
		Description:        "test charge",
	}
}

func TestMockProvider_DeterministicTokens(t *testing.T) {
	p := NewMockProvider(MockConfig{SuccessRate: 0})

	outcome, err := p.Charge(context.Background(), chargeReq("tok_visa_success"))
	require.NoError(t, err)
	assert.Equal(t, ChargeSuccess, outcome.Status)
	assert.Equal(t, "mockpay", outcome.Provider)
	assert.NotEmpty(t, outcome.ProviderTransactionID)

	outcome, err = p.Charge(context.Background(), chargeReq("tok_pending"))
	require.NoError(t, err)
	assert.Equal(t, ChargePending, outcome.Status)

	outcome, err = p.Charge(context.Background(), chargeReq("tok_card_declined"))
	require.NoError(t, err)
	assert.Equal(t, ChargeFailed, outcome.Status)
	assert.Equal(t, CodeCardDeclined, outcome.FailureCode)
	assert.False(t, outcome.Retryable)
}

func TestMockProvider_RetryableTokensRaise(t *testing.T) {
	p := NewMockProvider(MockConfig{SuccessRate: 1.0})

	for _, token := range []string{"tok_network_error", "tok_provider_unavailable", "tok_rate_limited"} {
		_, err := p.Charge(context.Background(), chargeReq(token))
		provErr, ok := AsProviderError(err)
		require.True(t, ok, "token %s must raise a provider error", token)
		assert.True(t, provErr.IsRetryable(), "token %s must be retryable", token)
	}
}

func TestMockProvider_ConfiguredTokenOverride(t *testing.T) {
	p := NewMockProvider(MockConfig{
		SuccessRate:       0,
		TestTokenOutcomes: map[string]string{"tok_custom": string(ChargeSuccess)},
	})

	outcome, err := p.Charge(context.Background(), chargeReq("tok_custom"))
	require.NoError(t, err)
	assert.Equal(t, ChargeSuccess, outcome.Status)
}

func TestMockProvider_StatusLookup(t *testing.T) {
	p := NewMockProvider(MockConfig{SuccessRate: 1.0})

	outcome, err := p.Charge(context.Background(), chargeReq("tok_pending"))
	require.NoError(t, err)

	found, err := p.GetTransactionStatus(context.Background(), outcome.ProviderTransactionID)
	require.NoError(t, err)
	assert.Equal(t, ChargePending, found.Status)

	p.Resolve(outcome.ProviderTransactionID, ChargeSuccess)
	found, err = p.GetTransactionStatus(context.Background(), outcome.ProviderTransactionID)
	require.NoError(t, err)
	assert.Equal(t, ChargeSuccess, found.Status)
}

func TestMockProvider_UnknownTransactionIsNotFound(t *testing.T) {
	p := NewMockProvider(MockConfig{SuccessRate: 1.0})

	_, err := p.GetTransactionStatus(context.Background(), "mp_missing")
	provErr, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, CodeTransactionNotFound, provErr.Code)
	assert.False(t, provErr.IsRetryable())
}

func TestMockProvider_SuccessRateExtremes(t *testing.T) {
	always := NewMockProvider(MockConfig{SuccessRate: 1.0})
	for i := 0; i < 20; i++ {
		outcome, err := always.Charge(context.Background(), chargeReq("tok_unknown_"+uuid.NewString()))
		require.NoError(t, err)
		assert.Equal(t, ChargeSuccess, outcome.Status)
	}

	never := NewMockProvider(MockConfig{SuccessRate: 0})
	for i := 0; i < 20; i++ {
		outcome, err := never.Charge(context.Background(), chargeReq("tok_unknown_"+uuid.NewString()))
		require.NoError(t, err)
		assert.Equal(t, ChargeFailed, outcome.Status)
		assert.NotEmpty(t, outcome.FailureCode)
	}
}
