package provider

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

const mockProviderName = "mockpay"

// MockConfig drives the simulated provider behavior.
type MockConfig struct {
	SuccessRate  float64
	MinLatencyMs int
	MaxLatencyMs int
	// TestTokenOutcomes maps payment method tokens to deterministic
	// outcomes: "SUCCESS", "PENDING", or a FailureCode string.
	TestTokenOutcomes map[string]string
}

// DefaultTestTokens are the documented deterministic tokens. Config entries
// override or extend them.
func DefaultTestTokens() map[string]string {
	return map[string]string{
		"tok_visa_success":         string(ChargeSuccess),
		"tok_pending":              string(ChargePending),
		"tok_card_declined":        string(CodeCardDeclined),
		"tok_insufficient_funds":   string(CodeInsufficientFunds),
		"tok_expired_card":         string(CodeExpiredCard),
		"tok_invalid_card":         string(CodeInvalidCard),
		"tok_fraud_suspected":      string(CodeFraudSuspected),
		"tok_network_error":        string(CodeNetworkError),
		"tok_provider_unavailable": string(CodeProviderUnavailable),
		"tok_rate_limited":         string(CodeRateLimited),
	}
}

// MockProvider simulates an external payment provider. Outcomes are kept in
// memory keyed by provider transaction id so status lookups behave like the
// real thing.
type MockProvider struct {
	cfg    MockConfig
	tokens map[string]string

	mu       sync.Mutex
	rng      *rand.Rand
	outcomes map[string]ChargeOutcome
}

func NewMockProvider(cfg MockConfig) *MockProvider {
	tokens := DefaultTestTokens()
	for token, outcome := range cfg.TestTokenOutcomes {
		tokens[token] = outcome
	}
	return &MockProvider{
		cfg:      cfg,
		tokens:   tokens,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		outcomes: make(map[string]ChargeOutcome),
	}
}

func (m *MockProvider) Name() string {
	return mockProviderName
}

func (m *MockProvider) Charge(ctx context.Context, req ChargeRequest) (*ChargeOutcome, error) {
	if err := m.simulateLatency(ctx); err != nil {
		return nil, err
	}

	if fixed, ok := m.tokens[req.PaymentMethodToken]; ok {
		return m.deterministicOutcome(fixed)
	}

	m.mu.Lock()
	roll := m.rng.Float64()
	m.mu.Unlock()

	if roll < m.cfg.SuccessRate {
		return m.record(ChargeOutcome{
			Status:                ChargeSuccess,
			Provider:              mockProviderName,
			ProviderTransactionID: m.newTransactionID(),
			ProcessedAt:           time.Now().UTC(),
		}), nil
	}
	return m.record(m.randomFailure()), nil
}

func (m *MockProvider) GetTransactionStatus(ctx context.Context, providerTxID string) (*ChargeOutcome, error) {
	if err := m.simulateLatency(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	outcome, ok := m.outcomes[providerTxID]
	m.mu.Unlock()

	if !ok {
		return nil, NewProviderError(CodeTransactionNotFound,
			fmt.Sprintf("transaction %s not found", providerTxID), mockProviderName)
	}
	return &outcome, nil
}

// Resolve overrides a stored outcome so tests and demos can settle a
// PENDING charge.
func (m *MockProvider) Resolve(providerTxID string, status ChargeStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if outcome, ok := m.outcomes[providerTxID]; ok {
		outcome.Status = status
		m.outcomes[providerTxID] = outcome
	}
}

func (m *MockProvider) deterministicOutcome(fixed string) (*ChargeOutcome, error) {
	now := time.Now().UTC()

	switch fixed {
	case string(ChargeSuccess):
		return m.record(ChargeOutcome{
			Status:                ChargeSuccess,
			Provider:              mockProviderName,
			ProviderTransactionID: m.newTransactionID(),
			ProcessedAt:           now,
		}), nil
	case string(ChargePending):
		return m.record(ChargeOutcome{
			Status:                ChargePending,
			Provider:              mockProviderName,
			ProviderTransactionID: m.newTransactionID(),
			ProcessedAt:           now,
		}), nil
	}

	code := FailureCode(fixed)
	if code.IsRetryable() {
		// Retryable classes simulate faults where no outcome value
		// exists, so they surface as errors.
		return nil, NewProviderError(code, "simulated "+fixed, mockProviderName)
	}
	return m.record(ChargeOutcome{
		Status:                ChargeFailed,
		Provider:              mockProviderName,
		ProviderTransactionID: m.newTransactionID(),
		FailureCode:           code,
		FailureMessage:        "simulated " + fixed,
		Retryable:             false,
		ProcessedAt:           now,
	}), nil
}

func (m *MockProvider) randomFailure() ChargeOutcome {
	m.mu.Lock()
	roll := m.rng.Float64()
	m.mu.Unlock()

	var code FailureCode
	switch {
	case roll < 0.4:
		code = CodeCardDeclined
	case roll < 0.6:
		code = CodeInsufficientFunds
	case roll < 0.8:
		code = CodeNetworkError
	default:
		code = CodeProviderUnavailable
	}

	return ChargeOutcome{
		Status:                ChargeFailed,
		Provider:              mockProviderName,
		ProviderTransactionID: m.newTransactionID(),
		FailureCode:           code,
		FailureMessage:        "simulated " + string(code),
		Retryable:             code.IsRetryable(),
		ProcessedAt:           time.Now().UTC(),
	}
}

func (m *MockProvider) record(outcome ChargeOutcome) *ChargeOutcome {
	m.mu.Lock()
	m.outcomes[outcome.ProviderTransactionID] = outcome
	m.mu.Unlock()
	return &outcome
}

func (m *MockProvider) newTransactionID() string {
	return "mp_" + uuid.New().String()
}

func (m *MockProvider) simulateLatency(ctx context.Context) error {
	if m.cfg.MaxLatencyMs <= 0 {
		return nil
	}

	spread := m.cfg.MaxLatencyMs - m.cfg.MinLatencyMs
	latency := m.cfg.MinLatencyMs
	if spread > 0 {
		m.mu.Lock()
		latency += m.rng.Intn(spread + 1)
		m.mu.Unlock()
	}

	timer := time.NewTimer(time.Duration(latency) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
