package services

import (
	"sync"

	"github.com/payflowhq/payflow/internal/domain"
)

// TokenVault resolves stored payment method identifiers to provider tokens.
// Static and in-process: card vaulting is out of scope, but the processing
// API accepts a paymentMethodId and this keeps that path working.
type TokenVault struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewTokenVault() *TokenVault {
	return &TokenVault{
		tokens: map[string]string{
			"pm_default_visa": "tok_visa_success",
		},
	}
}

func (v *TokenVault) Register(paymentMethodID, token string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[paymentMethodID] = token
}

func (v *TokenVault) Resolve(paymentMethodID string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	token, ok := v.tokens[paymentMethodID]
	if !ok {
		return "", domain.NewInvalidInputError("unknown payment method")
	}
	return token, nil
}
