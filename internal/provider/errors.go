package provider

import (
	"errors"
	"fmt"
)

// ProviderError is raised for faults where no outcome value exists
// (network failures, provider outages, rate limiting). Business declines
// come back as FAILED outcomes, not errors.
type ProviderError struct {
	Code     FailureCode
	Message  string
	Provider string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error [%s]: %s (%s)", e.Code, e.Message, e.Provider)
}

// IsRetryable defers to the failure code's intrinsic classification.
func (e *ProviderError) IsRetryable() bool {
	return e.Code.IsRetryable()
}

func NewProviderError(code FailureCode, message, providerName string) *ProviderError {
	return &ProviderError{
		Code:     code,
		Message:  message,
		Provider: providerName,
	}
}

// AsProviderError unwraps err into a *ProviderError if it carries one.
func AsProviderError(err error) (*ProviderError, bool) {
	var provErr *ProviderError
	ok := errors.As(err, &provErr)
	return provErr, ok
}
