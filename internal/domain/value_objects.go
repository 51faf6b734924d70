package domain

import (
	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied when a request does not name one.
const DefaultCurrency = "SGD"

// Money pairs a positive decimal amount (2 fractional digits) with a
// 3-letter currency code.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if !amount.IsPositive() {
		return Money{}, NewInvalidAmountError(amount)
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return Money{}, NewInvalidInputError("currency must be a 3-letter code")
	}
	return Money{Amount: amount.Round(2), Currency: currency}, nil
}
