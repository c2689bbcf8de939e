package model

import (
	"strings"

	"github.com/shopspring/decimal"

	"marketpulse/internal/apperr"
)

// Money is an amount in an explicit currency. Amounts are never converted between
// currencies; adding two values with different codes is a configuration error. Codes are
// kept upper case so "usd" and "USD" name the same currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney builds a Money from a float amount.
func NewMoney(amount float64, currency string) Money {
	return Money{Amount: decimal.NewFromFloat(amount), Currency: CurrencyCode(currency)}
}

// Zero returns a zero amount in currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: CurrencyCode(currency)}
}

// CurrencyCode canonicalizes an ISO 4217 code.
func CurrencyCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Add sums two amounts. An empty currency on a zero amount adopts the other side's code.
func (m Money) Add(o Money) (Money, error) {
	cur, other := CurrencyCode(m.Currency), CurrencyCode(o.Currency)
	switch {
	case cur == "":
		cur = other
	case other != "" && other != cur:
		return Money{}, apperr.Validation("currency_mismatch",
			"cannot add %s to %s without conversion", other, cur)
	}
	return Money{Amount: m.Amount.Add(o.Amount), Currency: cur}, nil
}

// Float returns the amount as float64 for ratio math.
func (m Money) Float() float64 {
	f, _ := m.Amount.Float64()
	return f
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }
