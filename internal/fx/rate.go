// Package fx resolves foreign-exchange rates into the local currency, either
// from a live upstream or from a manually supplied override.
package fx

import (
	"context"
	"strings"
	"time"
)

// Source labels attached to resolved rates.
const (
	SourceFrankfurter = "frankfurter"
	SourceManual      = "manual"
	SourceIdentity    = "identity"
)

// Rate is a resolved exchange rate: one unit of Base costs Value units of Quote.
type Rate struct {
	Base   string     `json:"base"`
	Quote  string     `json:"quote"`
	Value  float64    `json:"rate"`
	AsOf   *time.Time `json:"as_of,omitempty"`
	Source string     `json:"source"`
}

// Resolver looks up the current rate for a currency pair.
type Resolver interface {
	Resolve(ctx context.Context, base, quote string) (Rate, error)
}

// NormalizeCode upper-cases and validates a three-letter ISO 4217 code.
func NormalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return "", &Error{Kind: KindInvalidCurrency, Detail: "currency code must have three letters: " + code}
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return "", &Error{Kind: KindInvalidCurrency, Detail: "currency code must have three letters: " + code}
		}
	}
	return c, nil
}

func identity(base, quote string) Rate {
	return Rate{Base: base, Quote: quote, Value: 1, Source: SourceIdentity}
}
