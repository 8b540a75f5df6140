package fx

import (
	"errors"
	"fmt"
)

// Kind classifies FX resolution failures.
type Kind string

const (
	KindUpstream        Kind = "upstream_status"
	KindUnavailable     Kind = "unavailable"
	KindMalformed       Kind = "malformed_response"
	KindRateNotFound    Kind = "rate_not_found"
	KindInvalidManual   Kind = "invalid_manual_rate"
	KindInvalidCurrency Kind = "invalid_currency"
)

// ManualRateHint is appended to lookup failures so users know how to recover.
const ManualRateHint = "enter the exchange rate manually to continue"

// ErrLookupFailed matches every failure of a live lookup via errors.Is.
var ErrLookupFailed = errors.New("fx: rate lookup failed")

// Error describes why a rate could not be resolved.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidManual, KindInvalidCurrency:
		return e.Detail
	}
	detail := e.Detail
	if e.Status != 0 {
		detail = fmt.Sprintf("FX API error: %d", e.Status)
	}
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("exchange rate lookup failed, %s (%s)", ManualRateHint, detail)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports lookup failures as ErrLookupFailed.
func (e *Error) Is(target error) bool {
	if target != ErrLookupFailed {
		return false
	}
	return e.Kind != KindInvalidManual && e.Kind != KindInvalidCurrency
}
