package fx

import (
	"math"
	"strconv"
	"strings"
)

// Manual builds a rate from a user-supplied override. The raw value must parse
// to a finite number greater than zero.
func Manual(raw, base, quote string) (Rate, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return Rate{}, &Error{Kind: KindInvalidManual, Detail: "manual exchange rate must be a positive number", Err: err}
	}
	return Rate{Base: base, Quote: quote, Value: value, Source: SourceManual}, nil
}
