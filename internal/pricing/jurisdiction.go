package pricing

import (
	"errors"
	"fmt"
	"math"
)

// Jurisdiction holds the destination-country constants used by Compute. Zero is
// a meaningful value for every field (no customs fee, no local VAT), so build
// overrides on top of DefaultJurisdiction().
type Jurisdiction struct {
	// AssessedRatio is the fraction of price plus shipping treated as the dutiable value.
	AssessedRatio       float64 `json:"assessed_ratio"`
	DutyExemptThreshold Money   `json:"duty_exempt_threshold"`
	TobaccoTaxPerKg     Money   `json:"tobacco_tax_per_kg"`
	VATNationalRate     float64 `json:"vat_national_rate"`
	VATLocalRate        float64 `json:"vat_local_rate"`
	CustomsFee          Money   `json:"customs_fee"`
}

// DefaultJurisdiction returns the constants for personal tobacco imports into Japan.
func DefaultJurisdiction() Jurisdiction {
	return Jurisdiction{
		AssessedRatio:       0.6,
		DutyExemptThreshold: 10000,
		TobaccoTaxPerKg:     15244,
		VATNationalRate:     0.078,
		VATLocalRate:        0.022,
		CustomsFee:          200,
	}
}

// IsZero reports whether no field has been set.
func (j Jurisdiction) IsZero() bool {
	return j == Jurisdiction{}
}

// Validate rejects negative or non-finite constants.
func (j Jurisdiction) Validate() error {
	var errs []error
	checkRate := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			errs = append(errs, fmt.Errorf("%s must be a non-negative number", name))
		}
	}
	checkAmount := func(name string, v Money) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	checkRate("assessed ratio", j.AssessedRatio)
	checkAmount("duty exempt threshold", j.DutyExemptThreshold)
	checkAmount("tobacco tax per kg", j.TobaccoTaxPerKg)
	checkRate("national VAT rate", j.VATNationalRate)
	checkRate("local VAT rate", j.VATLocalRate)
	checkAmount("customs fee", j.CustomsFee)
	return errors.Join(errs...)
}
