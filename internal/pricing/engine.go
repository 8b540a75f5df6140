package pricing

import "github.com/shopspring/decimal"

// Money represents a monetary value stored in whole local-currency units.
type Money = int64

// Input carries the purchase facts for a single landed-cost computation. Monetary
// fields are already converted to the local currency and rounded.
type Input struct {
	Sticks              int
	WeightPerStickGrams float64
	ItemPrice           Money
	Shipping            Money
	DutyRate            float64
	// Jurisdiction falls back to DefaultJurisdiction only when left entirely as
	// the zero value. Zero fields of a partly set Jurisdiction are used as zero,
	// so overrides must start from DefaultJurisdiction().
	Jurisdiction Jurisdiction
}

// Breakdown is the itemized result of Compute.
type Breakdown struct {
	ItemPrice         Money   `json:"item_price"`
	Shipping          Money   `json:"shipping"`
	PurchaseTotal     Money   `json:"purchase_total"`
	AssessedValue     Money   `json:"assessed_value"`
	DutyExempted      bool    `json:"duty_exempted"`
	Duty              Money   `json:"duty"`
	TotalWeightGrams  float64 `json:"total_weight_g"`
	TobaccoTax        Money   `json:"tobacco_tax"`
	VATNational       Money   `json:"vat_national"`
	VATLocal          Money   `json:"vat_local"`
	CustomsFee        Money   `json:"customs_fee"`
	TaxesAndFeesTotal Money   `json:"taxes_and_fees_total"`
	GrandTotal        Money   `json:"grand_total"`
	PerUnitCost       Money   `json:"per_unit_cost"`
}

// Compute calculates the itemized landed cost for the provided input. It never
// fails; callers are expected to reject negative or non-finite values first and
// to keep ItemPrice and Shipping within MaxAmount.
func Compute(in Input) Breakdown {
	j := in.Jurisdiction
	if j.IsZero() {
		j = DefaultJurisdiction()
	}

	purchase := in.ItemPrice + in.Shipping
	assessed := Round(decimal.NewFromInt(purchase).Mul(decimal.NewFromFloat(j.AssessedRatio)))

	exempt := assessed <= j.DutyExemptThreshold
	var duty Money
	if !exempt {
		duty = Round(decimal.NewFromInt(assessed).Mul(decimal.NewFromFloat(in.DutyRate)))
	}

	weight := decimal.NewFromInt(int64(in.Sticks)).Mul(decimal.NewFromFloat(in.WeightPerStickGrams))
	tobacco := Round(weight.Shift(-3).Mul(decimal.NewFromInt(j.TobaccoTaxPerKg)))

	// Tobacco tax stays outside the consumption tax base.
	vatBase := decimal.NewFromInt(assessed + duty)
	vatNational := Round(vatBase.Mul(decimal.NewFromFloat(j.VATNationalRate)))
	vatLocal := Round(vatBase.Mul(decimal.NewFromFloat(j.VATLocalRate)))

	taxes := duty + tobacco + vatNational + vatLocal + j.CustomsFee
	grand := purchase + taxes

	var perUnit Money
	if in.Sticks > 0 {
		perUnit = Round(decimal.NewFromInt(grand).Div(decimal.NewFromInt(int64(in.Sticks))))
	}

	return Breakdown{
		ItemPrice:         in.ItemPrice,
		Shipping:          in.Shipping,
		PurchaseTotal:     purchase,
		AssessedValue:     assessed,
		DutyExempted:      exempt,
		Duty:              duty,
		TotalWeightGrams:  float64(in.Sticks) * in.WeightPerStickGrams,
		TobaccoTax:        tobacco,
		VATNational:       vatNational,
		VATLocal:          vatLocal,
		CustomsFee:        j.CustomsFee,
		TaxesAndFeesTotal: taxes,
		GrandTotal:        grand,
		PerUnitCost:       perUnit,
	}
}
