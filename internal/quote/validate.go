package quote

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/landed-cost/internal/fx"
	"github.com/noah-isme/landed-cost/internal/pricing"
)

// DefaultCurrency is used when the caller leaves the currency blank.
const DefaultCurrency = "USD"

// Field is a raw user-entered value. It decodes from either a JSON string or a
// JSON number so form posts and API clients share one shape.
type Field string

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = Field(n.String())
	return nil
}

// RawInput holds the purchase form exactly as entered.
type RawInput struct {
	Sticks           Field `json:"sticks"`
	WeightGrams      Field `json:"weight_g"`
	Currency         Field `json:"currency"`
	ItemPriceForeign Field `json:"item_price_foreign"`
	ShippingForeign  Field `json:"shipping_foreign"`
	DutyRate         Field `json:"duty_rate"`
	FXRateManual     Field `json:"fx_rate_manual"`
}

// Validated is a RawInput that passed every check.
type Validated struct {
	Sticks           int
	WeightGrams      float64
	Currency         string
	ItemPriceForeign float64
	ShippingForeign  float64
	DutyRate         float64
	// Manual is set when the caller supplied an exchange-rate override.
	Manual *fx.Rate
}

// FieldError is a single field-level validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a RawInput.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "invalid input: " + strings.Join(msgs, "; ")
}

// Messages returns the field messages in order.
func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Message)
	}
	return out
}

// Upper bounds keep every derived amount inside int64.
const (
	MaxSticks         = 1_000_000
	MaxWeightGrams    = 10_000
	MaxForeignAmount  = 1e15
	MaxDutyRate       = 10
	boundTag          = "lte"
	conversionMessage = "is too large once converted to the local currency"
)

var fieldMessages = map[string]string{
	"sticks":             "sticks must be an integer of at least 1",
	"weight_g":           "weight per stick must be a positive number",
	"currency":           "currency must be a three-letter code",
	"item_price_foreign": "item price is invalid",
	"shipping_foreign":   "shipping cost is invalid",
	"duty_rate":          "duty rate is invalid",
}

var boundMessages = map[string]string{
	"sticks":             "sticks must be at most 1000000",
	"weight_g":           "weight per stick must be at most 10000 g",
	"item_price_foreign": "item price is too large",
	"shipping_foreign":   "shipping cost is too large",
	"duty_rate":          "duty rate must be at most 10",
}

type parsedInput struct {
	Sticks           float64 `json:"sticks" validate:"finite,integral,gte=1,lte=1000000"`
	WeightGrams      float64 `json:"weight_g" validate:"finite,gt=0,lte=10000"`
	Currency         string  `json:"currency" validate:"len=3,alpha"`
	ItemPriceForeign float64 `json:"item_price_foreign" validate:"finite,gte=0,lte=1000000000000000"`
	ShippingForeign  float64 `json:"shipping_foreign" validate:"finite,gte=0,lte=1000000000000000"`
	DutyRate         float64 `json:"duty_rate" validate:"finite,gte=0,lte=10"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		})
		_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		})
		_ = v.RegisterValidation("integral", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return f == math.Trunc(f)
		})
		validate = v
	})
	return validate
}

// Validate parses and range-checks raw input. quoteCurrency is the local
// currency a manual rate converts into. All problems are collected into a
// *ValidationError.
func Validate(raw RawInput, quoteCurrency string) (Validated, error) {
	p := parsedInput{
		Sticks:           parseNumber(raw.Sticks, false),
		WeightGrams:      parseNumber(raw.WeightGrams, false),
		Currency:         strings.ToUpper(strings.TrimSpace(string(raw.Currency))),
		ItemPriceForeign: parseNumber(raw.ItemPriceForeign, true),
		ShippingForeign:  parseNumber(raw.ShippingForeign, true),
		DutyRate:         parseNumber(raw.DutyRate, true),
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}

	var fields []FieldError
	if err := inputValidator().Struct(p); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return Validated{}, err
		}
		seen := map[string]bool{}
		for _, fe := range errs {
			name := fe.Field()
			if seen[name] {
				continue
			}
			seen[name] = true
			msg := fieldMessages[name]
			if fe.Tag() == boundTag {
				msg = boundMessages[name]
			}
			fields = append(fields, FieldError{Field: name, Message: msg})
		}
	}

	out := Validated{
		Sticks:           int(p.Sticks),
		WeightGrams:      p.WeightGrams,
		Currency:         p.Currency,
		ItemPriceForeign: p.ItemPriceForeign,
		ShippingForeign:  p.ShippingForeign,
		DutyRate:         p.DutyRate,
	}
	if manual := strings.TrimSpace(string(raw.FXRateManual)); manual != "" {
		rate, err := fx.Manual(manual, p.Currency, quoteCurrency)
		if err != nil {
			fields = append(fields, FieldError{Field: "fx_rate_manual", Message: err.Error()})
		} else {
			out.Manual = &rate
		}
	}

	if len(fields) > 0 {
		return Validated{}, &ValidationError{Fields: fields}
	}
	return out, nil
}

// Convert turns validated input into a calculator input, converting foreign
// amounts with rate and rounding them to whole local units. A converted amount
// above pricing.MaxAmount is reported as a *ValidationError on its field.
func Convert(v Validated, rate fx.Rate, j pricing.Jurisdiction) (pricing.Input, error) {
	var fields []FieldError
	convert := func(field, label string, amount float64) pricing.Money {
		m, ok := pricing.ConvertWithin(amount, rate.Value)
		if !ok {
			fields = append(fields, FieldError{Field: field, Message: label + " " + conversionMessage})
		}
		return m
	}
	in := pricing.Input{
		Sticks:              v.Sticks,
		WeightPerStickGrams: v.WeightGrams,
		ItemPrice:           convert("item_price_foreign", "item price", v.ItemPriceForeign),
		Shipping:            convert("shipping_foreign", "shipping cost", v.ShippingForeign),
		DutyRate:            v.DutyRate,
		Jurisdiction:        j,
	}
	if len(fields) > 0 {
		return pricing.Input{}, &ValidationError{Fields: fields}
	}
	return in, nil
}

// parseNumber returns NaN for unparseable input so the finite rule reports it.
// Blank optional amounts count as zero.
func parseNumber(f Field, blankIsZero bool) float64 {
	s := strings.TrimSpace(string(f))
	if s == "" {
		if blankIsZero {
			return 0
		}
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
