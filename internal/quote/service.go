package quote

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/landed-cost/internal/common"
	"github.com/noah-isme/landed-cost/internal/fx"
	"github.com/noah-isme/landed-cost/internal/obs"
	"github.com/noah-isme/landed-cost/internal/pricing"
	"github.com/noah-isme/landed-cost/internal/report"
)

// Error codes returned by the quote service.
const (
	CodeValidation       = "VALIDATION_FAILED"
	CodeFXUnavailable    = "FX_UNAVAILABLE"
	CodeNotConfigured    = "INTERNAL"
	defaultLocalCurrency = "JPY"
)

// Result is a computed quote together with the exchange rate that produced it.
type Result struct {
	Currency      string            `json:"currency"`
	LocalCurrency string            `json:"local_currency"`
	FX            fx.Rate           `json:"fx"`
	Breakdown     pricing.Breakdown `json:"breakdown"`
	Report        report.Report     `json:"report"`
}

// Service validates raw input, resolves the exchange rate and runs the calculator.
// A zero Jurisdiction means DefaultJurisdiction; partial overrides must start
// from pricing.DefaultJurisdiction().
type Service struct {
	Resolver      fx.Resolver
	Jurisdiction  pricing.Jurisdiction
	LocalCurrency string
	Logger        zerolog.Logger
}

// Quote produces a landed-cost quote. Validation failures and FX failures are
// returned as *common.AppError wrapping *ValidationError or *fx.Error; the
// calculator is never invoked in either case.
func (s *Service) Quote(ctx context.Context, raw RawInput) (Result, error) {
	local := s.localCurrency()
	v, err := Validate(raw, local)
	if err != nil {
		recordQuote("invalid")
		return Result{}, validationFailure(err)
	}

	rate, err := s.resolve(ctx, v, local)
	if err != nil {
		recordQuote("fx_error")
		return Result{}, err
	}

	j := s.jurisdiction()
	in, err := Convert(v, rate, j)
	if err != nil {
		recordQuote("invalid")
		return Result{}, validationFailure(err)
	}
	breakdown := pricing.Compute(in)
	recordQuote("ok")
	recordBreakdown(breakdown)
	s.Logger.Debug().
		Str("currency", v.Currency).
		Str("fx_source", rate.Source).
		Int("sticks", v.Sticks).
		Int64("grand_total", breakdown.GrandTotal).
		Bool("duty_exempted", breakdown.DutyExempted).
		Msg("quote_computed")

	return Result{
		Currency:      v.Currency,
		LocalCurrency: local,
		FX:            rate,
		Breakdown:     breakdown,
		Report:        report.New(breakdown, rate, j),
	}, nil
}

// Rate resolves the live rate for currency into the local currency.
func (s *Service) Rate(ctx context.Context, currency string) (fx.Rate, error) {
	code, err := fx.NormalizeCode(currency)
	if err != nil {
		return fx.Rate{}, common.NewAppError(CodeValidation, err.Error(), http.StatusUnprocessableEntity, err)
	}
	return s.resolve(ctx, Validated{Currency: code}, s.localCurrency())
}

func (s *Service) resolve(ctx context.Context, v Validated, local string) (fx.Rate, error) {
	if v.Manual != nil {
		if obs.FXLookupsTotal != nil {
			obs.FXLookupsTotal.WithLabelValues(fx.SourceManual, "ok").Inc()
		}
		return *v.Manual, nil
	}
	if s.Resolver == nil {
		return fx.Rate{}, common.NewAppError(CodeNotConfigured, "exchange rate resolver not configured", http.StatusInternalServerError, nil)
	}
	rate, err := s.Resolver.Resolve(ctx, v.Currency, local)
	if err != nil {
		appErr := common.NewAppError(CodeFXUnavailable, err.Error(), http.StatusBadGateway, err)
		var fxErr *fx.Error
		if errors.As(err, &fxErr) {
			details := map[string]any{"kind": fxErr.Kind, "hint": fx.ManualRateHint}
			if fxErr.Status != 0 {
				details["upstream_status"] = fxErr.Status
			}
			appErr.WithDetails(details)
		}
		return fx.Rate{}, appErr
	}
	return rate, nil
}

func validationFailure(err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return common.NewAppError(CodeValidation, "input validation failed", http.StatusUnprocessableEntity, err).WithDetails(verr.Fields)
	}
	return err
}

func (s *Service) localCurrency() string {
	if s.LocalCurrency == "" {
		return defaultLocalCurrency
	}
	return s.LocalCurrency
}

func (s *Service) jurisdiction() pricing.Jurisdiction {
	if s.Jurisdiction.IsZero() {
		return pricing.DefaultJurisdiction()
	}
	return s.Jurisdiction
}

func recordQuote(result string) {
	if obs.QuotesTotal != nil {
		obs.QuotesTotal.WithLabelValues(result).Inc()
	}
}

func recordBreakdown(b pricing.Breakdown) {
	if obs.DutyExemptTotal != nil {
		decision := "dutiable"
		if b.DutyExempted {
			decision = "exempt"
		}
		obs.DutyExemptTotal.WithLabelValues(decision).Inc()
	}
	if obs.QuoteGrandTotal != nil {
		obs.QuoteGrandTotal.Observe(float64(b.GrandTotal))
	}
}
