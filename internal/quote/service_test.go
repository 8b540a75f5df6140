package quote_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/landed-cost/internal/common"
	"github.com/noah-isme/landed-cost/internal/fx"
	"github.com/noah-isme/landed-cost/internal/obs"
	"github.com/noah-isme/landed-cost/internal/pricing"
	"github.com/noah-isme/landed-cost/internal/quote"
)

type stubResolver struct {
	calls int
	value float64
	err   error
}

func (s *stubResolver) Resolve(_ context.Context, base, q string) (fx.Rate, error) {
	s.calls++
	if s.err != nil {
		return fx.Rate{}, s.err
	}
	return fx.Rate{Base: base, Quote: q, Value: s.value, Source: fx.SourceFrankfurter}, nil
}

func newService(r fx.Resolver) *quote.Service {
	obs.MustRegisterDomainMetrics("landedcost_test", prometheus.NewRegistry())
	return &quote.Service{Resolver: r, LocalCurrency: "JPY", Logger: zerolog.Nop()}
}

func TestServiceQuoteUsesResolvedRate(t *testing.T) {
	res := &stubResolver{value: 100}
	svc := newService(res)
	before := testutil.ToFloat64(obs.QuotesTotal.WithLabelValues("ok"))
	exemptBefore := testutil.ToFloat64(obs.DutyExemptTotal.WithLabelValues("exempt"))

	result, err := svc.Quote(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, 1, res.calls)
	require.Equal(t, "USD", result.Currency)
	require.Equal(t, "JPY", result.LocalCurrency)
	require.Equal(t, 100.0, result.FX.Value)
	require.Equal(t, pricing.Money(5000), result.Breakdown.ItemPrice)
	require.Equal(t, pricing.Money(1000), result.Breakdown.Shipping)
	require.Equal(t, pricing.Money(9609), result.Breakdown.GrandTotal)
	require.Equal(t, pricing.Money(48), result.Breakdown.PerUnitCost)
	require.True(t, result.Breakdown.DutyExempted)

	require.Equal(t, before+1, testutil.ToFloat64(obs.QuotesTotal.WithLabelValues("ok")))
	require.Equal(t, exemptBefore+1, testutil.ToFloat64(obs.DutyExemptTotal.WithLabelValues("exempt")))
}

func TestServiceQuoteManualRateSkipsResolver(t *testing.T) {
	res := &stubResolver{err: errors.New("must not be called")}
	svc := newService(res)
	before := testutil.ToFloat64(obs.FXLookupsTotal.WithLabelValues(fx.SourceManual, "ok"))

	raw := validInput()
	raw.FXRateManual = "150"
	result, err := svc.Quote(context.Background(), raw)
	require.NoError(t, err)
	require.Zero(t, res.calls)
	require.Equal(t, fx.SourceManual, result.FX.Source)
	require.Equal(t, pricing.Money(7500), result.Breakdown.ItemPrice)
	require.Equal(t, pricing.Money(1500), result.Breakdown.Shipping)
	require.Equal(t, before+1, testutil.ToFloat64(obs.FXLookupsTotal.WithLabelValues(fx.SourceManual, "ok")))
}

func TestServiceQuoteValidationFailure(t *testing.T) {
	res := &stubResolver{value: 100}
	svc := newService(res)

	raw := validInput()
	raw.Sticks = "0"
	_, err := svc.Quote(context.Background(), raw)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, quote.CodeValidation, appErr.Code)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	var verr *quote.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "sticks", verr.Fields[0].Field)
	require.Zero(t, res.calls)
}

func TestServiceQuoteRejectsAmountsThatOverflow(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*quote.RawInput)
		field  string
	}{
		{"price beyond bound", func(r *quote.RawInput) { r.ItemPriceForeign = "1e17" }, "item_price_foreign"},
		{"price overflowing after conversion", func(r *quote.RawInput) { r.ItemPriceForeign = "1e14" }, "item_price_foreign"},
		{"weight beyond bound", func(r *quote.RawInput) { r.WeightGrams = "1e20" }, "weight_g"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newService(&stubResolver{err: errors.New("must not be called")})
			before := testutil.ToFloat64(obs.QuotesTotal.WithLabelValues("invalid"))

			raw := validInput()
			raw.FXRateManual = "150"
			tc.mutate(&raw)
			result, err := svc.Quote(context.Background(), raw)

			var appErr *common.AppError
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
			var verr *quote.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Fields[0].Field)
			require.Zero(t, result.Breakdown.GrandTotal)
			require.Equal(t, before+1, testutil.ToFloat64(obs.QuotesTotal.WithLabelValues("invalid")))
		})
	}
}

func TestServiceQuoteLargestAcceptedInputStaysPositive(t *testing.T) {
	svc := newService(&stubResolver{value: 1})
	raw := quote.RawInput{
		Sticks:           "1000000",
		WeightGrams:      "10000",
		ItemPriceForeign: "1e15",
		ShippingForeign:  "0",
		DutyRate:         "10",
	}
	result, err := svc.Quote(context.Background(), raw)
	require.NoError(t, err)
	b := result.Breakdown
	require.Equal(t, pricing.MaxAmount, b.ItemPrice)
	require.Positive(t, b.Duty)
	require.Positive(t, b.TobaccoTax)
	require.Greater(t, b.GrandTotal, b.PurchaseTotal)
	require.Positive(t, b.PerUnitCost)
}

func TestServiceQuoteFXFailure(t *testing.T) {
	res := &stubResolver{err: &fx.Error{Kind: fx.KindUpstream, Status: http.StatusServiceUnavailable}}
	svc := newService(res)
	before := testutil.ToFloat64(obs.QuotesTotal.WithLabelValues("fx_error"))

	_, err := svc.Quote(context.Background(), validInput())

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, quote.CodeFXUnavailable, appErr.Code)
	require.Equal(t, http.StatusBadGateway, appErr.HTTPStatus)
	require.ErrorIs(t, err, fx.ErrLookupFailed)
	require.Contains(t, appErr.Error(), fx.ManualRateHint)
	require.Contains(t, appErr.Error(), "FX API error: 503")
	details, ok := appErr.Details.(map[string]any)
	require.True(t, ok)
	require.Equal(t, fx.KindUpstream, details["kind"])
	require.Equal(t, http.StatusServiceUnavailable, details["upstream_status"])
	require.Equal(t, before+1, testutil.ToFloat64(obs.QuotesTotal.WithLabelValues("fx_error")))
}

func TestServiceQuoteCustomJurisdiction(t *testing.T) {
	svc := newService(&stubResolver{value: 1})
	j := pricing.DefaultJurisdiction()
	j.CustomsFee = 0
	svc.Jurisdiction = j

	raw := validInput()
	raw.ItemPriceForeign = "5000"
	raw.ShippingForeign = "1000"
	result, err := svc.Quote(context.Background(), raw)
	require.NoError(t, err)
	require.Zero(t, result.Breakdown.CustomsFee)
	require.Equal(t, pricing.Money(9409), result.Breakdown.GrandTotal)
}

func TestServiceRate(t *testing.T) {
	svc := newService(&stubResolver{value: 157.21})

	rate, err := svc.Rate(context.Background(), "eur")
	require.NoError(t, err)
	require.Equal(t, "EUR", rate.Base)
	require.Equal(t, "JPY", rate.Quote)

	_, err = svc.Rate(context.Background(), "euro")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
}
