package fx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/landed-cost/internal/obs"
	"github.com/noah-isme/landed-cost/internal/resilience"
)

// DefaultFrankfurterURL is the public Frankfurter API host.
const DefaultFrankfurterURL = "https://api.frankfurter.dev"

const maxPayloadBytes = 1 << 20

// Doer executes outbound requests. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// HTTPClient returns an http.Client with OpenTelemetry transport instrumentation.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Frankfurter resolves live rates from the Frankfurter API.
type Frankfurter struct {
	BaseURL string
	HTTP    Doer
	Logger  zerolog.Logger
}

type latestPayload struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// Resolve fetches the latest rate for base expressed in quote.
func (f Frankfurter) Resolve(ctx context.Context, base, quote string) (Rate, error) {
	rate, err := f.resolve(ctx, base, quote)
	if obs.FXLookupsTotal != nil {
		source := SourceFrankfurter
		if err == nil && rate.Source == SourceIdentity {
			source = SourceIdentity
		}
		obs.FXLookupsTotal.WithLabelValues(source, lookupResult(err)).Inc()
	}
	if err != nil {
		var fxErr *Error
		evt := f.Logger.Warn().Err(err).Str("base", base).Str("quote", quote)
		if errors.As(err, &fxErr) {
			evt = evt.Str("kind", string(fxErr.Kind)).Int("status", fxErr.Status)
		}
		evt.Msg("fx_lookup_failed")
	}
	return rate, err
}

func (f Frankfurter) resolve(ctx context.Context, base, quote string) (Rate, error) {
	base, err := NormalizeCode(base)
	if err != nil {
		return Rate{}, err
	}
	quote, err = NormalizeCode(quote)
	if err != nil {
		return Rate{}, err
	}
	if base == quote {
		return identity(base, quote), nil
	}
	if f.HTTP == nil {
		return Rate{}, &Error{Kind: KindUnavailable, Detail: "fx client not configured"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint(base, quote), nil)
	if err != nil {
		return Rate{}, &Error{Kind: KindUnavailable, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := f.HTTP.Do(ctx, req)
	if err != nil {
		var statusErr *resilience.StatusError
		if errors.As(err, &statusErr) {
			return Rate{}, &Error{Kind: KindUpstream, Status: statusErr.StatusCode, Err: err}
		}
		return Rate{}, &Error{Kind: KindUnavailable, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Rate{}, &Error{Kind: KindUpstream, Status: resp.StatusCode}
	}

	var payload latestPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes)).Decode(&payload); err != nil {
		return Rate{}, &Error{Kind: KindMalformed, Err: err}
	}
	value, ok := payload.Rates[quote]
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return Rate{}, &Error{Kind: KindRateNotFound, Detail: "FX rate not found"}
	}

	rate := Rate{Base: base, Quote: quote, Value: value, Source: SourceFrankfurter}
	if day, err := time.Parse(time.DateOnly, strings.TrimSpace(payload.Date)); err == nil {
		rate.AsOf = &day
	}
	return rate, nil
}

func (f Frankfurter) endpoint(base, quote string) string {
	host := strings.TrimRight(strings.TrimSpace(f.BaseURL), "/")
	if host == "" {
		host = DefaultFrankfurterURL
	}
	q := url.Values{}
	q.Set("base", base)
	q.Set("symbols", quote)
	return host + "/v1/latest?" + q.Encode()
}

func lookupResult(err error) string {
	if err == nil {
		return "ok"
	}
	var fxErr *Error
	if errors.As(err, &fxErr) {
		return string(fxErr.Kind)
	}
	return "error"
}
