package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/landed-cost/internal/app"
	"github.com/noah-isme/landed-cost/internal/config"
	"github.com/noah-isme/landed-cost/internal/fx"
	"github.com/noah-isme/landed-cost/internal/obs"
	"github.com/noah-isme/landed-cost/internal/quote"
	"github.com/noah-isme/landed-cost/internal/report"
)

// Exit codes.
const (
	exitOK         = 0
	exitValidation = 1
	exitFX         = 2
	exitUsage      = 64
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, nil))
}

// run executes one quote. A nil resolver builds the live Frankfurter chain
// from the environment.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, resolver fx.Resolver) int {
	fs := flag.NewFlagSet("landedcost", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		sticks   = fs.String("sticks", "", "number of sticks")
		weight   = fs.String("weight", "", "weight per stick in grams")
		currency = fs.String("currency", quote.DefaultCurrency, "currency of the price and shipping")
		price    = fs.String("price", "", "item price in the foreign currency")
		shipping = fs.String("shipping", "", "shipping cost in the foreign currency")
		dutyRate = fs.String("duty-rate", "", "customs duty rate, e.g. 0.1")
		fxRate   = fs.String("fx-rate", "", "manual exchange rate; skips the live lookup")
		format   = fs.String("format", "text", "output format: text or json")
		logLevel = fs.String("log-level", "warn", "log level")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *format != "text" && *format != "json" {
		fmt.Fprintf(stderr, "unknown format %q\n", *format)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitUsage
	}
	logger := obs.NewLoggerTo(stderr, "console", *logLevel).With().Str("cmd", "landedcost").Logger()
	if resolver == nil {
		resolver, _ = app.NewFXResolver(cfg, nil, logger)
	}

	svc := &quote.Service{
		Resolver:      resolver,
		Jurisdiction:  cfg.Jurisdiction,
		LocalCurrency: cfg.LocalCurrency,
		Logger:        logger,
	}
	result, err := svc.Quote(ctx, quote.RawInput{
		Sticks:           quote.Field(*sticks),
		WeightGrams:      quote.Field(*weight),
		Currency:         quote.Field(*currency),
		ItemPriceForeign: quote.Field(*price),
		ShippingForeign:  quote.Field(*shipping),
		DutyRate:         quote.Field(*dutyRate),
		FXRateManual:     quote.Field(strings.TrimSpace(*fxRate)),
	})
	if err != nil {
		_ = report.WriteErrors(stderr, report.Messages(err))
		return exitCode(err, logger)
	}

	if *format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			logger.Error().Err(err).Msg("write result")
			return exitUsage
		}
		return exitOK
	}
	if err := report.WriteText(stdout, result.Report); err != nil {
		logger.Error().Err(err).Msg("write report")
		return exitUsage
	}
	return exitOK
}

func exitCode(err error, logger zerolog.Logger) int {
	var verr *quote.ValidationError
	if errors.As(err, &verr) {
		return exitValidation
	}
	if errors.Is(err, fx.ErrLookupFailed) {
		return exitFX
	}
	logger.Error().Err(err).Msg("quote failed")
	return exitUsage
}
