// Package report renders computed quotes and input errors for display.
package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/landed-cost/internal/fx"
	"github.com/noah-isme/landed-cost/internal/pricing"
)

// Exemption labels.
const (
	LabelExempt   = "exempt (duty only)"
	LabelDutiable = "dutiable"
)

// Line is a single labelled value.
type Line struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Total bool   `json:"total,omitempty"`
}

// Section groups lines under a heading.
type Section struct {
	Title string `json:"title"`
	Lines []Line `json:"lines"`
}

// Report is the display model of a single quote.
type Report struct {
	Title    string    `json:"title"`
	RateLine string    `json:"rate_line"`
	Sections []Section `json:"sections"`
}

// New builds the display model for b, computed with rate under jurisdiction j.
func New(b pricing.Breakdown, rate fx.Rate, j pricing.Jurisdiction) Report {
	if j.IsZero() {
		j = pricing.DefaultJurisdiction()
	}
	local := rate.Quote
	amount := func(v pricing.Money) string {
		return humanize.Comma(v) + " " + local
	}
	exempt := LabelDutiable
	if b.DutyExempted {
		exempt = LabelExempt
	}

	return Report{
		Title:    "Landed cost estimate",
		RateLine: RateLine(rate),
		Sections: []Section{
			{
				Title: "Purchase",
				Lines: []Line{
					{Label: "Item price", Value: amount(b.ItemPrice)},
					{Label: "Shipping", Value: amount(b.Shipping)},
					{Label: "Purchase total", Value: amount(b.PurchaseTotal), Total: true},
				},
			},
			{
				Title: "Customs basis",
				Lines: []Line{
					{Label: fmt.Sprintf("Assessed value (x%s)", ratio(j.AssessedRatio)), Value: amount(b.AssessedValue)},
					{Label: "Duty exemption", Value: exempt},
				},
			},
			{
				Title: "Breakdown",
				Lines: []Line{
					{Label: "Customs duty", Value: amount(b.Duty)},
					{Label: "Tobacco tax (by weight)", Value: fmt.Sprintf("%s (total weight %s g)", amount(b.TobaccoTax), strconv.FormatFloat(b.TotalWeightGrams, 'f', 1, 64))},
					{Label: fmt.Sprintf("National consumption tax (%s)", percent(j.VATNationalRate)), Value: amount(b.VATNational)},
					{Label: fmt.Sprintf("Local consumption tax (%s)", percent(j.VATLocalRate)), Value: amount(b.VATLocal)},
					{Label: "Customs fee", Value: amount(b.CustomsFee)},
					{Label: "Taxes and fees", Value: amount(b.TaxesAndFeesTotal)},
					{Label: "Grand total", Value: amount(b.GrandTotal), Total: true},
					{Label: "Per stick", Value: amount(b.PerUnitCost) + " / stick"},
				},
			},
		},
	}
}

// RateLine formats the exchange rate used for a quote, e.g.
// "157.2100 JPY / 1 USD (frankfurter, 2025-01-02)".
func RateLine(rate fx.Rate) string {
	source := rate.Source
	if rate.AsOf != nil {
		source += ", " + rate.AsOf.Format("2006-01-02")
	}
	return fmt.Sprintf("%.4f %s / 1 %s (%s)", rate.Value, rate.Quote, rate.Base, source)
}

// WriteText writes r as an aligned plain-text report.
func WriteText(w io.Writer, r Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", r.Title)
	fmt.Fprintf(tw, "Exchange rate\t%s\n", r.RateLine)
	for _, s := range r.Sections {
		fmt.Fprintf(tw, "\n[%s]\n", s.Title)
		for _, l := range s.Lines {
			label := l.Label
			if l.Total {
				label = "* " + label
			}
			fmt.Fprintf(tw, "%s\t%s\n", label, l.Value)
		}
	}
	return tw.Flush()
}

// WriteErrors writes the input error panel. An empty list writes nothing.
func WriteErrors(w io.Writer, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("Input errors\n")
	for _, e := range errs {
		sb.WriteString("  - ")
		sb.WriteString(e)
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Messages flattens err into display strings. Errors exposing a Messages
// method contribute each message; anything else contributes its text.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var multi interface{ Messages() []string }
	if errors.As(err, &multi) {
		return multi.Messages()
	}
	return []string{err.Error()}
}

func percent(rate float64) string {
	return decimal.NewFromFloat(rate).Shift(2).String() + "%"
}

func ratio(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
