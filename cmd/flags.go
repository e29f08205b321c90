package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/etnz/holdings"
	"github.com/etnz/holdings/date"
	"github.com/shopspring/decimal"
)

// rateFlag collects exchange rates given as FROM/TO=RATE, for instance EUR/USD=1.0842.
type rateFlag struct {
	rates []holdings.Rate
}

func (r *rateFlag) String() string {
	parts := make([]string, 0, len(r.rates))
	for _, rate := range r.rates {
		parts = append(parts, fmt.Sprintf("%s/%s=%s", rate.From, rate.To, rate.Rate))
	}
	return strings.Join(parts, ",")
}

func (r *rateFlag) Set(s string) error {
	rate, err := parseRate(s)
	if err != nil {
		return err
	}
	r.rates = append(r.rates, rate)
	return nil
}

// Rates returns the collected rates as a table.
func (r *rateFlag) Rates() (holdings.Rates, error) {
	return holdings.NewRates(r.rates...)
}

func parseRate(s string) (holdings.Rate, error) {
	pair, value, ok := strings.Cut(s, "=")
	if !ok {
		return holdings.Rate{}, fmt.Errorf("invalid rate %q, want FROM/TO=RATE", s)
	}
	from, to, ok := strings.Cut(pair, "/")
	if !ok {
		return holdings.Rate{}, fmt.Errorf("invalid rate %q, want FROM/TO=RATE", s)
	}
	v, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return holdings.Rate{}, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	return holdings.Rate{
		From: strings.ToUpper(strings.TrimSpace(from)),
		To:   strings.ToUpper(strings.TrimSpace(to)),
		Rate: v,
		AsOf: time.Now(),
	}, nil
}

// parseDay parses a transaction date, today when empty.
func parseDay(s string) (date.Date, error) {
	if s == "" {
		return date.Today(), nil
	}
	return date.Parse(s)
}

// parseAmount parses an amount in currency. An empty currency falls back to def.
func parseAmount(amount, currency, def string) (holdings.Money, error) {
	if currency == "" {
		currency = def
	}
	cur, err := holdings.ParseCurrency(currency)
	if err != nil {
		return holdings.Money{}, err
	}
	return holdings.ParseMoney(amount, cur)
}
