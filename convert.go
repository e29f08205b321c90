package holdings

import (
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Rate is the price of one unit of From expressed in To.
type Rate struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
	AsOf time.Time       `json:"as_of"`
}

type pair struct{ from, to string }

// Rates is a table of exchange rates supplied by the caller.
//
// The zero value is an empty table. It never derives a cross rate through a
// third currency: callers wanting one must add it to the table.
type Rates struct {
	// On is the instant rates are checked against. Staleness is not checked when
	// On is zero or MaxAge is not positive.
	On     time.Time
	MaxAge time.Duration
	table  map[pair]Rate
}

// NewRates builds a table from rates.
func NewRates(rates ...Rate) (Rates, error) {
	var r Rates
	for _, rate := range rates {
		if err := r.Add(rate); err != nil {
			return Rates{}, err
		}
	}
	return r, nil
}

// MustRates is like NewRates but panics on invalid rates.
func MustRates(rates ...Rate) Rates {
	r, err := NewRates(rates...)
	if err != nil {
		panic(err)
	}
	return r
}

// Add inserts or replaces the rate for its currency pair.
func (r *Rates) Add(rate Rate) error {
	for _, code := range []string{rate.From, rate.To} {
		if err := ValidateCurrency(code); err != nil {
			return err
		}
	}
	if rate.From == rate.To {
		return invalid("rate", "%s/%s is not a currency pair", rate.From, rate.To)
	}
	if !rate.Rate.IsPositive() {
		return invalid("rate", "%s/%s must be positive, got %v", rate.From, rate.To, rate.Rate)
	}
	if r.table == nil {
		r.table = make(map[pair]Rate)
	}
	r.table[pair{rate.From, rate.To}] = rate
	return nil
}

// Len returns the number of rates in the table.
func (r Rates) Len() int { return len(r.table) }

// All returns the rates in the table, in no particular order.
func (r Rates) All() []Rate {
	return slices.Collect(maps.Values(r.table))
}

// Within returns a copy of the table that rejects rates older than maxAge at on.
func (r Rates) Within(on time.Time, maxAge time.Duration) Rates {
	r.On, r.MaxAge = on, maxAge
	return r
}

// Rate returns the multiplier converting from into to.
//
// It is 1 for identical currencies, else the direct rate, else the inverse of
// the reverse rate.
func (r Rates) Rate(from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := r.table[pair{from, to}]; ok {
		if err := r.fresh(rate, from, to); err != nil {
			return decimal.Decimal{}, err
		}
		return rate.Rate, nil
	}
	if rate, ok := r.table[pair{to, from}]; ok {
		if err := r.fresh(rate, from, to); err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromInt(1).Div(rate.Rate), nil
	}
	return decimal.Decimal{}, &MissingRateError{From: from, To: to}
}

func (r Rates) fresh(rate Rate, from, to string) error {
	if r.MaxAge <= 0 || r.On.IsZero() {
		return nil
	}
	if r.On.Sub(rate.AsOf) > r.MaxAge {
		return &MissingRateError{From: from, To: to, Stale: true, AsOf: rate.AsOf}
	}
	return nil
}

// Convert converts amount into currency to using rates.
func Convert(amount Money, to string, rates Rates) (Money, error) {
	if amount.Currency() == to || amount.Currency() == "" {
		return Money{value: amount.value, cur: to}, nil
	}
	rate, err := rates.Rate(amount.Currency(), to)
	if err != nil {
		return Money{}, err
	}
	return amount.scale(rate, to), nil
}
