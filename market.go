package holdings

import (
	"maps"
	"slices"
	"time"
)

// Quote is the last known price of a symbol.
type Quote struct {
	Price Money     `json:"price"`
	AsOf  time.Time `json:"as_of"`
}

// Market holds the quotes and exchange rates a valuation is computed with.
type Market struct {
	On     time.Time
	quotes map[string]Quote
	Rates  Rates
}

// NewMarket returns an empty market at instant on.
func NewMarket(on time.Time) *Market {
	return &Market{On: on, quotes: make(map[string]Quote)}
}

// SetQuote records the price of symbol.
func (m *Market) SetQuote(symbol string, price Money, asOf time.Time) error {
	if !price.IsPositive() {
		return invalid("price", "%s quote must be positive, got %v", symbol, price.Decimal())
	}
	if err := ValidateCurrency(price.Currency()); err != nil {
		return err
	}
	if m.quotes == nil {
		m.quotes = make(map[string]Quote)
	}
	m.quotes[normalizeSymbol(symbol)] = Quote{Price: price, AsOf: asOf}
	return nil
}

// AddRate records an exchange rate.
func (m *Market) AddRate(r Rate) error { return m.Rates.Add(r) }

// Quote returns the price of symbol.
func (m *Market) Quote(symbol string) (Quote, bool) {
	q, ok := m.quotes[normalizeSymbol(symbol)]
	return q, ok
}

// Symbols returns the quoted symbols, sorted.
func (m *Market) Symbols() []string {
	return slices.Sorted(maps.Keys(m.quotes))
}
