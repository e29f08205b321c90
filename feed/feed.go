// Package feed decodes market files: the quotes and exchange rates produced
// by whatever tool fetches market data, in a form holdings can value with.
//
// A market file looks like:
//
//	{
//	  "on": "2024-03-01T16:00:00Z",
//	  "quotes": {"AAPL": {"price": "185.00", "currency": "USD"}},
//	  "rates": [{"from": "EUR", "to": "USD", "rate": "1.0842"}],
//	  "extracts": [{"symbol": "ASML", "currency": "EUR", "file": "asml.json", "path": "$.last"}]
//	}
//
// Extracts read a price out of a raw provider document saved next to the
// market file, using a JSONPath expression. Nothing here performs network I/O.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/etnz/holdings"
	"github.com/shopspring/decimal"
)

// Quote is a quote entry of a market file.
type Quote struct {
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	AsOf     time.Time       `json:"as_of,omitzero"`
}

// Rate is an exchange rate entry of a market file.
type Rate struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
	AsOf time.Time       `json:"as_of,omitzero"`
}

// Extract locates the price of Symbol in a provider document.
type Extract struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
	File     string `json:"file"` // relative to the market file
	Path     string `json:"path"` // JSONPath expression
}

// File is the content of a market file.
type File struct {
	On       time.Time        `json:"on"`
	Quotes   map[string]Quote `json:"quotes,omitempty"`
	Rates    []Rate           `json:"rates,omitempty"`
	Extracts []Extract        `json:"extracts,omitempty"`
}

// Decode reads a market file.
func Decode(r io.Reader) (*File, error) {
	var f File
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("invalid market file: %w", err)
	}
	return &f, nil
}

// Encode writes a market file, symbols sorted.
func (f *File) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

// Open reads the market file at path.
func Open(path string) (*File, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Decode(r)
}

// Save writes the market file at path.
func (f *File) Save(path string) error {
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Encode(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// SetQuote records the price of symbol, replacing any previous quote.
func (f *File) SetQuote(symbol string, price holdings.Money, asOf time.Time) {
	if f.Quotes == nil {
		f.Quotes = make(map[string]Quote)
	}
	f.Quotes[symbol] = Quote{Price: price.Decimal(), Currency: price.Currency(), AsOf: asOf}
}

// SetRate records a rate, replacing any previous rate for the same pair.
func (f *File) SetRate(r Rate) {
	i := slices.IndexFunc(f.Rates, func(e Rate) bool { return e.From == r.From && e.To == r.To })
	if i < 0 {
		f.Rates = append(f.Rates, r)
		return
	}
	f.Rates[i] = r
}

// Market builds the holdings market of the file. Extract files are resolved
// relative to dir.
//
// A symbol or rate that cannot be read does not stop the others: the market is
// always returned, along with the joined errors. Valuating a portfolio holding
// a failed symbol then reports it as missing.
func (f *File) Market(dir string) (*holdings.Market, error) {
	m := holdings.NewMarket(f.On)
	var errs []error
	for _, symbol := range slices.Sorted(maps.Keys(f.Quotes)) {
		q := f.Quotes[symbol]
		if err := m.SetQuote(symbol, holdings.M(q.Price, q.Currency), orOn(q.AsOf, f.On)); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range f.Extracts {
		price, err := ExtractFile(filepath.Join(dir, e.File), e.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Symbol, err))
			continue
		}
		if err := m.SetQuote(e.Symbol, holdings.M(price, e.Currency), f.On); err != nil {
			errs = append(errs, err)
		}
	}
	for _, r := range f.Rates {
		err := m.AddRate(holdings.Rate{From: r.From, To: r.To, Rate: r.Rate, AsOf: orOn(r.AsOf, f.On)})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return m, errors.Join(errs...)
}

// Load reads the market file at path and builds its market.
func Load(path string) (*holdings.Market, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	return f.Market(filepath.Dir(path))
}

func orOn(t, on time.Time) time.Time {
	if t.IsZero() {
		return on
	}
	return t
}
