package holdings

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/etnz/holdings/date"
)

// Portfolio is the set of positions and the cash balance of one owner.
//
// Its state only changes through Apply. Accessors return copies.
type Portfolio struct {
	owner     string
	base      string
	cash      Money
	positions []Position // unique symbols, in opening order
	realized  []Realization
}

// Realization records the outcome of a priced sell, in the position currency.
type Realization struct {
	Symbol   string    `json:"symbol"`
	Date     date.Date `json:"date"`
	Shares   Quantity  `json:"shares"`
	Proceeds Money     `json:"proceeds"`
	Cost     Money     `json:"cost"`
}

// Gain is the realized profit or loss.
func (r Realization) Gain() Money { return r.Proceeds.Sub(r.Cost) }

// New returns an empty portfolio for owner, reporting in base, starting with cash.
// A cash amount without currency is taken in base currency.
func New(owner, base string, cash Money) (*Portfolio, error) {
	if owner == "" {
		return nil, invalid("owner", "must not be empty")
	}
	base, err := ParseCurrency(base)
	if err != nil {
		return nil, err
	}
	if cash.Currency() == "" {
		cash = M(cash.Decimal(), base)
	}
	if cash.Currency() != base {
		return nil, invalid("cash", "must be in %s, got %s", base, cash.Currency())
	}
	if cash.IsNegative() {
		return nil, invalid("cash", "must not be negative, got %v", cash)
	}
	return &Portfolio{owner: owner, base: base, cash: cash}, nil
}

func (p *Portfolio) Owner() string        { return p.owner }
func (p *Portfolio) BaseCurrency() string { return p.base }
func (p *Portfolio) Cash() Money          { return p.cash }

// Positions returns a copy of every position, open or closed, in opening order.
func (p *Portfolio) Positions() []Position {
	res := make([]Position, len(p.positions))
	for i, pos := range p.positions {
		res[i] = pos.clone()
	}
	return res
}

// Position returns a copy of the position for symbol.
func (p *Portfolio) Position(symbol string) (Position, bool) {
	i := p.index(symbol)
	if i < 0 {
		return Position{}, false
	}
	return p.positions[i].clone(), true
}

// Realizations returns the realized gains recorded by priced sells, optionally
// restricted to some symbols.
func (p *Portfolio) Realizations(symbols ...string) []Realization {
	if len(symbols) == 0 {
		return slices.Clone(p.realized)
	}
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[normalizeSymbol(s)] = true
	}
	var res []Realization
	for _, r := range p.realized {
		if want[r.Symbol] {
			res = append(res, r)
		}
	}
	return res
}

// realizedCurrency returns the currency of the realizations of symbol, empty if none.
func (p *Portfolio) realizedCurrency(symbol string) string {
	for _, r := range slices.Backward(p.realized) {
		if r.Symbol == symbol {
			return r.Proceeds.Currency()
		}
	}
	return ""
}

// Clone returns a deep copy of the portfolio.
func (p *Portfolio) Clone() *Portfolio {
	c := *p
	c.positions = make([]Position, len(p.positions))
	for i, pos := range p.positions {
		c.positions[i] = pos.clone()
	}
	c.realized = slices.Clone(p.realized)
	return &c
}

// Apply applies transactions in order. Either all of them succeed or the
// portfolio is left untouched.
func (p *Portfolio) Apply(cfg Config, txs ...Transaction) error {
	c := p.Clone()
	for i, tx := range txs {
		if err := tx.apply(c, cfg); err != nil {
			return fmt.Errorf("transaction #%d (%s): %w", i+1, tx.What(), err)
		}
	}
	*p = *c
	return nil
}

func (p *Portfolio) index(symbol string) int {
	symbol = normalizeSymbol(symbol)
	return slices.IndexFunc(p.positions, func(pos Position) bool { return pos.Symbol == symbol })
}

// position returns the live position for symbol.
func (p *Portfolio) position(symbol string) (*Position, error) {
	i := p.index(symbol)
	if i < 0 {
		return nil, &PositionNotFoundError{Symbol: normalizeSymbol(symbol)}
	}
	return &p.positions[i], nil
}

func (p *Portfolio) remove(symbol string) {
	if i := p.index(symbol); i >= 0 {
		p.positions = slices.Delete(p.positions, i, i+1)
	}
}

type jportfolio struct {
	Owner        string        `json:"owner"`
	BaseCurrency string        `json:"base_currency"`
	Cash         Money         `json:"cash"`
	Positions    []Position    `json:"positions"`
	Realized     []Realization `json:"realized,omitempty"`
}

// MarshalJSON encodes the full portfolio state.
func (p *Portfolio) MarshalJSON() ([]byte, error) {
	return json.Marshal(jportfolio{
		Owner:        p.owner,
		BaseCurrency: p.base,
		Cash:         p.cash,
		Positions:    p.positions,
		Realized:     p.realized,
	})
}

// UnmarshalJSON decodes and validates a portfolio encoded by MarshalJSON.
func (p *Portfolio) UnmarshalJSON(data []byte) error {
	var j jportfolio
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	q, err := New(j.Owner, j.BaseCurrency, j.Cash)
	if err != nil {
		return err
	}
	for _, pos := range j.Positions {
		pos.Symbol = normalizeSymbol(pos.Symbol)
		if q.index(pos.Symbol) >= 0 {
			return invalid("symbol", "duplicate position %q", pos.Symbol)
		}
		lots := pos.Lots
		pos.Lots = nil
		for _, l := range lots {
			if err := pos.AddLot(l); err != nil {
				return fmt.Errorf("position %s: %w", pos.Symbol, err)
			}
		}
		q.positions = append(q.positions, pos)
	}
	q.realized = j.Realized
	*p = *q
	return nil
}
