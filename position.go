package holdings

import (
	"slices"

	"github.com/etnz/holdings/date"
)

// Position is the set of lots held for one symbol, with its descriptive tags.
type Position struct {
	Symbol string `json:"symbol"`
	// Currency is the currency the position is valued and its cost basis expressed in.
	Currency  string `json:"currency"`
	Sector    string `json:"sector,omitempty"`
	Exchange  string `json:"exchange,omitempty"`
	AssetType string `json:"asset_type,omitempty"`
	ISIN      string `json:"isin,omitempty"`
	Name      string `json:"name,omitempty"`
	Note      string `json:"note,omitempty"`
	Lots      []Lot  `json:"lots"`
}

// Holding is the aggregate view of a position, always recomputed from its lots.
type Holding struct {
	Shares        Quantity
	CostBasis     Money // in position currency
	AvgCost       Money // CostBasis / Shares, zero when no share is held
	FirstPurchase date.Date
}

// Aggregate derives the holding from the current lots.
//
// The average cost is weighted by shares and therefore independent of the order
// lots were bought in. A position without lots aggregates to the empty holding.
func (p Position) Aggregate() Holding {
	h := Holding{
		Shares:    Q(0),
		CostBasis: M(0, p.Currency),
		AvgCost:   M(0, p.Currency),
	}
	for _, l := range p.Lots {
		h.Shares = h.Shares.Add(l.Shares)
		h.CostBasis = h.CostBasis.Add(l.cost(p.Currency))
		if h.FirstPurchase.IsZero() || l.Date.Before(h.FirstPurchase) {
			h.FirstPurchase = l.Date
		}
	}
	if !h.Shares.IsZero() {
		h.AvgCost = h.CostBasis.Div(h.Shares)
	}
	return h
}

// IsClosed reports whether the position holds no share.
func (p Position) IsClosed() bool { return len(p.Lots) == 0 }

func (p Position) clone() Position {
	p.Lots = slices.Clone(p.Lots)
	return p
}
