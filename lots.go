package holdings

import (
	"slices"

	"github.com/etnz/holdings/date"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lot represents a single purchase of shares.
//
// A lot keeps the currency it was bought in forever. When it differs from its
// position's currency, FX holds the purchase rate from the lot currency to the
// position currency so the cost basis never depends on today's rates.
type Lot struct {
	ID     uuid.UUID       `json:"id"`
	Date   date.Date       `json:"date"`
	Shares Quantity        `json:"shares"`
	Price  Money           `json:"price"` // per share
	FX     decimal.Decimal `json:"fx"`
	Note   string          `json:"note,omitempty"`
}

// Currency returns the currency the lot was bought in.
func (l Lot) Currency() string { return l.Price.Currency() }

// cost returns the lot cost converted to the position currency at the purchase rate.
func (l Lot) cost(currency string) Money {
	return l.Price.Mul(l.Shares).scale(l.fx(), currency)
}

func (l Lot) fx() decimal.Decimal {
	if l.FX.IsZero() {
		return decimal.NewFromInt(1)
	}
	return l.FX
}

// validate checks the lot invariants against the position currency.
func (l Lot) validate(currency string) error {
	if !l.Shares.IsPositive() {
		return invalid("shares", "must be positive, got %v", l.Shares)
	}
	if !l.Price.IsPositive() {
		return invalid("price", "must be positive, got %v", l.Price.Decimal())
	}
	if err := ValidateCurrency(l.Currency()); err != nil {
		return err
	}
	if l.FX.IsNegative() {
		return invalid("fx", "must be positive, got %v", l.FX)
	}
	if l.Currency() != currency && !l.FX.IsPositive() {
		return invalid("fx", "a %s lot in a %s position needs a purchase rate", l.Currency(), currency)
	}
	return nil
}

// Consumption is the part of a lot removed by a sale.
type Consumption struct {
	Lot    uuid.UUID
	Shares Quantity
	Cost   Money // in position currency
}

// AddLot appends a validated lot to the position, assigning it an ID if it has none.
func (p *Position) AddLot(l Lot) error {
	if err := l.validate(p.Currency); err != nil {
		return err
	}
	if l.Currency() == p.Currency {
		l.FX = decimal.NewFromInt(1)
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if slices.ContainsFunc(p.Lots, func(o Lot) bool { return o.ID == l.ID }) {
		return invalid("lot", "duplicate lot id %s", l.ID)
	}
	p.Lots = append(p.Lots, l)
	return nil
}

// RemoveShares removes shares from the position's lots according to rule.
// ids name the lots to consume, in order, when rule is SpecificLots.
// Lots reaching zero shares are dropped. Nothing changes if an error is returned.
func (p *Position) RemoveShares(shares Quantity, rule MatchingRule, ids ...uuid.UUID) ([]Consumption, error) {
	if !shares.IsPositive() {
		return nil, invalid("shares", "must be positive, got %v", shares)
	}
	held := p.Aggregate().Shares
	if shares.GreaterThan(held) {
		return nil, &InsufficientSharesError{Symbol: p.Symbol, Requested: shares, Held: held}
	}

	order, err := p.matchOrder(rule, ids)
	if err != nil {
		return nil, err
	}

	remaining := slices.Clone(p.Lots)
	var consumed []Consumption
	left := shares
	for _, i := range order {
		if left.IsZero() {
			break
		}
		lot := remaining[i]
		take := lot.Shares.Min(left)
		unit := lot
		unit.Shares = take
		consumed = append(consumed, Consumption{Lot: lot.ID, Shares: take, Cost: unit.cost(p.Currency)})
		remaining[i].Shares = lot.Shares.Sub(take)
		left = left.Sub(take)
	}
	if !left.IsZero() {
		// only possible when the named lots do not hold enough shares.
		return nil, &InsufficientSharesError{Symbol: p.Symbol, Requested: shares, Held: shares.Sub(left)}
	}

	p.Lots = slices.DeleteFunc(remaining, func(l Lot) bool { return l.Shares.IsZero() })
	return consumed, nil
}

// matchOrder returns the indexes of lots in the order they are consumed.
func (p *Position) matchOrder(rule MatchingRule, ids []uuid.UUID) ([]int, error) {
	order := make([]int, len(p.Lots))
	for i := range order {
		order[i] = i
	}
	byDate := func(a, b int) int { return p.Lots[a].Date.Compare(p.Lots[b].Date) }

	switch rule {
	case FIFO, MatchDefault:
		slices.SortStableFunc(order, byDate)
	case LIFO:
		slices.SortStableFunc(order, byDate)
		slices.Reverse(order)
	case SpecificLots:
		if len(ids) == 0 {
			return nil, invalid("lots", "specific lot matching requires lot ids")
		}
		order = order[:0]
		for _, id := range ids {
			i := slices.IndexFunc(p.Lots, func(l Lot) bool { return l.ID == id })
			if i < 0 {
				return nil, invalid("lots", "unknown lot %s in %s", id, p.Symbol)
			}
			if slices.Contains(order, i) {
				return nil, invalid("lots", "lot %s listed twice", id)
			}
			order = append(order, i)
		}
	default:
		return nil, invalid("rule", "unknown matching rule %v", rule)
	}
	return order, nil
}

// lot returns the index of the lot with the given id.
func (p *Position) lot(id uuid.UUID) (int, error) {
	i := slices.IndexFunc(p.Lots, func(l Lot) bool { return l.ID == id })
	if i < 0 {
		return 0, invalid("lot", "unknown lot %s in %s", id, p.Symbol)
	}
	return i, nil
}
