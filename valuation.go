package holdings

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/etnz/holdings/date"
)

// Concentration grades how much of the portfolio the largest position represents.
type Concentration string

const (
	ConcentrationLow      Concentration = "LOW"
	ConcentrationModerate Concentration = "MODERATE"
	ConcentrationHigh     Concentration = "HIGH"
)

// concentrationOf grades the maximum position weight.
func concentrationOf(max Percent) Concentration {
	switch {
	case max > 40:
		return ConcentrationHigh
	case max > 25:
		return ConcentrationModerate
	default:
		return ConcentrationLow
	}
}

// PositionValue is the valuation of a single position.
type PositionValue struct {
	Symbol    string
	Currency  string
	Sector    string
	Exchange  string
	AssetType string
	Name      string
	Closed    bool

	Shares        Quantity
	AvgCost       Money // position currency
	CostBasis     Money // position currency
	FirstPurchase date.Date
	Price         Money // position currency
	PriceAsOf     time.Time
	MarketValue   Money // position currency

	MarketValueBase Money
	CostBasisBase   Money
	GainLoss        Money // base currency
	GainLossPct     Percent
	Weight          Percent

	// Realized sums the realized gains of priced sells, in position currency.
	Realized Money
}

// Exposure is the share of the portfolio value held in one group.
type Exposure struct {
	Key    string
	Value  Money
	Weight Percent
}

// Valuation is the value of a portfolio on a market.
type Valuation struct {
	Owner        string
	BaseCurrency string
	On           time.Time

	Positions  []PositionValue
	Cash       Money
	CashWeight Percent

	TotalValue       Money // positions and cash
	InvestedValue    Money // positions only
	TotalCostBasis   Money
	TotalGainLoss    Money
	TotalGainLossPct Percent

	Sectors    []Exposure // positions only
	AssetTypes []Exposure // positions only
	Currencies []Exposure // cash counts in base currency

	MaxWeight     Percent
	Concentration Concentration
}

// Position returns the valuation of symbol.
func (v *Valuation) Position(symbol string) (PositionValue, bool) {
	symbol = normalizeSymbol(symbol)
	i := slices.IndexFunc(v.Positions, func(pv PositionValue) bool { return pv.Symbol == symbol })
	if i < 0 {
		return PositionValue{}, false
	}
	return v.Positions[i], true
}

// Valuate computes the value of every position of p using market.
//
// Every open position needs a quote and every currency met needs a rate to
// the base currency. When any is missing the whole valuation fails with an
// IncompleteMarketDataError listing all of them. A nil market holds nothing.
func Valuate(p *Portfolio, market *Market) (*Valuation, error) {
	if market == nil {
		market = NewMarket(time.Time{})
	}
	base := p.BaseCurrency()
	v := &Valuation{
		Owner:          p.Owner(),
		BaseCurrency:   base,
		On:             market.On,
		Cash:           p.Cash(),
		TotalValue:     p.Cash(),
		InvestedValue:  M(0, base),
		TotalCostBasis: M(0, base),
		TotalGainLoss:  M(0, base),
	}

	missing := &IncompleteMarketDataError{}
	convert := func(m Money, to string) (Money, bool) {
		res, err := Convert(m, to, market.Rates)
		if err != nil {
			missing.addRate(m.Currency(), to, err)
			return Money{}, false
		}
		return res, true
	}

	for _, pos := range p.positions {
		h := pos.Aggregate()
		pv := PositionValue{
			Symbol:          pos.Symbol,
			Currency:        pos.Currency,
			Sector:          pos.Sector,
			Exchange:        pos.Exchange,
			AssetType:       pos.AssetType,
			Name:            pos.Name,
			Closed:          pos.IsClosed(),
			Shares:          h.Shares,
			AvgCost:         h.AvgCost,
			CostBasis:       h.CostBasis,
			FirstPurchase:   h.FirstPurchase,
			Price:           M(0, pos.Currency),
			MarketValue:     M(0, pos.Currency),
			MarketValueBase: M(0, base),
			CostBasisBase:   M(0, base),
			GainLoss:        M(0, base),
			Realized:        M(0, pos.Currency),
		}
		for _, r := range p.realized {
			if r.Symbol != pos.Symbol {
				continue
			}
			if gain, ok := convert(r.Gain(), pos.Currency); ok {
				pv.Realized = pv.Realized.Add(gain)
			}
		}
		if pv.Closed {
			v.Positions = append(v.Positions, pv)
			continue
		}

		ok := true
		if q, found := market.Quote(pos.Symbol); !found {
			missing.Symbols = append(missing.Symbols, pos.Symbol)
			ok = false
		} else if price, converted := convert(q.Price, pos.Currency); converted {
			pv.Price, pv.PriceAsOf = price, q.AsOf
		} else {
			ok = false
		}
		costBase, converted := convert(h.CostBasis, base)
		if !converted || !ok {
			v.Positions = append(v.Positions, pv)
			continue
		}

		pv.MarketValue = pv.Price.Mul(h.Shares)
		// same rate as the cost basis, it cannot fail anymore.
		pv.MarketValueBase, _ = convert(pv.MarketValue, base)
		pv.CostBasisBase = costBase
		pv.GainLoss = pv.MarketValueBase.Sub(costBase)
		pv.GainLossPct = ratio(pv.GainLoss, costBase)
		v.Positions = append(v.Positions, pv)
	}

	if len(missing.Symbols) > 0 || len(missing.Rates) > 0 {
		return nil, missing
	}

	for _, pv := range v.Positions {
		v.InvestedValue = v.InvestedValue.Add(pv.MarketValueBase)
		v.TotalCostBasis = v.TotalCostBasis.Add(pv.CostBasisBase)
	}
	v.TotalValue = v.InvestedValue.Add(v.Cash)
	v.TotalGainLoss = v.InvestedValue.Sub(v.TotalCostBasis)
	v.TotalGainLossPct = ratio(v.TotalGainLoss, v.TotalCostBasis)
	v.CashWeight = ratio(v.Cash, v.TotalValue)

	sectors := newGroups(base)
	assets := newGroups(base)
	currencies := newGroups(base)
	if !v.Cash.IsZero() {
		currencies.add(base, v.Cash)
	}
	for i := range v.Positions {
		pv := &v.Positions[i]
		if pv.Closed {
			continue
		}
		pv.Weight = ratio(pv.MarketValueBase, v.TotalValue)
		v.MaxWeight = max(v.MaxWeight, pv.Weight)
		sectors.add(orUnknown(pv.Sector), pv.MarketValueBase)
		assets.add(orUnknown(pv.AssetType), pv.MarketValueBase)
		currencies.add(pv.Currency, pv.MarketValueBase)
	}
	v.Sectors = sectors.exposures(v.TotalValue)
	v.AssetTypes = assets.exposures(v.TotalValue)
	v.Currencies = currencies.exposures(v.TotalValue)
	v.Concentration = concentrationOf(v.MaxWeight)
	return v, nil
}

func (e *IncompleteMarketDataError) addRate(from, to string, err error) {
	key := fmt.Sprintf("%s/%s", from, to)
	var mre *MissingRateError
	if errors.As(err, &mre) && mre.Stale {
		key += " (stale)"
	}
	if !slices.Contains(e.Rates, key) {
		e.Rates = append(e.Rates, key)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// groups sums values by key, remembering the order keys were met.
type groups struct {
	base   string
	keys   []string
	values map[string]Money
}

func newGroups(base string) *groups {
	return &groups{base: base, values: make(map[string]Money)}
}

func (g *groups) add(key string, m Money) {
	if _, ok := g.values[key]; !ok {
		g.keys = append(g.keys, key)
		g.values[key] = M(0, g.base)
	}
	g.values[key] = g.values[key].Add(m)
}

// exposures returns the groups by decreasing value.
func (g *groups) exposures(total Money) []Exposure {
	res := make([]Exposure, 0, len(g.keys))
	for _, k := range g.keys {
		res = append(res, Exposure{Key: k, Value: g.values[k], Weight: ratio(g.values[k], total)})
	}
	slices.SortStableFunc(res, func(a, b Exposure) int {
		return cmp.Or(b.Value.Decimal().Cmp(a.Value.Decimal()), cmp.Compare(a.Key, b.Key))
	})
	return res
}
