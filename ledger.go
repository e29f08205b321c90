package holdings

import (
	"cmp"
	"fmt"

	"github.com/etnz/holdings/date"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommandType is a typed string for identifying transactions.
type CommandType string

// Command types used for identifying transactions.
const (
	CmdBuy      CommandType = "buy"
	CmdSell     CommandType = "sell"
	CmdModify   CommandType = "modify"
	CmdDeposit  CommandType = "deposit"
	CmdWithdraw CommandType = "withdraw"
)

// Transaction is an operation changing a Portfolio. Transactions are applied
// with Portfolio.Apply.
type Transaction interface {
	What() CommandType // What returns the command type of the transaction (e.g., "buy", "sell").
	When() date.Date   // When returns the date on which the transaction occurred.
	apply(p *Portfolio, cfg Config) error
}

// Buy adds a lot to a position, opening the position if needed.
type Buy struct {
	Date   date.Date
	Symbol string
	Shares Quantity
	Price  Money // per share, its currency is the lot currency
	Note   string

	// Descriptive tags used only when the buy opens the position.
	// Currency defaults to the price currency.
	Currency  string
	Sector    string
	Exchange  string
	AssetType string
	ISIN      string
	Name      string

	// Funded debits the cost, converted to base currency, from cash.
	Funded bool
	// Rates converts the price into the position and base currencies when they differ.
	Rates Rates
}

// NewBuy returns an unfunded buy of shares of symbol at price.
func NewBuy(day date.Date, symbol string, shares Quantity, price Money) Buy {
	return Buy{Date: day, Symbol: symbol, Shares: shares, Price: price}
}

func (t Buy) What() CommandType { return CmdBuy }
func (t Buy) When() date.Date   { return t.Date }

func (t Buy) apply(p *Portfolio, cfg Config) error {
	symbol := normalizeSymbol(t.Symbol)
	if symbol == "" {
		return invalid("symbol", "must not be empty")
	}
	pos, err := p.position(symbol)
	if err != nil {
		// a symbol sold and removed before keeps the currency of its realizations.
		previous := p.realizedCurrency(symbol)
		currency := t.Currency
		if currency == "" {
			currency = cmp.Or(previous, t.Price.Currency())
		}
		if currency, err = ParseCurrency(currency); err != nil {
			return err
		}
		if previous != "" && currency != previous {
			return invalid("currency", "%s has realized gains in %s, cannot reopen it in %s", symbol, previous, currency)
		}
		p.positions = append(p.positions, Position{
			Symbol:    symbol,
			Currency:  currency,
			Sector:    t.Sector,
			Exchange:  t.Exchange,
			AssetType: t.AssetType,
			ISIN:      t.ISIN,
			Name:      t.Name,
		})
		pos = &p.positions[len(p.positions)-1]
	}

	price := inCurrency(t.Price, pos.Currency)
	lot := Lot{Date: t.Date, Shares: t.Shares, Price: price, Note: t.Note}
	if lot.Date.IsZero() {
		lot.Date = date.Today()
	}
	if price.IsPositive() && price.Currency() != pos.Currency {
		if lot.FX, err = t.Rates.Rate(price.Currency(), pos.Currency); err != nil {
			return err
		}
	}
	if err := pos.AddLot(lot); err != nil {
		return err
	}

	if t.Funded {
		cost, err := Convert(price.Mul(t.Shares), p.base, t.Rates)
		if err != nil {
			return err
		}
		if err := p.debit(cost); err != nil {
			return err
		}
	}
	return nil
}

// Sell removes shares from a position.
type Sell struct {
	Date   date.Date
	Symbol string
	Shares Quantity
	// Price is the optional sale price per share. When set, the sale is recorded
	// as a Realization.
	Price Money
	// Rule selects the lots to consume, Config.Matching when MatchDefault.
	Rule MatchingRule
	// Lots names the lots consumed by SpecificLots, in order.
	Lots []uuid.UUID
	// Settle credits the proceeds, converted to base currency, to cash. It requires a Price.
	Settle bool
	// Rates converts the price into the position and base currencies when they differ.
	Rates Rates
}

// NewSell returns an unpriced sell of shares of symbol.
func NewSell(day date.Date, symbol string, shares Quantity) Sell {
	return Sell{Date: day, Symbol: symbol, Shares: shares}
}

func (t Sell) What() CommandType { return CmdSell }
func (t Sell) When() date.Date   { return t.Date }

func (t Sell) apply(p *Portfolio, cfg Config) error {
	pos, err := p.position(t.Symbol)
	if err != nil {
		return err
	}
	price := inCurrency(t.Price, pos.Currency)
	priced := !price.IsZero()
	if priced && !price.IsPositive() {
		return invalid("price", "must be positive, got %v", price.Decimal())
	}
	if t.Settle && !priced {
		return invalid("price", "a settled sell needs a price")
	}

	var proceeds Money
	if priced {
		if proceeds, err = Convert(price.Mul(t.Shares), pos.Currency, t.Rates); err != nil {
			return err
		}
	}
	var settlement Money
	if t.Settle {
		if settlement, err = Convert(price.Mul(t.Shares), p.base, t.Rates); err != nil {
			return err
		}
	}

	consumed, err := pos.RemoveShares(t.Shares, cfg.rule(t.Rule), t.Lots...)
	if err != nil {
		return err
	}

	day := t.Date
	if day.IsZero() {
		day = date.Today()
	}
	if priced {
		cost := M(0, pos.Currency)
		for _, c := range consumed {
			cost = cost.Add(c.Cost)
		}
		p.realized = append(p.realized, Realization{
			Symbol:   pos.Symbol,
			Date:     day,
			Shares:   t.Shares,
			Proceeds: proceeds,
			Cost:     cost,
		})
	}
	if t.Settle {
		p.cash = p.cash.Add(settlement)
	}
	if pos.IsClosed() && cfg.Retention == RemoveClosed {
		p.remove(pos.Symbol)
	}
	return nil
}

// Field identifies what a Modify corrects.
type Field int

const (
	FieldSector Field = iota
	FieldExchange
	FieldAssetType
	FieldISIN
	FieldName
	FieldNote
	FieldLotPrice
	FieldLotDate
	FieldLotNote
)

var fieldNames = []string{"sector", "exchange", "asset-type", "isin", "name", "note", "lot-price", "lot-date", "lot-note"}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "unknown"
	}
	return fieldNames[f]
}

// ParseField parses a field name as returned by Field.String.
func ParseField(s string) (Field, error) {
	for i, name := range fieldNames {
		if name == s {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field: %q", s)
}

// IsLot reports whether the field belongs to a lot rather than the position.
func (f Field) IsLot() bool { return f >= FieldLotPrice && int(f) < len(fieldNames) }

// Modify corrects a position tag or a lot. It never changes the number of shares held.
type Modify struct {
	Date   date.Date
	Symbol string
	Field  Field
	Lot    uuid.UUID // for lot fields
	Value  string
}

func (t Modify) What() CommandType { return CmdModify }
func (t Modify) When() date.Date   { return t.Date }

func (t Modify) apply(p *Portfolio, cfg Config) error {
	pos, err := p.position(t.Symbol)
	if err != nil {
		return err
	}
	if t.Field.IsLot() && t.Lot == uuid.Nil {
		return invalid("lot", "required to modify %v", t.Field)
	}
	switch t.Field {
	case FieldSector:
		pos.Sector = t.Value
	case FieldExchange:
		pos.Exchange = t.Value
	case FieldAssetType:
		pos.AssetType = t.Value
	case FieldISIN:
		pos.ISIN = t.Value
	case FieldName:
		pos.Name = t.Value
	case FieldNote:
		pos.Note = t.Value
	case FieldLotPrice, FieldLotDate, FieldLotNote:
		i, err := pos.lot(t.Lot)
		if err != nil {
			return err
		}
		lot := pos.Lots[i]
		switch t.Field {
		case FieldLotPrice:
			v, err := decimal.NewFromString(t.Value)
			if err != nil {
				return invalid("price", "%q is not a number", t.Value)
			}
			lot.Price = M(v, lot.Currency())
		case FieldLotDate:
			if lot.Date, err = date.Parse(t.Value); err != nil {
				return invalid("date", "%v", err)
			}
		case FieldLotNote:
			lot.Note = t.Value
		}
		if err := lot.validate(pos.Currency); err != nil {
			return err
		}
		pos.Lots[i] = lot
	default:
		return invalid("field", "unknown field %v", t.Field)
	}
	return nil
}

// Deposit adds cash to the portfolio.
type Deposit struct {
	Date   date.Date
	Amount Money
	// Rates converts the amount into base currency when it differs.
	Rates Rates
}

func (t Deposit) What() CommandType { return CmdDeposit }
func (t Deposit) When() date.Date   { return t.Date }

func (t Deposit) apply(p *Portfolio, cfg Config) error {
	if !t.Amount.IsPositive() {
		return invalid("amount", "must be positive, got %v", t.Amount.Decimal())
	}
	amount, err := Convert(t.Amount, p.base, t.Rates)
	if err != nil {
		return err
	}
	p.cash = p.cash.Add(amount)
	return nil
}

// Withdraw removes cash from the portfolio.
type Withdraw struct {
	Date   date.Date
	Amount Money
	// Rates converts the amount into base currency when it differs.
	Rates Rates
}

func (t Withdraw) What() CommandType { return CmdWithdraw }
func (t Withdraw) When() date.Date   { return t.Date }

func (t Withdraw) apply(p *Portfolio, cfg Config) error {
	if !t.Amount.IsPositive() {
		return invalid("amount", "must be positive, got %v", t.Amount.Decimal())
	}
	amount, err := Convert(t.Amount, p.base, t.Rates)
	if err != nil {
		return err
	}
	return p.debit(amount)
}

// inCurrency gives an amount without currency the currency cur.
func inCurrency(m Money, cur string) Money {
	if m.Currency() != "" {
		return m
	}
	return M(m.Decimal(), cur)
}

// debit removes amount, in base currency, from cash.
func (p *Portfolio) debit(amount Money) error {
	if p.cash.LessThan(amount) {
		return &InsufficientFundsError{Required: amount, Available: p.cash}
	}
	p.cash = p.cash.Sub(amount)
	return nil
}
