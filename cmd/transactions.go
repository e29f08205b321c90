package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/etnz/holdings"
	"github.com/google/subcommands"
	"github.com/google/uuid"
)

// apply applies tx to the portfolio of the configured owner and reports the outcome.
func apply(ctx context.Context, s *session, tx holdings.Transaction) subcommands.ExitStatus {
	p, err := s.Apply(ctx, settings.Owner, tx)
	if err != nil {
		return fail("%v", err)
	}
	fmt.Fprintf(stdout, "Applied %s to %q, cash is %v\n", tx.What(), p.Owner(), p.Cash())
	return subcommands.ExitSuccess
}

// positionCurrency returns the currency of symbol in p, or the base currency
// when p does not hold it.
func positionCurrency(p *holdings.Portfolio, symbol string) string {
	if pos, ok := p.Position(symbol); ok {
		return pos.Currency
	}
	return p.BaseCurrency()
}

// --- Buy Command ---

type buyCmd struct {
	date      string
	symbol    string
	shares    string
	price     string
	currency  string
	note      string
	sector    string
	exchange  string
	assetType string
	isin      string
	name      string
	funded    bool
	rates     rateFlag
}

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "purchase shares to open or add to a position" }
func (*buyCmd) Usage() string {
	return `hld buy [-d <date>] -s <symbol> -q <shares> -p <price> [-c <currency>] [-funded] [-fx FROM/TO=RATE]...

  Adds a lot to the position, opening it if needed. The price currency defaults
  to the position currency, or the base currency for a new position.
  With -funded, the cost is debited from cash.
`
}

func (c *buyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Transaction date (YYYY-MM-DD), today by default")
	f.StringVar(&c.symbol, "s", "", "Symbol of the security")
	f.StringVar(&c.shares, "q", "", "Number of shares")
	f.StringVar(&c.price, "p", "", "Price per share")
	f.StringVar(&c.currency, "c", "", "Currency of the price")
	f.StringVar(&c.note, "m", "", "An optional note on the lot")
	f.StringVar(&c.sector, "sector", "", "Sector of a new position")
	f.StringVar(&c.exchange, "exchange", "", "Exchange of a new position")
	f.StringVar(&c.assetType, "type", "", "Asset type of a new position (stock, etf, bond...)")
	f.StringVar(&c.isin, "isin", "", "ISIN of a new position")
	f.StringVar(&c.name, "name", "", "Display name of a new position")
	f.BoolVar(&c.funded, "funded", false, "Debit the cost from cash")
	c.rates = rateFlag{}
	f.Var(&c.rates, "fx", "Exchange rate FROM/TO=RATE, repeatable")
}

func (c *buyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" || c.shares == "" || c.price == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	day, err := parseDay(c.date)
	if err != nil {
		fmt.Fprintf(stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	shares, err := holdings.ParseQuantity(c.shares)
	if err != nil {
		return fail("%v", err)
	}
	rates, err := c.rates.Rates()
	if err != nil {
		return fail("%v", err)
	}

	s, err := open()
	if err != nil {
		return fail("%v", err)
	}
	defer s.Close()

	p, err := s.Portfolio(ctx, settings.Owner)
	if err != nil {
		return fail("%v", err)
	}
	price, err := parseAmount(c.price, c.currency, positionCurrency(p, c.symbol))
	if err != nil {
		return fail("%v", err)
	}

	tx := holdings.NewBuy(day, c.symbol, shares, price)
	tx.Note = c.note
	tx.Sector, tx.Exchange, tx.AssetType, tx.ISIN, tx.Name = c.sector, c.exchange, c.assetType, c.isin, c.name
	tx.Funded = c.funded
	tx.Rates = rates
	return apply(ctx, s, tx)
}

// --- Sell Command ---

type sellCmd struct {
	date     string
	symbol   string
	shares   string
	price    string
	currency string
	rule     string
	lots     string
	settle   bool
	rates    rateFlag
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "sell shares to trim or close a position" }
func (*sellCmd) Usage() string {
	return `hld sell [-d <date>] -s <symbol> [-q <shares>] [-p <price>] [-rule fifo|lifo|specific] [-lots <id,...>] [-settle]

  Removes shares from the position, consuming lots with the matching rule.
  Without -q every share is sold. With a price, the realized gain is recorded;
  with -settle the proceeds are also credited to cash.
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Transaction date (YYYY-MM-DD), today by default")
	f.StringVar(&c.symbol, "s", "", "Symbol of the security")
	f.StringVar(&c.shares, "q", "", "Number of shares, if missing all shares are sold")
	f.StringVar(&c.price, "p", "", "Price per share")
	f.StringVar(&c.currency, "c", "", "Currency of the price")
	f.StringVar(&c.rule, "rule", "", "Lot matching rule, the -matching setting by default")
	f.StringVar(&c.lots, "lots", "", "Comma separated lot ids consumed in order by the specific rule")
	f.BoolVar(&c.settle, "settle", false, "Credit the proceeds to cash")
	c.rates = rateFlag{}
	f.Var(&c.rates, "fx", "Exchange rate FROM/TO=RATE, repeatable")
}

func (c *sellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	day, err := parseDay(c.date)
	if err != nil {
		fmt.Fprintf(stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	rule, err := holdings.ParseMatchingRule(c.rule)
	if err != nil {
		return fail("%v", err)
	}
	var ids []uuid.UUID
	if c.lots != "" {
		for _, s := range strings.Split(c.lots, ",") {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil {
				return fail("invalid lot id %q: %v", s, err)
			}
			ids = append(ids, id)
		}
		if rule == holdings.MatchDefault {
			rule = holdings.SpecificLots
		}
	}
	rates, err := c.rates.Rates()
	if err != nil {
		return fail("%v", err)
	}

	s, err := open()
	if err != nil {
		return fail("%v", err)
	}
	defer s.Close()

	p, err := s.Portfolio(ctx, settings.Owner)
	if err != nil {
		return fail("%v", err)
	}
	pos, ok := p.Position(c.symbol)
	if !ok {
		return fail("%v", &holdings.PositionNotFoundError{Symbol: c.symbol})
	}
	shares := pos.Aggregate().Shares
	if c.shares != "" {
		if shares, err = holdings.ParseQuantity(c.shares); err != nil {
			return fail("%v", err)
		}
	}

	tx := holdings.NewSell(day, c.symbol, shares)
	if c.price != "" {
		if tx.Price, err = parseAmount(c.price, c.currency, pos.Currency); err != nil {
			return fail("%v", err)
		}
	}
	tx.Rule, tx.Lots, tx.Settle, tx.Rates = rule, ids, c.settle, rates
	return apply(ctx, s, tx)
}

// --- Modify Command ---

type modifyCmd struct {
	date   string
	symbol string
	field  string
	lot    string
	value  string
}

func (*modifyCmd) Name() string     { return "modify" }
func (*modifyCmd) Synopsis() string { return "correct a position tag or a lot" }
func (*modifyCmd) Usage() string {
	return `hld modify -s <symbol> -f <field> [-lot <id>] -v <value>

  Corrects a descriptive tag of the position (sector, exchange, asset-type, isin,
  name, note) or a lot (lot-price, lot-date, lot-note). Shares are never changed.
`
}

func (c *modifyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Transaction date (YYYY-MM-DD), today by default")
	f.StringVar(&c.symbol, "s", "", "Symbol of the position")
	f.StringVar(&c.field, "f", "", "Field to correct")
	f.StringVar(&c.lot, "lot", "", "Id of the lot, for lot fields")
	f.StringVar(&c.value, "v", "", "New value")
}

func (c *modifyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" || c.field == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	field, err := holdings.ParseField(c.field)
	if err != nil {
		return fail("%v", err)
	}
	day, err := parseDay(c.date)
	if err != nil {
		fmt.Fprintf(stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	tx := holdings.Modify{Date: day, Symbol: c.symbol, Field: field, Value: c.value}
	if field.IsLot() {
		if tx.Lot, err = uuid.Parse(c.lot); err != nil {
			return fail("invalid lot id %q: %v", c.lot, err)
		}
	}

	s, err := open()
	if err != nil {
		return fail("%v", err)
	}
	defer s.Close()
	return apply(ctx, s, tx)
}

// --- Cash Commands ---

type cashCmd struct {
	date     string
	amount   string
	currency string
	rates    rateFlag
}

func (c *cashCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Transaction date (YYYY-MM-DD), today by default")
	f.StringVar(&c.amount, "a", "", "Amount")
	f.StringVar(&c.currency, "c", "", "Currency of the amount, base currency by default")
	c.rates = rateFlag{}
	f.Var(&c.rates, "fx", "Exchange rate FROM/TO=RATE, repeatable")
}

// execute builds the transaction with newTx and applies it.
func (c *cashCmd) execute(ctx context.Context, f *flag.FlagSet, newTx func(holdings.Money, holdings.Rates) holdings.Transaction) subcommands.ExitStatus {
	if c.amount == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	rates, err := c.rates.Rates()
	if err != nil {
		return fail("%v", err)
	}

	s, err := open()
	if err != nil {
		return fail("%v", err)
	}
	defer s.Close()

	p, err := s.Portfolio(ctx, settings.Owner)
	if err != nil {
		return fail("%v", err)
	}
	amount, err := parseAmount(c.amount, c.currency, p.BaseCurrency())
	if err != nil {
		return fail("%v", err)
	}
	return apply(ctx, s, newTx(amount, rates))
}

type depositCmd struct{ cashCmd }

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "add cash to the portfolio" }
func (*depositCmd) Usage() string {
	return `hld deposit [-d <date>] -a <amount> [-c <currency>] [-fx FROM/TO=RATE]

  Credits cash, converted to the base currency.
`
}

func (c *depositCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	day, err := parseDay(c.date)
	if err != nil {
		fmt.Fprintf(stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	return c.execute(ctx, f, func(m holdings.Money, r holdings.Rates) holdings.Transaction {
		return holdings.Deposit{Date: day, Amount: m, Rates: r}
	})
}

type withdrawCmd struct{ cashCmd }

func (*withdrawCmd) Name() string     { return "withdraw" }
func (*withdrawCmd) Synopsis() string { return "remove cash from the portfolio" }
func (*withdrawCmd) Usage() string {
	return `hld withdraw [-d <date>] -a <amount> [-c <currency>] [-fx FROM/TO=RATE]

  Debits cash, converted to the base currency. Cash cannot go negative.
`
}

func (c *withdrawCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	day, err := parseDay(c.date)
	if err != nil {
		fmt.Fprintf(stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	return c.execute(ctx, f, func(m holdings.Money, r holdings.Rates) holdings.Transaction {
		return holdings.Withdraw{Date: day, Amount: m, Rates: r}
	})
}
