package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/etnz/holdings"
	"github.com/etnz/holdings/feed"
	"github.com/google/subcommands"
	"github.com/robfig/cron/v3"
)

// --- Quote Command ---

type quoteCmd struct {
	symbol   string
	price    string
	currency string
	rates    rateFlag
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "record prices and exchange rates in the market file" }
func (*quoteCmd) Usage() string {
	return `hld [-market <file>] quote [-s <symbol> -p <price> -c <currency>] [-fx FROM/TO=RATE]...

  Sets the price of a symbol and exchange rates in the market file, creating
  it if needed. The market file date is set to now.
`
}

func (c *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Symbol of the security")
	f.StringVar(&c.price, "p", "", "Price per share")
	f.StringVar(&c.currency, "c", "", "Currency of the price")
	c.rates = rateFlag{}
	f.Var(&c.rates, "fx", "Exchange rate FROM/TO=RATE, repeatable")
}

func (c *quoteCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if (c.symbol == "") != (c.price == "") || (c.symbol == "" && len(c.rates.rates) == 0) {
		f.Usage()
		return subcommands.ExitUsageError
	}

	file, err := feed.Open(settings.MarketFile)
	if errors.Is(err, fs.ErrNotExist) {
		file, err = &feed.File{}, nil
	}
	if err != nil {
		return fail("%v", err)
	}

	now := time.Now().UTC()
	file.On = now
	if c.symbol != "" {
		if c.currency == "" {
			fmt.Fprintln(stderr, "Error: -c is required with -p")
			return subcommands.ExitUsageError
		}
		price, err := parseAmount(c.price, c.currency, "")
		if err != nil {
			return fail("%v", err)
		}
		if !price.IsPositive() {
			return fail("price must be positive, got %v", price.Decimal())
		}
		file.SetQuote(strings.ToUpper(strings.TrimSpace(c.symbol)), price, now)
	}
	if _, err := c.rates.Rates(); err != nil {
		return fail("%v", err)
	}
	for _, r := range c.rates.rates {
		file.SetRate(feed.Rate{From: r.From, To: r.To, Rate: r.Rate, AsOf: now})
	}
	if err := file.Save(settings.MarketFile); err != nil {
		return fail("%v", err)
	}
	fmt.Fprintf(stdout, "Updated %s\n", settings.MarketFile)
	return subcommands.ExitSuccess
}

// record records a snapshot of each owner at instant at, the configured owner
// only unless all is set. It returns the snapshots recorded and the joined
// errors of the owners that failed.
func record(ctx context.Context, s *session, all bool, at time.Time) (map[string]holdings.Snapshot, error) {
	owners := []string{settings.Owner}
	if all {
		var err error
		if owners, err = s.Owners(ctx); err != nil {
			return nil, err
		}
	}
	market, err := loadMarket(s, settings.MarketFile)
	if err != nil {
		return nil, err
	}

	res := make(map[string]holdings.Snapshot, len(owners))
	var errs []error
	for _, owner := range owners {
		snap, err := s.Record(ctx, owner, market, at)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", owner, err))
			continue
		}
		res[owner] = snap
	}
	return res, errors.Join(errs...)
}

// --- Record Command ---

type recordCmd struct {
	all bool
}

func (*recordCmd) Name() string     { return "record" }
func (*recordCmd) Synopsis() string { return "record a snapshot of the portfolio value" }
func (*recordCmd) Usage() string {
	return `hld [-market <file>] record [-all]

  Values the portfolio with the market file and appends the snapshot to its
  history. With -all, every owner of the store is recorded.
`
}

func (c *recordCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "Record every owner")
}

func (c *recordCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := open()
	if err != nil {
		return fail("%v", err)
	}
	defer s.Close()

	snaps, err := record(ctx, s, c.all, time.Now().UTC())
	for owner, snap := range snaps {
		fmt.Fprintf(stdout, "Recorded %q: %v\n", owner, snap.TotalValue)
	}
	if err != nil {
		return fail("%v", err)
	}
	return subcommands.ExitSuccess
}

// --- Schedule Command ---

type scheduleCmd struct {
	spec string
	all  bool
}

func (*scheduleCmd) Name() string     { return "schedule" }
func (*scheduleCmd) Synopsis() string { return "record snapshots periodically" }
func (*scheduleCmd) Usage() string {
	return `hld [-market <file>] schedule [-cron <spec>] [-all]

  Records snapshots on a cron schedule until interrupted. The market file is
  read again before each recording, so that another tool can keep it current.

  Schedule examples:
    "0 18 * * MON-FRI" - 6 PM weekdays
    "@hourly"          - Every hour
    "@every 30m"       - Every 30 minutes
`
}

func (c *scheduleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.spec, "cron", "0 18 * * MON-FRI", "Cron schedule of the recordings")
	f.BoolVar(&c.all, "all", false, "Record every owner")
}

func (c *scheduleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := open()
	if err != nil {
		return fail("%v", err)
	}
	defer s.Close()

	log := s.log.With().Str("component", "scheduler").Logger()
	sched := cron.New()
	_, err = sched.AddFunc(c.spec, func() {
		log.Debug().Msg("Recording snapshots")
		snaps, err := record(ctx, s, c.all, time.Now().UTC())
		if err != nil {
			log.Error().Err(err).Msg("Recording failed")
		}
		log.Debug().Int("owners", len(snaps)).Msg("Recording done")
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error parsing schedule %q: %v\n", c.spec, err)
		return subcommands.ExitUsageError
	}

	sched.Start()
	log.Info().Str("schedule", c.spec).Msg("Scheduler started")
	<-ctx.Done()
	<-sched.Stop().Done()
	log.Info().Msg("Scheduler stopped")
	return subcommands.ExitSuccess
}
