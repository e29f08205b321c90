package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"slices"
	"time"

	"github.com/etnz/holdings"
	"github.com/etnz/holdings/date"
	"github.com/etnz/holdings/feed"
	"github.com/etnz/holdings/renderer"
	"github.com/google/subcommands"
)

// loadMarket reads the market file. Entries that cannot be read are logged and
// left out of the market.
func loadMarket(s *session, path string) (*holdings.Market, error) {
	m, err := feed.Load(path)
	if m == nil {
		return nil, fmt.Errorf("could not read market file %q: %w", path, err)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("file", path).Msg("Some market entries were ignored")
	}
	return m, nil
}

// --- Show Command ---

type showCmd struct {
	hideClosed   bool
	hideExposure bool
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "display the valuation of the portfolio" }
func (*showCmd) Usage() string {
	return `hld [-market <file>] show [-hide-closed] [-hide-exposure]

  Values every position with the market file and displays the positions,
  the totals, the sector, asset type and currency exposure and the
  concentration risk.
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.hideClosed, "hide-closed", false, "Do not display closed positions")
	f.BoolVar(&c.hideExposure, "hide-exposure", false, "Do not display the exposure tables")
}

func (c *showCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := open()
	if err != nil {
		return fail("%v", err)
	}
	defer s.Close()

	market, err := loadMarket(s, settings.MarketFile)
	if err != nil {
		return fail("%v", err)
	}
	v, err := s.Value(ctx, settings.Owner, market)
	if err != nil {
		return fail("%v", err)
	}
	printMarkdown(renderer.RenderValuation(v, renderer.ValuationOptions{
		HideClosed:   c.hideClosed,
		HideExposure: c.hideExposure,
	}))
	return subcommands.ExitSuccess
}

// --- Position Command ---

type positionCmd struct {
	symbol string
	value  bool
}

func (*positionCmd) Name() string     { return "position" }
func (*positionCmd) Synopsis() string { return "display the lots and realized gains of a position" }
func (*positionCmd) Usage() string {
	return `hld position -s <symbol> [-value]

  Displays the aggregated holding, the lots and the realized gains of a position.
  With -value, the position is also valued with the market file.
`
}

func (c *positionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Symbol of the position")
	f.BoolVar(&c.value, "value", false, "Value the position with the market file")
}

func (c *positionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" {
		f.Usage()
		return subcommands.ExitUsageError
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
	var v *holdings.Valuation
	if c.value {
		market, err := loadMarket(s, settings.MarketFile)
		if err != nil {
			return fail("%v", err)
		}
		if v, err = s.Value(ctx, settings.Owner, market); err != nil {
			return fail("%v", err)
		}
	}
	report, err := renderer.NewPositionReport(p, c.symbol, v)
	if err != nil {
		return fail("%v", err)
	}
	printMarkdown(renderer.RenderPosition(report))
	return subcommands.ExitSuccess
}

// --- History Command ---

type historyCmd struct {
	from string
	to   string
	days int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display the recorded snapshots and their performance" }
func (*historyCmd) Usage() string {
	return `hld history [-from <date>] [-to <date>] | [-days <n>]

  Lists the snapshots recorded in the period, and the performance over it when
  there are at least two. Without any flag, the whole history is displayed.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "First day of the period (YYYY-MM-DD)")
	f.StringVar(&c.to, "to", "", "Last day of the period (YYYY-MM-DD)")
	f.IntVar(&c.days, "days", 0, "Period of n days ending today. Overrides -from and -to.")
}

// period returns the bounds of the period, zero for open ends.
func (c *historyCmd) period() (from, to time.Time, err error) {
	if c.days > 0 {
		r := date.LastDays(date.Today(), c.days)
		return r.Start(), r.End(), nil
	}
	if c.from != "" {
		d, err := date.Parse(c.from)
		if err != nil {
			return from, to, err
		}
		from = date.NewRange(d, d).Start()
	}
	if c.to != "" {
		d, err := date.Parse(c.to)
		if err != nil {
			return from, to, err
		}
		to = date.NewRange(d, d).End()
	}
	return from, to, nil
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	from, to, err := c.period()
	if err != nil {
		fmt.Fprintf(stderr, "Error parsing period: %v\n", err)
		return subcommands.ExitUsageError
	}

	s, err := open()
	if err != nil {
		return fail("%v", err)
	}
	defer s.Close()

	h, err := s.History(ctx, settings.Owner)
	if err != nil {
		return fail("%v", err)
	}
	report := &renderer.HistoryReport{Owner: settings.Owner, Snapshots: slices.Collect(h.Range(from, to))}
	perf, err := h.Performance(from, to)
	switch {
	case err == nil:
		report.Performance = &perf
	case !errors.Is(err, holdings.ErrNotEnoughSnapshots):
		return fail("%v", err)
	}
	printMarkdown(renderer.RenderHistory(report))
	return subcommands.ExitSuccess
}
