package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

// --- Init Command ---

type initCmd struct {
	currency string
	cash     string
}

func (*initCmd) Name() string     { return "init" }
func (*initCmd) Synopsis() string { return "create an empty portfolio for the owner" }
func (*initCmd) Usage() string {
	return `hld [-owner <owner>] init -c <currency> [-cash <amount>]

  Creates the portfolio of the owner, with its base currency and initial cash.
`
}

func (c *initCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "c", "", "Base currency of the portfolio (ISO 4217)")
	f.StringVar(&c.cash, "cash", "0", "Initial cash, in base currency")
}

func (c *initCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.currency == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cash, err := parseAmount(c.cash, c.currency, "")
	if err != nil {
		return fail("%v", err)
	}

	s, err := open()
	if err != nil {
		return fail("%v", err)
	}
	defer s.Close()

	p, err := s.Create(ctx, settings.Owner, c.currency, cash)
	if err != nil {
		return fail("%v", err)
	}
	fmt.Fprintf(stdout, "Created portfolio %q in %s with %v cash\n", p.Owner(), p.BaseCurrency(), p.Cash())
	return subcommands.ExitSuccess
}

// --- Owners Command ---

type ownersCmd struct{}

func (*ownersCmd) Name() string     { return "owners" }
func (*ownersCmd) Synopsis() string { return "list the owners with a portfolio" }
func (*ownersCmd) Usage() string {
	return `hld owners

  Lists the owners having a portfolio in the store, one per line.
`
}

func (*ownersCmd) SetFlags(*flag.FlagSet) {}

func (*ownersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := open()
	if err != nil {
		return fail("%v", err)
	}
	defer s.Close()

	owners, err := s.Owners(ctx)
	if err != nil {
		return fail("%v", err)
	}
	for _, o := range owners {
		fmt.Fprintln(stdout, o)
	}
	return subcommands.ExitSuccess
}

// --- Delete Command ---

type deleteCmd struct {
	yes bool
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete the portfolio and history of the owner" }
func (*deleteCmd) Usage() string {
	return `hld [-owner <owner>] delete -y

  Deletes the portfolio of the owner and every snapshot recorded for it.
  This cannot be undone.
`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "y", false, "Confirm the deletion")
}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes {
		f.Usage()
		return subcommands.ExitUsageError
	}
	s, err := open()
	if err != nil {
		return fail("%v", err)
	}
	defer s.Close()

	if err := s.Delete(ctx, settings.Owner); err != nil {
		return fail("%v", err)
	}
	fmt.Fprintf(stdout, "Deleted portfolio %q\n", settings.Owner)
	return subcommands.ExitSuccess
}
