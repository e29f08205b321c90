// Package cmd implements the hld command line application managing portfolios.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/holdings"
	"github.com/etnz/holdings/store/jsonstore"
	"github.com/etnz/holdings/store/sqlitestore"
	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Environment variables providing the defaults of the global flags.
const (
	EnvStore      = "HLD_STORE"
	EnvDataDir    = "HLD_DATA_DIR"
	EnvOwner      = "HLD_OWNER"
	EnvMarketFile = "HLD_MARKET_FILE"
	EnvMatching   = "HLD_MATCHING"
	EnvRetention  = "HLD_RETENTION"
	EnvMaxRateAge = "HLD_MAX_RATE_AGE"
	EnvLogLevel   = "HLD_LOG_LEVEL"
	EnvRaw        = "HLD_RAW"
)

// Settings are the global flags of the application.
type Settings struct {
	Store      string // json or sqlite
	DataDir    string
	Owner      string
	MarketFile string
	Matching   string
	Retention  string
	MaxRateAge time.Duration
	LogLevel   string
	Raw        bool // print markdown as is
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.
var (
	settings Settings
	stdout   io.Writer = os.Stdout
	stderr   io.Writer = os.Stderr
)

// Commands lists every subcommand and its group.
var Commands = []struct {
	Command subcommands.Command
	Group   string
}{
	{&initCmd{}, "portfolios"},
	{&ownersCmd{}, "portfolios"},
	{&deleteCmd{}, "portfolios"},

	{&buyCmd{}, "transactions"},
	{&sellCmd{}, "transactions"},
	{&modifyCmd{}, "transactions"},
	{&depositCmd{}, "transactions"},
	{&withdrawCmd{}, "transactions"},

	{&showCmd{}, "reports"},
	{&positionCmd{}, "reports"},
	{&historyCmd{}, "reports"},

	{&quoteCmd{}, "market"},
	{&recordCmd{}, "market"},
	{&scheduleCmd{}, "market"},

	{&topicCmd{}, "help"},
}

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	for _, e := range Commands {
		c.Register(e.Command, e.Group)
	}
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")
}

// LoadEnv reads the .env files, if any, into the environment. Variables
// already set are not overridden.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// SetFlags declares the global flags on f. Defaults come from the environment,
// so LoadEnv must be called first.
func SetFlags(f *flag.FlagSet) {
	f.StringVar(&settings.Store, "store", getEnv(EnvStore, "json"), "Storage backend: json or sqlite")
	f.StringVar(&settings.DataDir, "data", getEnv(EnvDataDir, ".holdings"), "Directory holding the portfolios")
	f.StringVar(&settings.Owner, "owner", getEnv(EnvOwner, "default"), "Owner of the portfolio to work on")
	f.StringVar(&settings.MarketFile, "market", getEnv(EnvMarketFile, "market.json"), "Path to the market file")
	f.StringVar(&settings.Matching, "matching", getEnv(EnvMatching, "fifo"), "Default lot matching rule: fifo or lifo")
	f.StringVar(&settings.Retention, "retention", getEnv(EnvRetention, "keep"), "Closed positions retention: keep or remove")
	f.DurationVar(&settings.MaxRateAge, "max-rate-age", getEnvAsDuration(EnvMaxRateAge, 0), "Reject exchange rates older than this, 0 accepts any")
	f.StringVar(&settings.LogLevel, "log-level", getEnv(EnvLogLevel, "warn"), "Log level: debug, info, warn or error")
	f.BoolVar(&settings.Raw, "raw", getEnvAsBool(EnvRaw, false), "Print reports as raw markdown")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

// config builds the ledger policies from the settings.
func (s Settings) config() (holdings.Config, error) {
	cfg := holdings.DefaultConfig()
	var err error
	if cfg.Matching, err = holdings.ParseMatchingRule(s.Matching); err != nil {
		return cfg, err
	}
	if cfg.Matching == holdings.SpecificLots {
		return cfg, fmt.Errorf("%v cannot be the default matching rule", cfg.Matching)
	}
	if cfg.Retention, err = holdings.ParseRetentionPolicy(s.Retention); err != nil {
		return cfg, err
	}
	cfg.MaxRateAge = s.MaxRateAge
	return cfg, nil
}

// newLogger builds the application logger, on stderr so that reports stay clean.
func (s Settings) newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// openStore opens the configured store. The returned function releases it.
func (s Settings) openStore(log zerolog.Logger) (holdings.Store, func() error, error) {
	switch s.Store {
	case "json":
		st, err := jsonstore.New(s.DataDir, log)
		if err != nil {
			return nil, nil, err
		}
		return st, func() error { return nil }, nil
	case "sqlite":
		if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
			return nil, nil, err
		}
		st, err := sqlitestore.Open(filepath.Join(s.DataDir, "holdings.db"), log)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q, expected json or sqlite", s.Store)
	}
}

// session is what a command needs to work on portfolios.
type session struct {
	*holdings.Manager
	log   zerolog.Logger
	close func() error
}

// open opens a session on the configured store.
func open() (*session, error) {
	log := settings.newLogger()
	cfg, err := settings.config()
	if err != nil {
		return nil, err
	}
	store, closer, err := settings.openStore(log)
	if err != nil {
		return nil, err
	}
	return &session{Manager: holdings.NewManager(store, cfg, log), log: log, close: closer}, nil
}

// Close releases the store.
func (s *session) Close() {
	if err := s.close(); err != nil {
		s.log.Error().Err(err).Msg("Could not close the store")
	}
}

// fail prints err and returns the failure status.
func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}

// printMarkdown renders md for the terminal, or as is with -raw.
func printMarkdown(md string) {
	if settings.Raw {
		fmt.Fprint(stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}
