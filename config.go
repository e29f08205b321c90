package holdings

import "time"

// Config holds the policies applied by ledger operations and valuations.
type Config struct {
	// Matching is the lot matching rule used by sells that do not choose one.
	Matching MatchingRule
	// Retention decides whether fully sold positions are kept as closed records.
	Retention RetentionPolicy
	// MaxRateAge rejects FX rates older than this at valuation time. Zero disables the check.
	MaxRateAge time.Duration
}

// DefaultConfig matches lots FIFO and keeps closed positions.
func DefaultConfig() Config {
	return Config{Matching: FIFO, Retention: KeepClosed}
}

// rule resolves MatchDefault to the configured rule.
func (c Config) rule(r MatchingRule) MatchingRule {
	if r != MatchDefault {
		return r
	}
	if c.Matching == MatchDefault {
		return FIFO
	}
	return c.Matching
}
