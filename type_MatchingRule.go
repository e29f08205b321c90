package holdings

import "fmt"

// MatchingRule defines which lots a Sell consumes.
type MatchingRule int

const (
	// MatchDefault uses the rule configured in Config.
	MatchDefault MatchingRule = iota
	// FIFO (First-In, First-Out) consumes the earliest purchased lots first.
	// Lots bought the same day are consumed in insertion order.
	FIFO
	// LIFO (Last-In, First-Out) consumes the latest purchased lots first.
	// Lots bought the same day are consumed in reverse insertion order.
	LIFO
	// SpecificLots consumes exactly the lots named by the Sell.
	SpecificLots
)

func (m MatchingRule) String() string {
	switch m {
	case MatchDefault:
		return "default"
	case FIFO:
		return "fifo"
	case LIFO:
		return "lifo"
	case SpecificLots:
		return "specific"
	default:
		return "unknown"
	}
}

// ParseMatchingRule parses a string into a MatchingRule.
func ParseMatchingRule(s string) (MatchingRule, error) {
	switch s {
	case "", "default":
		return MatchDefault, nil
	case "fifo":
		return FIFO, nil
	case "lifo":
		return LIFO, nil
	case "specific":
		return SpecificLots, nil
	default:
		return 0, fmt.Errorf("unknown matching rule: %q", s)
	}
}
