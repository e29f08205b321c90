package holdings

import "fmt"

// RetentionPolicy defines what happens to a position once all its shares are sold.
type RetentionPolicy int

const (
	// KeepClosed retains the position as a zero-share closed record.
	KeepClosed RetentionPolicy = iota
	// RemoveClosed deletes the position from the portfolio.
	RemoveClosed
)

func (r RetentionPolicy) String() string {
	switch r {
	case KeepClosed:
		return "keep"
	case RemoveClosed:
		return "remove"
	default:
		return "unknown"
	}
}

// ParseRetentionPolicy parses a string into a RetentionPolicy.
func ParseRetentionPolicy(s string) (RetentionPolicy, error) {
	switch s {
	case "", "keep":
		return KeepClosed, nil
	case "remove":
		return RemoveClosed, nil
	default:
		return 0, fmt.Errorf("unknown retention policy: %q", s)
	}
}
