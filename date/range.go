package date

import (
	"fmt"
	"time"
)

// Range represents a range of dates, boundaries included.
type Range struct{ From, To Date }

// NewRange returns the range [from, to]. Boundaries are swapped if needed.
func NewRange(from, to Date) Range {
	if to.Before(from) {
		from, to = to, from
	}
	return Range{From: from, To: to}
}

// LastDays returns the range of the n days ending on 'to' (included).
func LastDays(to Date, n int) Range {
	if n < 1 {
		n = 1
	}
	return Range{From: to.Add(1 - n), To: to}
}

// Contains return true date is included in the range (boundaries included)
func (r Range) Contains(date Date) bool { return !date.Before(r.From) && !date.After(r.To) }

// Start returns the first instant of the range.
func (r Range) Start() time.Time { return r.From.time() }

// End returns the last instant of the range, one nanosecond before the next day starts.
func (r Range) End() time.Time { return r.To.Add(1).time().Add(-time.Nanosecond) }

// Days returns the number of days in the range.
func (r Range) Days() int { return int(r.To.time().Sub(r.From.time())/(24*time.Hour)) + 1 }

func (r Range) String() string { return fmt.Sprintf("%s..%s", r.From, r.To) }
