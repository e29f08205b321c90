package holdings

import (
	"fmt"
	"iter"
	"slices"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Snapshot is the recorded value of a portfolio at an instant. It is never
// modified once recorded.
type Snapshot struct {
	At            time.Time       `json:"at"`
	TotalValue    Money           `json:"total_value"`
	Cash          Money           `json:"cash"`
	TotalGainLoss Money           `json:"total_gain_loss"`
	Positions     []SnapshotEntry `json:"positions"`
}

// SnapshotEntry is the value of one position in a Snapshot.
type SnapshotEntry struct {
	Symbol string  `json:"symbol"`
	Value  Money   `json:"value"` // base currency
	Weight Percent `json:"weight"`
}

// NewSnapshot captures the valuation at instant at. Closed positions are left out.
func NewSnapshot(v *Valuation, at time.Time) Snapshot {
	s := Snapshot{
		At:            at,
		TotalValue:    v.TotalValue,
		Cash:          v.Cash,
		TotalGainLoss: v.TotalGainLoss,
	}
	for _, pv := range v.Positions {
		if pv.Closed {
			continue
		}
		s.Positions = append(s.Positions, SnapshotEntry{Symbol: pv.Symbol, Value: pv.MarketValueBase, Weight: pv.Weight})
	}
	return s
}

// History is the timestamp ordered sequence of snapshots of one portfolio.
//
// Recording never modifies a slice readers may hold: it swaps in a new one.
type History struct {
	mu        sync.RWMutex
	snapshots []Snapshot
}

// NewHistory returns a history holding snapshots, in any order.
func NewHistory(snapshots ...Snapshot) (*History, error) {
	s := slices.Clone(snapshots)
	slices.SortFunc(s, func(a, b Snapshot) int { return a.At.Compare(b.At) })
	for i := 1; i < len(s); i++ {
		if s[i].At.Equal(s[i-1].At) {
			return nil, &DuplicateSnapshotError{At: s[i].At}
		}
	}
	return &History{snapshots: s}, nil
}

// Record appends a snapshot of v at instant at.
// Callers wanting a daily history should truncate at to the day.
func (h *History) Record(v *Valuation, at time.Time) (Snapshot, error) {
	s := NewSnapshot(v, at)
	return s, h.Add(s)
}

// Add inserts a snapshot at its place in time.
func (h *History) Add(s Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	i, found := slices.BinarySearchFunc(h.snapshots, s.At, func(e Snapshot, t time.Time) int { return e.At.Compare(t) })
	if found {
		return &DuplicateSnapshotError{At: s.At}
	}
	h.snapshots = slices.Insert(slices.Clip(h.snapshots), i, s)
	return nil
}

// Len returns the number of snapshots.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.snapshots)
}

// Snapshots returns every snapshot in ascending time order.
func (h *History) Snapshots() []Snapshot {
	return slices.Collect(h.Range(time.Time{}, time.Time{}))
}

func (h *History) current() []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshots
}

// Range iterates in ascending order over snapshots taken between from and to, both included.
// A zero bound is open. Each iteration starts over from the current state of the history.
func (h *History) Range(from, to time.Time) iter.Seq[Snapshot] {
	return func(yield func(Snapshot) bool) {
		s := h.current()
		i := 0
		if !from.IsZero() {
			i = sort.Search(len(s), func(i int) bool { return !s[i].At.Before(from) })
		}
		for ; i < len(s); i++ {
			if !to.IsZero() && s[i].At.After(to) {
				return
			}
			if !yield(s[i]) {
				return
			}
		}
	}
}

// Performance summarizes the evolution of the total value over a period.
type Performance struct {
	From, To  time.Time
	Start     Money
	End       Money
	High, Low Money
	// Volatility is the standard deviation of the returns between consecutive snapshots.
	Volatility Percent
	Count      int
}

// Change returns the difference between the end and start values.
func (p Performance) Change() Money {
	return p.End.Sub(p.Start)
}

// Percent returns the change relative to the start value, 0 if start is 0.
func (p Performance) Percent() Percent {
	return ratio(p.Change(), p.Start)
}

// Performance computes the performance over snapshots between from and to.
// It needs at least two snapshots.
func (h *History) Performance(from, to time.Time) (Performance, error) {
	var (
		perf    Performance
		returns []float64
		prev    Money
	)
	for s := range h.Range(from, to) {
		if perf.Count == 0 {
			perf.From, perf.Start = s.At, s.TotalValue
			perf.High, perf.Low = s.TotalValue, s.TotalValue
		} else {
			if prev.IsZero() {
				returns = append(returns, 0)
			} else {
				returns = append(returns, s.TotalValue.Sub(prev).DivPrice(prev).AsFloat())
			}
			if s.TotalValue.GreaterThan(perf.High) {
				perf.High = s.TotalValue
			}
			if s.TotalValue.LessThan(perf.Low) {
				perf.Low = s.TotalValue
			}
		}
		perf.To, perf.End = s.At, s.TotalValue
		prev = s.TotalValue
		perf.Count++
	}
	if perf.Count < 2 {
		return Performance{}, fmt.Errorf("%w: %d in range", ErrNotEnoughSnapshots, perf.Count)
	}
	if len(returns) > 1 {
		perf.Volatility = Percent(100 * stat.StdDev(returns, nil))
	}
	return perf, nil
}
