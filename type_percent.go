package holdings

import (
	"fmt"
	"math"
)

// Percent is a ratio expressed in percent: 5.71 means 5.71%.
//
// Weights and returns are derived from decimals but kept as floats, so two
// percents are equal when they agree to a hundredth of a basis point.
type Percent float64

const percentTolerance = 1e-4

// Equal reports whether p and q are the same percentage, within tolerance.
func (p Percent) Equal(q Percent) bool {
	return math.Abs(float64(p-q)) < percentTolerance
}

// Fraction returns the ratio, 0.0571 for 5.71%.
func (p Percent) Fraction() float64 { return float64(p) / 100 }

// String formats p with two decimals, as in "5.71%".
func (p Percent) String() string {
	return fmt.Sprintf("%.2f%%", float64(p))
}

// SignedString formats p with an explicit sign. A null change reads "-" in reports.
func (p Percent) SignedString() string {
	if s := fmt.Sprintf("%+.2f%%", float64(p)); s != "+0.00%" && s != "-0.00%" {
		return s
	}
	return "-"
}
