package holdings

import (
	"testing"
	"time"

	"github.com/etnz/holdings/date"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// EUR is a helper for test to create euro money from const
func EUR(v float64) Money { return M(v, "EUR") }

// USD is a helper for test to create usd money from const
func USD(v float64) Money { return M(v, "USD") }

// NO is a helper for test to create money from const with no currency set
func NO(v float64) Money { return M(v, "") }

// day returns the date of the nth day of January 2024.
func day(n int) date.Date { return date.New(2024, time.January, n) }

// rate is a helper for test to create a rate observed at now.
func rate(from, to string, r float64, now time.Time) Rate {
	return Rate{From: from, To: to, Rate: decimal.NewFromFloat(r), AsOf: now}
}

// must panics on error, for test fixtures only.
func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// buy is a helper returning an unfunded buy.
func buy(d date.Date, symbol string, shares float64, price Money) Buy {
	return NewBuy(d, symbol, Q(shares), price)
}

// assertMoney compares amounts by value, ignoring decimal representation.
func assertMoney(t *testing.T, want, got Money) bool {
	t.Helper()
	return assert.Truef(t, want.Equal(got), "want %s %s, got %s %s", want.Decimal(), want.Currency(), got.Decimal(), got.Currency())
}

// assertQuantity compares quantities by value.
func assertQuantity(t *testing.T, want, got Quantity) bool {
	t.Helper()
	return assert.Truef(t, want.Equal(got), "want %s shares, got %s", want, got)
}
