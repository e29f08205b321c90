package holdings

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	now := time.Date(2024, time.January, 15, 16, 0, 0, 0, time.UTC)
	rates := MustRates(
		rate("EUR", "USD", 1.1, now),
		rate("USD", "JPY", 150, now),
	)

	tests := []struct {
		name   string
		amount Money
		to     string
		want   Money
	}{
		{"identity", USD(100), "USD", USD(100)},
		{"direct", EUR(100), "USD", USD(110)},
		{"inverse", USD(110), "EUR", EUR(100)},
		{"no currency", NO(10), "EUR", EUR(10)},
		{"yen", USD(2), "JPY", M(300, "JPY")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.amount, tt.to, rates)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Currency(), got.Currency())
			assert.InDelta(t, tt.want.AsFloat(), got.AsFloat(), 1e-9)
		})
	}
}

func TestConvert_MissingRate(t *testing.T) {
	now := time.Now()
	rates := MustRates(
		rate("EUR", "USD", 1.1, now),
		rate("USD", "JPY", 150, now),
	)

	// no cross rate through USD
	_, err := Convert(EUR(100), "JPY", rates)
	var mre *MissingRateError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, "EUR", mre.From)
	assert.Equal(t, "JPY", mre.To)
	assert.False(t, mre.Stale)

	_, err = Convert(EUR(100), "USD", Rates{})
	assert.ErrorIs(t, err, ErrMissingRate)
}

func TestConvert_RoundTrip(t *testing.T) {
	now := time.Now()
	rates := MustRates(
		rate("EUR", "USD", 1.0873, now),
		rate("USD", "EUR", 0.9197, now),
	)
	for _, x := range []float64{1, 123.45, 1e6, 0.01} {
		there, err := Convert(EUR(x), "USD", rates)
		require.NoError(t, err)
		back, err := Convert(there, "EUR", rates)
		require.NoError(t, err)
		assert.InEpsilon(t, x, back.AsFloat(), 1e-3)
	}
}

func TestRates_Staleness(t *testing.T) {
	now := time.Date(2024, time.January, 15, 16, 0, 0, 0, time.UTC)
	rates := MustRates(rate("EUR", "USD", 1.1, now.Add(-48*time.Hour)))

	_, err := rates.Rate("EUR", "USD")
	assert.NoError(t, err, "staleness is not checked by default")

	_, err = rates.Within(now, 72*time.Hour).Rate("EUR", "USD")
	assert.NoError(t, err)

	_, err = rates.Within(now, 24*time.Hour).Rate("USD", "EUR")
	var mre *MissingRateError
	require.ErrorAs(t, err, &mre)
	assert.True(t, mre.Stale)
	assert.Equal(t, "USD", mre.From)
}

func TestRates_Add(t *testing.T) {
	var r Rates
	assert.ErrorIs(t, r.Add(Rate{From: "EUR", To: "USD", Rate: decimal.Zero}), ErrValidation)
	assert.ErrorIs(t, r.Add(Rate{From: "EUR", To: "EUR", Rate: decimal.NewFromInt(1)}), ErrValidation)
	assert.ErrorIs(t, r.Add(Rate{From: "EUR", To: "usd", Rate: decimal.NewFromInt(1)}), ErrValidation)
	assert.Equal(t, 0, r.Len())

	require.NoError(t, r.Add(Rate{From: "EUR", To: "USD", Rate: decimal.NewFromFloat(1.1)}))
	require.NoError(t, r.Add(Rate{From: "EUR", To: "USD", Rate: decimal.NewFromFloat(1.2)}))
	assert.Equal(t, 1, r.Len())
	got, err := r.Rate("EUR", "USD")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromFloat(1.2)))
}
