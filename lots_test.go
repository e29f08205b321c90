package holdings

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_AddLot(t *testing.T) {
	tests := []struct {
		name string
		lot  Lot
	}{
		{"zero shares", Lot{Date: day(1), Shares: Q(0), Price: USD(100)}},
		{"negative shares", Lot{Date: day(1), Shares: Q(-1), Price: USD(100)}},
		{"zero price", Lot{Date: day(1), Shares: Q(10), Price: USD(0)}},
		{"negative price", Lot{Date: day(1), Shares: Q(10), Price: USD(-5)}},
		{"unknown currency", Lot{Date: day(1), Shares: Q(10), Price: M(5, "XYZ")}},
		{"foreign lot without rate", Lot{Date: day(1), Shares: Q(10), Price: EUR(5)}},
		{"negative rate", Lot{Date: day(1), Shares: Q(10), Price: EUR(5), FX: decimal.NewFromInt(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := Position{Symbol: "AAPL", Currency: "USD"}
			err := pos.AddLot(tt.lot)
			assert.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
			assert.Empty(t, pos.Lots)
		})
	}

	t.Run("assigns ids", func(t *testing.T) {
		pos := Position{Symbol: "AAPL", Currency: "USD"}
		require.NoError(t, pos.AddLot(Lot{Date: day(1), Shares: Q(10), Price: USD(100)}))
		require.NoError(t, pos.AddLot(Lot{Date: day(1), Shares: Q(10), Price: USD(100)}))
		require.Len(t, pos.Lots, 2)
		assert.NotEqual(t, uuid.Nil, pos.Lots[0].ID)
		assert.NotEqual(t, pos.Lots[0].ID, pos.Lots[1].ID)
		assert.True(t, pos.Lots[0].FX.Equal(decimal.NewFromInt(1)))
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		pos := Position{Symbol: "AAPL", Currency: "USD"}
		id := uuid.New()
		require.NoError(t, pos.AddLot(Lot{ID: id, Date: day(1), Shares: Q(10), Price: USD(100)}))
		assert.ErrorIs(t, pos.AddLot(Lot{ID: id, Date: day(2), Shares: Q(1), Price: USD(100)}), ErrValidation)
	})
}

// newPosition returns a USD position with lots of (shares, price) bought on consecutive days.
func newPosition(t *testing.T, lots ...[2]float64) *Position {
	t.Helper()
	pos := &Position{Symbol: "AAPL", Currency: "USD"}
	for i, l := range lots {
		require.NoError(t, pos.AddLot(Lot{Date: day(i + 1), Shares: Q(l[0]), Price: USD(l[1])}))
	}
	return pos
}

func TestPosition_RemoveShares_FIFO(t *testing.T) {
	pos := newPosition(t, [2]float64{10, 100}, [2]float64{10, 120})

	consumed, err := pos.RemoveShares(Q(15), FIFO)
	require.NoError(t, err)

	require.Len(t, consumed, 2)
	assertQuantity(t, Q(10), consumed[0].Shares)
	assertMoney(t, USD(1000), consumed[0].Cost)
	assertQuantity(t, Q(5), consumed[1].Shares)
	assertMoney(t, USD(600), consumed[1].Cost)

	require.Len(t, pos.Lots, 1)
	assertQuantity(t, Q(5), pos.Lots[0].Shares)
	assertMoney(t, USD(120), pos.Lots[0].Price)
	h := pos.Aggregate()
	assertQuantity(t, Q(5), h.Shares)
	assertMoney(t, USD(600), h.CostBasis)
}

func TestPosition_RemoveShares_FIFOUsesPurchaseDate(t *testing.T) {
	pos := &Position{Symbol: "AAPL", Currency: "USD"}
	require.NoError(t, pos.AddLot(Lot{Date: day(2), Shares: Q(10), Price: USD(120)}))
	require.NoError(t, pos.AddLot(Lot{Date: day(1), Shares: Q(10), Price: USD(100)}))

	_, err := pos.RemoveShares(Q(10), FIFO)
	require.NoError(t, err)
	require.Len(t, pos.Lots, 1)
	assertMoney(t, USD(120), pos.Lots[0].Price)
}

func TestPosition_RemoveShares_TieBreak(t *testing.T) {
	same := func() *Position {
		pos := &Position{Symbol: "AAPL", Currency: "USD"}
		require.NoError(t, pos.AddLot(Lot{Date: day(1), Shares: Q(10), Price: USD(100)}))
		require.NoError(t, pos.AddLot(Lot{Date: day(1), Shares: Q(10), Price: USD(110)}))
		return pos
	}

	fifo := same()
	_, err := fifo.RemoveShares(Q(10), FIFO)
	require.NoError(t, err)
	require.Len(t, fifo.Lots, 1)
	assertMoney(t, USD(110), fifo.Lots[0].Price)

	lifo := same()
	_, err = lifo.RemoveShares(Q(10), LIFO)
	require.NoError(t, err)
	require.Len(t, lifo.Lots, 1)
	assertMoney(t, USD(100), lifo.Lots[0].Price)
}

func TestPosition_RemoveShares_LIFO(t *testing.T) {
	pos := newPosition(t, [2]float64{10, 100}, [2]float64{10, 120})

	_, err := pos.RemoveShares(Q(15), LIFO)
	require.NoError(t, err)
	require.Len(t, pos.Lots, 1)
	assertQuantity(t, Q(5), pos.Lots[0].Shares)
	assertMoney(t, USD(500), pos.Aggregate().CostBasis)
}

func TestPosition_RemoveShares_SpecificLots(t *testing.T) {
	pos := newPosition(t, [2]float64{10, 100}, [2]float64{10, 120}, [2]float64{10, 140})
	second, third := pos.Lots[1].ID, pos.Lots[2].ID

	consumed, err := pos.RemoveShares(Q(15), SpecificLots, third, second)
	require.NoError(t, err)
	require.Len(t, consumed, 2)
	assert.Equal(t, third, consumed[0].Lot)
	assert.Equal(t, second, consumed[1].Lot)
	assertMoney(t, USD(1400+5*120), consumed[0].Cost.Add(consumed[1].Cost))
	assertQuantity(t, Q(15), pos.Aggregate().Shares)

	t.Run("named lots too small", func(t *testing.T) {
		pos := newPosition(t, [2]float64{10, 100}, [2]float64{10, 120})
		_, err := pos.RemoveShares(Q(15), SpecificLots, pos.Lots[0].ID)
		assert.ErrorIs(t, err, ErrInsufficientShares)
		assertQuantity(t, Q(20), pos.Aggregate().Shares)
	})
	t.Run("unknown lot", func(t *testing.T) {
		pos := newPosition(t, [2]float64{10, 100})
		_, err := pos.RemoveShares(Q(5), SpecificLots, uuid.New())
		assert.ErrorIs(t, err, ErrValidation)
	})
	t.Run("no lot", func(t *testing.T) {
		pos := newPosition(t, [2]float64{10, 100})
		_, err := pos.RemoveShares(Q(5), SpecificLots)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestPosition_RemoveShares_Insufficient(t *testing.T) {
	pos := newPosition(t, [2]float64{10, 100}, [2]float64{10, 120})

	_, err := pos.RemoveShares(Q(21), FIFO)
	var serr *InsufficientSharesError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "AAPL", serr.Symbol)
	assertQuantity(t, Q(20), serr.Held)
	assert.Len(t, pos.Lots, 2)

	_, err = pos.RemoveShares(Q(0), FIFO)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPosition_RemoveShares_All(t *testing.T) {
	pos := newPosition(t, [2]float64{10, 100}, [2]float64{10, 120})

	_, err := pos.RemoveShares(Q(20), FIFO)
	require.NoError(t, err)
	assert.True(t, pos.IsClosed())
	h := pos.Aggregate()
	assert.True(t, h.Shares.IsZero())
	assert.True(t, h.CostBasis.IsZero())
	assert.True(t, h.AvgCost.IsZero())
	assert.True(t, h.FirstPurchase.IsZero())
}
