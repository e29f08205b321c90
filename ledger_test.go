package holdings

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPortfolio(t *testing.T, cash float64) *Portfolio {
	t.Helper()
	p, err := New("alice", "USD", USD(cash))
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	p, err := New("alice", "usd", NO(100))
	require.NoError(t, err)
	assert.Equal(t, "USD", p.BaseCurrency())
	assertMoney(t, USD(100), p.Cash())

	_, err = New("", "USD", USD(0))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = New("alice", "USD", EUR(10))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = New("alice", "USD", USD(-10))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = New("alice", "ABC", USD(0))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBuy(t *testing.T) {
	p := newPortfolio(t, 0)
	b := buy(day(15), "aapl", 50, USD(175))
	b.Sector, b.Exchange = "Technology", "NASDAQ"
	require.NoError(t, p.Apply(DefaultConfig(), b, buy(day(16), "AAPL", 10, USD(181))))

	pos, ok := p.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, "USD", pos.Currency)
	assert.Equal(t, "Technology", pos.Sector)
	assert.Equal(t, "NASDAQ", pos.Exchange)
	require.Len(t, pos.Lots, 2)
	assertQuantity(t, Q(60), pos.Aggregate().Shares)
	assertMoney(t, USD(8750+1810), pos.Aggregate().CostBasis)
	assertMoney(t, USD(0), p.Cash())
}

func TestBuy_SumOfShares(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	p := newPortfolio(t, 0)
	var shares, cost float64
	for i := range 50 {
		s, price := float64(1+r.Intn(100)), float64(1+r.Intn(500))
		shares += s
		cost += s * price
		require.NoError(t, p.Apply(DefaultConfig(), buy(day(1+i%28), "MSFT", s, USD(price))))
	}
	pos, _ := p.Position("MSFT")
	h := pos.Aggregate()
	assert.InDelta(t, shares, h.Shares.AsFloat(), 1e-9)
	assert.InDelta(t, cost/shares, h.AvgCost.AsFloat(), 1e-9)
}

func TestBuy_Funded(t *testing.T) {
	p := newPortfolio(t, 10000)
	b := buy(day(15), "AAPL", 50, USD(175))
	b.Funded = true
	require.NoError(t, p.Apply(DefaultConfig(), b))
	assertMoney(t, USD(1250), p.Cash())

	err := p.Apply(DefaultConfig(), b)
	var ferr *InsufficientFundsError
	require.ErrorAs(t, err, &ferr)
	assertMoney(t, USD(8750), ferr.Required)
	assertMoney(t, USD(1250), ferr.Available)
	pos, _ := p.Position("AAPL")
	assertQuantity(t, Q(50), pos.Aggregate().Shares)
}

func TestBuy_ForeignCurrency(t *testing.T) {
	now := time.Now()
	p := newPortfolio(t, 5000)
	b := buy(day(15), "ASML", 2, EUR(600))
	b.Currency = "EUR"
	b.Funded = true
	b.Rates = MustRates(rate("EUR", "USD", 1.1, now))
	require.NoError(t, p.Apply(DefaultConfig(), b))
	assertMoney(t, USD(5000-1320), p.Cash())

	// a USD lot added to the EUR position stores its purchase rate.
	b2 := buy(day(16), "ASML", 1, USD(660))
	err := p.Apply(DefaultConfig(), b2)
	assert.ErrorIs(t, err, ErrMissingRate)

	b2.Rates = b.Rates
	require.NoError(t, p.Apply(DefaultConfig(), b2))
	pos, _ := p.Position("ASML")
	require.Len(t, pos.Lots, 2)
	assert.Equal(t, "USD", pos.Lots[1].Currency())
	assert.InDelta(t, 1800, pos.Aggregate().CostBasis.AsFloat(), 1e-9)
	assert.Equal(t, "EUR", pos.Aggregate().CostBasis.Currency())
}

func TestBuy_Invalid(t *testing.T) {
	p := newPortfolio(t, 0)
	for _, b := range []Buy{
		buy(day(1), "", 1, USD(1)),
		buy(day(1), "AAPL", 0, USD(1)),
		buy(day(1), "AAPL", 1, USD(0)),
		buy(day(1), "AAPL", 1, M(1, "XXX1")),
	} {
		assert.ErrorIs(t, p.Apply(DefaultConfig(), b), ErrValidation)
	}
	assert.Empty(t, p.Positions())
}

func TestSell(t *testing.T) {
	p := newPortfolio(t, 0)
	require.NoError(t, p.Apply(DefaultConfig(),
		buy(day(1), "AAPL", 10, USD(100)),
		buy(day(2), "AAPL", 10, USD(120)),
	))

	require.NoError(t, p.Apply(DefaultConfig(), NewSell(day(3), "AAPL", Q(15))))
	pos, _ := p.Position("AAPL")
	h := pos.Aggregate()
	assertQuantity(t, Q(5), h.Shares)
	assertMoney(t, USD(600), h.CostBasis)
	assertMoney(t, USD(120), h.AvgCost)
	assert.Empty(t, p.Realizations(), "unpriced sells realize nothing")
}

func TestSell_Errors(t *testing.T) {
	p := newPortfolio(t, 0)
	require.NoError(t, p.Apply(DefaultConfig(), buy(day(1), "AAPL", 10, USD(100))))

	err := p.Apply(DefaultConfig(), NewSell(day(2), "MSFT", Q(1)))
	var nerr *PositionNotFoundError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "MSFT", nerr.Symbol)

	err = p.Apply(DefaultConfig(), NewSell(day(2), "AAPL", Q(11)))
	assert.ErrorIs(t, err, ErrInsufficientShares)

	s := NewSell(day(2), "AAPL", Q(1))
	s.Settle = true
	assert.ErrorIs(t, p.Apply(DefaultConfig(), s), ErrValidation)

	s.Price = USD(-1)
	assert.ErrorIs(t, p.Apply(DefaultConfig(), s), ErrValidation)
}

func TestSell_Priced(t *testing.T) {
	p := newPortfolio(t, 0)
	require.NoError(t, p.Apply(DefaultConfig(),
		buy(day(1), "AAPL", 10, USD(100)),
		buy(day(2), "AAPL", 10, USD(120)),
	))

	s := NewSell(day(3), "AAPL", Q(15))
	s.Price = USD(130)
	s.Settle = true
	require.NoError(t, p.Apply(DefaultConfig(), s))

	r := p.Realizations("aapl")
	require.Len(t, r, 1)
	assertMoney(t, USD(1950), r[0].Proceeds)
	assertMoney(t, USD(1600), r[0].Cost)
	assertMoney(t, USD(350), r[0].Gain())
	assertMoney(t, USD(1950), p.Cash())
}

func TestSell_Rules(t *testing.T) {
	setup := func(cfg Config) *Portfolio {
		p := newPortfolio(t, 0)
		require.NoError(t, p.Apply(cfg,
			buy(day(1), "AAPL", 10, USD(100)),
			buy(day(2), "AAPL", 10, USD(120)),
		))
		return p
	}

	t.Run("configured lifo", func(t *testing.T) {
		cfg := Config{Matching: LIFO}
		p := setup(cfg)
		require.NoError(t, p.Apply(cfg, NewSell(day(3), "AAPL", Q(15))))
		pos, _ := p.Position("AAPL")
		assertMoney(t, USD(500), pos.Aggregate().CostBasis)
	})
	t.Run("explicit rule wins", func(t *testing.T) {
		cfg := Config{Matching: LIFO}
		p := setup(cfg)
		s := NewSell(day(3), "AAPL", Q(15))
		s.Rule = FIFO
		require.NoError(t, p.Apply(cfg, s))
		pos, _ := p.Position("AAPL")
		assertMoney(t, USD(600), pos.Aggregate().CostBasis)
	})
	t.Run("specific lots", func(t *testing.T) {
		cfg := DefaultConfig()
		p := setup(cfg)
		pos, _ := p.Position("AAPL")
		s := NewSell(day(3), "AAPL", Q(10))
		s.Rule, s.Lots = SpecificLots, append(s.Lots, pos.Lots[1].ID)
		require.NoError(t, p.Apply(cfg, s))
		pos, _ = p.Position("AAPL")
		assertMoney(t, USD(1000), pos.Aggregate().CostBasis)
	})
}

func TestSell_Retention(t *testing.T) {
	for _, tt := range []struct {
		policy RetentionPolicy
		kept   bool
	}{
		{KeepClosed, true},
		{RemoveClosed, false},
	} {
		t.Run(tt.policy.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Retention = tt.policy
			p := newPortfolio(t, 0)
			require.NoError(t, p.Apply(cfg, buy(day(1), "AAPL", 10, USD(100))))

			s := NewSell(day(2), "AAPL", Q(10))
			s.Price = USD(90)
			require.NoError(t, p.Apply(cfg, s))

			pos, ok := p.Position("AAPL")
			assert.Equal(t, tt.kept, ok)
			if ok {
				assert.True(t, pos.IsClosed())
				assert.True(t, pos.Aggregate().Shares.IsZero())
			}
			assert.Len(t, p.Realizations(), 1)
		})
	}
}

func TestBuy_ReopenRemovedPosition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retention = RemoveClosed
	p := newPortfolio(t, 0)
	require.NoError(t, p.Apply(cfg, buy(day(1), "AAA", 10, USD(100))))
	s := NewSell(day(2), "AAA", Q(10))
	s.Price = USD(120)
	require.NoError(t, p.Apply(cfg, s))
	_, ok := p.Position("AAA")
	require.False(t, ok)

	// the realized gain is in USD, the position cannot come back in EUR.
	euro := buy(day(3), "AAA", 5, EUR(50))
	euro.Currency = "EUR"
	assert.ErrorIs(t, p.Apply(cfg, euro), ErrValidation)

	// without an explicit currency it reopens in USD, converting the EUR price.
	assert.ErrorIs(t, p.Apply(cfg, buy(day(3), "AAA", 5, EUR(50))), ErrMissingRate)
	reopen := buy(day(3), "AAA", 5, EUR(50))
	reopen.Rates = MustRates(rate("EUR", "USD", 1.1, now))
	require.NoError(t, p.Apply(cfg, reopen))
	pos, ok := p.Position("AAA")
	require.True(t, ok)
	assert.Equal(t, "USD", pos.Currency)
	assertMoney(t, USD(275), pos.Aggregate().CostBasis)

	market := NewMarket(now)
	require.NoError(t, market.SetQuote("AAA", EUR(60), now))
	require.NoError(t, market.AddRate(rate("EUR", "USD", 1.1, now)))
	v, err := Valuate(p, market)
	require.NoError(t, err)
	pv, ok := v.Position("AAA")
	require.True(t, ok)
	assertMoney(t, USD(200), pv.Realized)
	assertMoney(t, USD(330), pv.MarketValueBase)
}

func TestApply_Atomic(t *testing.T) {
	p := newPortfolio(t, 1000)
	require.NoError(t, p.Apply(DefaultConfig(), buy(day(1), "AAPL", 10, USD(100))))
	before := must(p.MarshalJSON())

	b := buy(day(2), "AAPL", 5, USD(100))
	b.Funded = true
	err := p.Apply(DefaultConfig(),
		b,
		Deposit{Date: day(2), Amount: USD(10)},
		NewSell(day(3), "AAPL", Q(100)),
	)
	require.ErrorIs(t, err, ErrInsufficientShares)
	assert.Contains(t, err.Error(), "transaction #3 (sell)")
	assert.JSONEq(t, string(before), string(must(p.MarshalJSON())))
}

func TestModify(t *testing.T) {
	p := newPortfolio(t, 0)
	require.NoError(t, p.Apply(DefaultConfig(), buy(day(1), "AAPL", 10, USD(100))))
	pos, _ := p.Position("AAPL")
	id := pos.Lots[0].ID

	require.NoError(t, p.Apply(DefaultConfig(),
		Modify{Symbol: "AAPL", Field: FieldSector, Value: "Technology"},
		Modify{Symbol: "AAPL", Field: FieldExchange, Value: "NASDAQ"},
		Modify{Symbol: "AAPL", Field: FieldLotPrice, Lot: id, Value: "105.5"},
		Modify{Symbol: "AAPL", Field: FieldLotDate, Lot: id, Value: "2024-01-03"},
		Modify{Symbol: "AAPL", Field: FieldLotNote, Lot: id, Value: "corrected"},
	))
	pos, _ = p.Position("AAPL")
	assert.Equal(t, "Technology", pos.Sector)
	assert.Equal(t, "NASDAQ", pos.Exchange)
	assertMoney(t, USD(105.5), pos.Lots[0].Price)
	assert.Equal(t, day(3), pos.Lots[0].Date)
	assert.Equal(t, "corrected", pos.Lots[0].Note)
	assertQuantity(t, Q(10), pos.Aggregate().Shares)

	for _, m := range []Modify{
		{Symbol: "AAPL", Field: FieldLotPrice, Lot: id, Value: "-1"},
		{Symbol: "AAPL", Field: FieldLotPrice, Lot: id, Value: "abc"},
		{Symbol: "AAPL", Field: FieldLotDate, Lot: id, Value: "yesterday"},
		{Symbol: "AAPL", Field: FieldLotNote, Value: "no lot"},
	} {
		assert.ErrorIs(t, p.Apply(DefaultConfig(), m), ErrValidation, m.Field.String())
	}
	assert.ErrorIs(t, p.Apply(DefaultConfig(), Modify{Symbol: "MSFT", Field: FieldSector}), ErrPositionNotFound)
}

func TestParseField(t *testing.T) {
	for f := FieldSector; f <= FieldLotNote; f++ {
		got, err := ParseField(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseField("shares")
	assert.Error(t, err)
}

func TestDepositWithdraw(t *testing.T) {
	now := time.Now()
	p := newPortfolio(t, 100)
	require.NoError(t, p.Apply(DefaultConfig(),
		Deposit{Date: day(1), Amount: USD(50)},
		Deposit{Date: day(1), Amount: EUR(100), Rates: MustRates(rate("EUR", "USD", 1.1, now))},
		Withdraw{Date: day(2), Amount: USD(60)},
	))
	assertMoney(t, USD(200), p.Cash())

	assert.ErrorIs(t, p.Apply(DefaultConfig(), Withdraw{Date: day(3), Amount: USD(201)}), ErrInsufficientFunds)
	assert.ErrorIs(t, p.Apply(DefaultConfig(), Deposit{Date: day(3), Amount: USD(0)}), ErrValidation)
	assert.ErrorIs(t, p.Apply(DefaultConfig(), Deposit{Date: day(3), Amount: EUR(1)}), ErrMissingRate)
	assertMoney(t, USD(200), p.Cash())
}

func TestPortfolio_JSON(t *testing.T) {
	p := newPortfolio(t, 100)
	b := buy(day(1), "AAPL", 10, USD(100))
	b.Name, b.ISIN, b.AssetType = "Apple Inc.", "US0378331005", "stock"
	s := NewSell(day(2), "AAPL", Q(4))
	s.Price = USD(110)
	require.NoError(t, p.Apply(DefaultConfig(), b, s))

	data := must(p.MarshalJSON())
	var got Portfolio
	require.NoError(t, got.UnmarshalJSON(data))
	assert.Equal(t, p.Owner(), got.Owner())
	assertMoney(t, p.Cash(), got.Cash())
	assert.JSONEq(t, string(data), string(must(got.MarshalJSON())))
	assert.Len(t, got.Realizations(), 1)

	assert.Error(t, got.UnmarshalJSON([]byte(`{"owner":"bob","base_currency":"USD","cash":{"amount":"0"},"positions":[{"symbol":"A","currency":"USD","lots":[{"shares":"-1","price":{"amount":"1","currency":"USD"}}]}]}`)))
}
