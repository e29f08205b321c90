package holdings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Manager loads, changes and saves portfolios through a Store.
//
// Operations on the same owner are serialized. Different owners proceed concurrently.
type Manager struct {
	store Store
	cfg   Config
	log   zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager returns a Manager applying cfg to portfolios kept in store.
func NewManager(store Store, cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "manager").Logger(),
		locks: make(map[string]*sync.Mutex),
	}
}

// Config returns the policies applied by the manager.
func (m *Manager) Config() Config { return m.cfg }

// lock acquires the owner's mutex and returns the slug and the unlock function.
func (m *Manager) lock(owner string) (string, func(), error) {
	slug, err := Slug(owner)
	if err != nil {
		return "", nil, err
	}
	m.mu.Lock()
	l, ok := m.locks[slug]
	if !ok {
		l = new(sync.Mutex)
		m.locks[slug] = l
	}
	m.mu.Unlock()
	l.Lock()
	return slug, l.Unlock, nil
}

// Create creates an empty portfolio for owner.
func (m *Manager) Create(ctx context.Context, owner, base string, cash Money) (*Portfolio, error) {
	slug, unlock, err := m.lock(owner)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := m.store.Load(ctx, slug); err == nil {
		return nil, invalid("owner", "%q already has a portfolio", slug)
	} else if !errors.Is(err, ErrOwnerNotFound) {
		return nil, err
	}
	p, err := New(slug, base, cash)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("could not save portfolio of %q: %w", slug, err)
	}
	m.log.Info().Str("owner", slug).Str("base", p.BaseCurrency()).Str("cash", p.Cash().String()).Msg("Portfolio created")
	return p, nil
}

// Portfolio returns the current portfolio of owner.
func (m *Manager) Portfolio(ctx context.Context, owner string) (*Portfolio, error) {
	slug, unlock, err := m.lock(owner)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return m.store.Load(ctx, slug)
}

// Apply applies transactions to the portfolio of owner and saves it.
// Nothing is saved unless every transaction succeeds.
func (m *Manager) Apply(ctx context.Context, owner string, txs ...Transaction) (*Portfolio, error) {
	slug, unlock, err := m.lock(owner)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := m.store.Load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := p.Apply(m.cfg, txs...); err != nil {
		m.log.Warn().Err(err).Str("owner", slug).Int("transactions", len(txs)).Msg("Transactions rejected")
		return nil, err
	}
	if err := m.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("could not save portfolio of %q: %w", slug, err)
	}
	for _, tx := range txs {
		m.log.Info().Str("owner", slug).Str("command", string(tx.What())).Str("date", tx.When().String()).Msg("Transaction applied")
	}
	return p, nil
}

// Value valuates the portfolio of owner on market, rejecting rates older
// than the configured maximum age.
func (m *Manager) Value(ctx context.Context, owner string, market *Market) (*Valuation, error) {
	p, err := m.Portfolio(ctx, owner)
	if err != nil {
		return nil, err
	}
	return Valuate(p, m.market(market))
}

func (m *Manager) market(market *Market) *Market {
	if market == nil || m.cfg.MaxRateAge <= 0 {
		return market
	}
	mk := *market
	mk.Rates = market.Rates.Within(market.On, m.cfg.MaxRateAge)
	return &mk
}

// Record valuates the portfolio of owner on market and appends the snapshot
// to its history at instant at.
func (m *Manager) Record(ctx context.Context, owner string, market *Market, at time.Time) (Snapshot, error) {
	slug, unlock, err := m.lock(owner)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	p, err := m.store.Load(ctx, slug)
	if err != nil {
		return Snapshot{}, err
	}
	v, err := Valuate(p, m.market(market))
	if err != nil {
		return Snapshot{}, err
	}
	h, err := m.store.LoadHistory(ctx, slug)
	if err != nil {
		return Snapshot{}, err
	}
	s, err := h.Record(v, at)
	if err != nil {
		return Snapshot{}, err
	}
	if err := m.store.SaveHistory(ctx, slug, h); err != nil {
		return Snapshot{}, fmt.Errorf("could not save history of %q: %w", slug, err)
	}
	m.log.Info().Str("owner", slug).Time("at", at).Str("total", s.TotalValue.String()).Msg("Snapshot recorded")
	return s, nil
}

// History returns the snapshots recorded for owner.
func (m *Manager) History(ctx context.Context, owner string) (*History, error) {
	slug, unlock, err := m.lock(owner)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return m.store.LoadHistory(ctx, slug)
}

// Delete removes the portfolio and history of owner.
func (m *Manager) Delete(ctx context.Context, owner string) error {
	slug, unlock, err := m.lock(owner)
	if err != nil {
		return err
	}
	defer unlock()
	if err := m.store.Delete(ctx, slug); err != nil {
		return err
	}
	m.log.Info().Str("owner", slug).Msg("Portfolio deleted")
	return nil
}

// Owners lists the owners with a portfolio.
func (m *Manager) Owners(ctx context.Context) ([]string, error) {
	return m.store.Owners(ctx)
}
