package holdings

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ErrOwnerNotFound is returned by stores for owners without a portfolio.
var ErrOwnerNotFound = errors.New("owner not found")

// Store persists portfolios and their history, keyed by owner.
//
// Loads and saves are full-object operations and a save is atomic: a failed
// save leaves the previous state readable.
type Store interface {
	// Load returns the portfolio of owner, or ErrOwnerNotFound.
	Load(ctx context.Context, owner string) (*Portfolio, error)
	// Save writes the portfolio under its owner.
	Save(ctx context.Context, p *Portfolio) error
	// LoadHistory returns the history of owner, empty when nothing was recorded yet.
	LoadHistory(ctx context.Context, owner string) (*History, error)
	// SaveHistory writes the history of owner. The owner must exist.
	SaveHistory(ctx context.Context, owner string, h *History) error
	// Delete removes the portfolio and history of owner.
	Delete(ctx context.Context, owner string) error
	// Owners lists owners with a portfolio, sorted.
	Owners(ctx context.Context) ([]string, error)
}

// Slug returns the canonical owner identifier of a display name: lower case,
// with spaces and dashes turned into underscores and other symbols dropped.
func Slug(name string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '-':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "", invalid("owner", "%q has no usable character", name)
	}
	return b.String(), nil
}

// MemoryStore is a Store keeping encoded state in memory.
type MemoryStore struct {
	mu         sync.Mutex
	portfolios map[string][]byte
	histories  map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		portfolios: make(map[string][]byte),
		histories:  make(map[string][]byte),
	}
}

func (s *MemoryStore) Load(ctx context.Context, owner string) (*Portfolio, error) {
	s.mu.Lock()
	data, ok := s.portfolios[owner]
	s.mu.Unlock()
	if !ok {
		return nil, ErrOwnerNotFound
	}
	p := new(Portfolio)
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *MemoryStore) Save(ctx context.Context, p *Portfolio) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolios[p.Owner()] = data
	return nil
}

func (s *MemoryStore) LoadHistory(ctx context.Context, owner string) (*History, error) {
	s.mu.Lock()
	_, exists := s.portfolios[owner]
	data, ok := s.histories[owner]
	s.mu.Unlock()
	if !exists {
		return nil, ErrOwnerNotFound
	}
	if !ok {
		return NewHistory()
	}
	var snapshots []Snapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, err
	}
	return NewHistory(snapshots...)
}

func (s *MemoryStore) SaveHistory(ctx context.Context, owner string, h *History) error {
	data, err := json.Marshal(h.Snapshots())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.portfolios[owner]; !ok {
		return ErrOwnerNotFound
	}
	s.histories[owner] = data
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.portfolios[owner]; !ok {
		return ErrOwnerNotFound
	}
	delete(s.portfolios, owner)
	delete(s.histories, owner)
	return nil
}

func (s *MemoryStore) Owners(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.portfolios)), nil
}
