// Package jsonstore keeps portfolios in JSON files, one directory per owner.
//
//	<root>/<owner>/portfolio.json
//	<root>/<owner>/history.json
//
// Files are replaced atomically: a write goes to a temporary file in the same
// directory, is synced, then renamed over the previous version.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/etnz/holdings"
	"github.com/rs/zerolog"
)

const (
	portfolioFile = "portfolio.json"
	historyFile   = "history.json"
)

// Store is a holdings.Store backed by a directory.
type Store struct {
	root string
	log  zerolog.Logger
}

var _ holdings.Store = (*Store)(nil)

// New returns a Store rooted at dir, creating it if needed.
func New(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create store directory: %w", err)
	}
	return &Store{
		root: dir,
		log:  log.With().Str("component", "jsonstore").Str("root", dir).Logger(),
	}, nil
}

func (s *Store) path(owner, file string) string {
	return filepath.Join(s.root, owner, file)
}

func (s *Store) exists(owner string) bool {
	_, err := os.Stat(s.path(owner, portfolioFile))
	return err == nil
}

func (s *Store) Load(ctx context.Context, owner string) (*holdings.Portfolio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := new(holdings.Portfolio)
	if err := s.read(s.path(owner, portfolioFile), p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, holdings.ErrOwnerNotFound
		}
		return nil, fmt.Errorf("could not load portfolio of %q: %w", owner, err)
	}
	return p, nil
}

func (s *Store) Save(ctx context.Context, p *holdings.Portfolio) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(s.root, p.Owner()), 0o755); err != nil {
		return err
	}
	return s.write(s.path(p.Owner(), portfolioFile), p)
}

func (s *Store) LoadHistory(ctx context.Context, owner string) (*holdings.History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.exists(owner) {
		return nil, holdings.ErrOwnerNotFound
	}
	var snapshots []holdings.Snapshot
	if err := s.read(s.path(owner, historyFile), &snapshots); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("could not load history of %q: %w", owner, err)
	}
	return holdings.NewHistory(snapshots...)
}

func (s *Store) SaveHistory(ctx context.Context, owner string, h *holdings.History) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.exists(owner) {
		return holdings.ErrOwnerNotFound
	}
	return s.write(s.path(owner, historyFile), h.Snapshots())
}

func (s *Store) Delete(ctx context.Context, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.exists(owner) {
		return holdings.ErrOwnerNotFound
	}
	if err := os.RemoveAll(filepath.Join(s.root, owner)); err != nil {
		return err
	}
	s.log.Debug().Str("owner", owner).Msg("Owner directory removed")
	return nil
}

func (s *Store) Owners(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var owners []string
	for _, e := range entries {
		if e.IsDir() && s.exists(e.Name()) {
			owners = append(owners, e.Name())
		}
	}
	slices.Sort(owners)
	return owners, nil
}

func (s *Store) read(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// write replaces path with the JSON encoding of v.
func (s *Store) write(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp) // no-op once renamed

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	s.log.Debug().Str("file", path).Int("bytes", len(data)).Msg("File written")
	return nil
}
