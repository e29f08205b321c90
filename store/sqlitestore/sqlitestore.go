// Package sqlitestore keeps portfolios and their history in a SQLite database.
//
// Portfolios are stored as JSON documents. Each snapshot is a row keyed by its
// RFC 3339 instant, with its per position breakdown encoded with msgpack.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/etnz/holdings"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS portfolios (
	owner      TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
	owner           TEXT NOT NULL REFERENCES portfolios(owner) ON DELETE CASCADE,
	at              TEXT NOT NULL,
	currency        TEXT NOT NULL,
	total_value     TEXT NOT NULL,
	cash            TEXT NOT NULL,
	total_gain_loss TEXT NOT NULL,
	positions       BLOB NOT NULL,
	PRIMARY KEY (owner, at)
);
`

// Store is a holdings.Store backed by a SQLite database.
type Store struct {
	conn *sql.DB
	log  zerolog.Logger
}

var _ holdings.Store = (*Store)(nil)

// Open opens or creates the database at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	// Use WAL mode for better concurrency
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{
		conn: conn,
		log:  log.With().Str("component", "sqlitestore").Str("path", path).Logger(),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Load(ctx context.Context, owner string) (*holdings.Portfolio, error) {
	var data string
	err := s.conn.QueryRowContext(ctx, `SELECT data FROM portfolios WHERE owner = ?`, owner).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, holdings.ErrOwnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio of %q: %w", owner, err)
	}
	p := new(holdings.Portfolio)
	if err := p.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio of %q: %w", owner, err)
	}
	return p, nil
}

func (s *Store) Save(ctx context.Context, p *holdings.Portfolio) error {
	data, err := p.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO portfolios (owner, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		p.Owner(), string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save portfolio of %q: %w", p.Owner(), err)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, owner string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM portfolios WHERE owner = ?`, owner).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return holdings.ErrOwnerNotFound
	}
	return err
}

// entry is the msgpack encoding of a holdings.SnapshotEntry.
type entry struct {
	Symbol string  `msgpack:"s"`
	Value  string  `msgpack:"v"`
	Weight float64 `msgpack:"w"`
}

func (s *Store) LoadHistory(ctx context.Context, owner string) (*holdings.History, error) {
	if err := s.exists(ctx, s.conn, owner); err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT at, currency, total_value, cash, total_gain_loss, positions
		FROM snapshots WHERE owner = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query history of %q: %w", owner, err)
	}
	defer rows.Close()

	var snapshots []holdings.Snapshot
	for rows.Next() {
		var (
			at, cur, total, cash, gain string
			blob                       []byte
		)
		if err := rows.Scan(&at, &cur, &total, &cash, &gain, &blob); err != nil {
			return nil, err
		}
		snap, err := decodeSnapshot(at, cur, total, cash, gain, blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode snapshot of %q: %w", owner, err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return holdings.NewHistory(snapshots...)
}

func decodeSnapshot(at, cur, total, cash, gain string, blob []byte) (holdings.Snapshot, error) {
	var snap holdings.Snapshot
	var err error
	if snap.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
		return snap, err
	}
	if snap.TotalValue, err = holdings.ParseMoney(total, cur); err != nil {
		return snap, err
	}
	if snap.Cash, err = holdings.ParseMoney(cash, cur); err != nil {
		return snap, err
	}
	if snap.TotalGainLoss, err = holdings.ParseMoney(gain, cur); err != nil {
		return snap, err
	}
	var entries []entry
	if err := msgpack.Unmarshal(blob, &entries); err != nil {
		return snap, err
	}
	for _, e := range entries {
		value, err := holdings.ParseMoney(e.Value, cur)
		if err != nil {
			return snap, err
		}
		snap.Positions = append(snap.Positions, holdings.SnapshotEntry{Symbol: e.Symbol, Value: value, Weight: holdings.Percent(e.Weight)})
	}
	return snap, nil
}

// SaveHistory replaces the history of owner in a single transaction.
func (s *Store) SaveHistory(ctx context.Context, owner string, h *holdings.History) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.exists(ctx, tx, owner); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE owner = ?`, owner); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshots (owner, at, currency, total_value, cash, total_gain_loss, positions)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	n := 0
	for snap := range h.Range(time.Time{}, time.Time{}) {
		entries := make([]entry, len(snap.Positions))
		for i, e := range snap.Positions {
			entries[i] = entry{Symbol: e.Symbol, Value: e.Value.Decimal().String(), Weight: float64(e.Weight)}
		}
		blob, err := msgpack.Marshal(entries)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, owner, snap.At.Format(time.RFC3339Nano), snap.TotalValue.Currency(),
			snap.TotalValue.Decimal().String(), snap.Cash.Decimal().String(), snap.TotalGainLoss.Decimal().String(), blob)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot at %s: %w", snap.At.Format(time.RFC3339), err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug().Str("owner", owner).Int("snapshots", n).Msg("History saved")
	return nil
}

func (s *Store) Delete(ctx context.Context, owner string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM portfolios WHERE owner = ?`, owner)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio of %q: %w", owner, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return holdings.ErrOwnerNotFound
	}
	return nil
}

func (s *Store) Owners(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT owner FROM portfolios ORDER BY owner`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}
