package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/scalper/ledger"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS ledger_snapshots (
	name TEXT PRIMARY KEY,
	body TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// snapshotName is the single row the ledger lives in.
const snapshotName = "ledger"

// SQLite keeps the snapshot as one row of an embedded database. It can share
// a file with the trade journal.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(snapshotSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context) (*ledger.GlobalState, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM ledger_snapshots WHERE name = ?`, snapshotName).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: sqlite load: %w", err)
	}

	g, err := Decode([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("store: sqlite: %w", err)
	}
	return g, nil
}

func (s *SQLite) Save(ctx context.Context, g *ledger.GlobalState) error {
	data, err := Encode(g)
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: sqlite begin: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_snapshots (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		snapshotName, string(data), time.Now().UTC())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("store: sqlite save: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: sqlite commit: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
