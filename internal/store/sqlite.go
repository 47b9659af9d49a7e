package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/fx"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

func newSQLite(p Params) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", p.Config.Storage.Path+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	s := &sqliteStore{db: db}
	p.LC.Append(fx.StopHook(db.Close))

	return s, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS session_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	return value, nil
}

func (s *sqliteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_state WHERE key = ?`, key)
	return err
}
