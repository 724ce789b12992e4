package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/xdauth/internal/vault"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Store struct {
	db  *sql.DB
	q   *queries
	dsn string
}

var _ vault.Store = (*Store)(nil)

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// One connection keeps the pragma below in effect for every statement
	// and serialises writers.
	db.SetMaxOpenConns(1)

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		q:   &queries{db: db},
		dsn: dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Tx(ctx context.Context) (vault.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx vault.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Accounts() vault.Accounts   { return &accountsRepo{q: s.q} }
func (s *Store) Snapshots() vault.Snapshots { return &snapshotsRepo{q: s.q} }
func (s *Store) Attempts() vault.Attempts   { return &attemptsRepo{q: s.q} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return vault.ErrNotFound
	}
	return err
}

func mapConstraint(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return errors.Join(vault.ErrAlreadyExists, err)
	}
	return err
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
