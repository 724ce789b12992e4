package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/xdauth/internal/vault"
)

type txStore struct {
	tx *sql.Tx
	q  *queries
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx, q: &queries{db: tx}}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close is a no-op; the outer store owns the database.
func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (vault.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx vault.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Accounts() vault.Accounts   { return &accountsRepo{q: t.q} }
func (t *txStore) Snapshots() vault.Snapshots { return &snapshotsRepo{q: t.q} }
func (t *txStore) Attempts() vault.Attempts   { return &attemptsRepo{q: t.q} }

// ApplyMigrations is a no-op; migrations run before any transaction.
func (t *txStore) ApplyMigrations() error { return nil }
