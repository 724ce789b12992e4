package sqlite

import (
	"context"
	"database/sql"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type queries struct {
	db dbtx
}

const accountColumns = `id, portal, username, password, question, answer, created_at, updated_at`

const createAccount = `INSERT INTO accounts (` + accountColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const getAccountByID = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE portal = ? AND username = ?`

const listAccounts = `SELECT ` + accountColumns + ` FROM accounts ORDER BY portal, username`

const updateAccountSecrets = `UPDATE accounts
SET password = ?, question = ?, answer = ?, updated_at = ?
WHERE id = ?`

const deleteAccount = `DELETE FROM accounts WHERE id = ?`

const putSnapshot = `INSERT INTO snapshots (id, account_id, sealed, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (account_id) DO UPDATE SET
    id = excluded.id,
    sealed = excluded.sealed,
    created_at = excluded.created_at`

const getSnapshot = `SELECT id, account_id, sealed, created_at FROM snapshots WHERE account_id = ?`

const deleteSnapshot = `DELETE FROM snapshots WHERE account_id = ?`

const recordAttempt = `INSERT INTO attempts (id, account_id, portal, outcome, attempts, fatal, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const listAttempts = `SELECT id, account_id, portal, outcome, attempts, fatal, error, created_at
FROM attempts
WHERE account_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`

// rowsAffected maps an update or delete that touched nothing to
// sql.ErrNoRows.
func rowsAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
