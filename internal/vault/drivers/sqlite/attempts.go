package sqlite

import (
	"context"

	"github.com/aussiebroadwan/xdauth/internal/login"
	"github.com/aussiebroadwan/xdauth/internal/vault"
	"github.com/aussiebroadwan/xdauth/pkg/idx"
)

type attemptsRepo struct {
	q *queries
}

func (r *attemptsRepo) RecordAttempt(ctx context.Context, a vault.Attempt) error {
	_, err := r.q.db.ExecContext(ctx, recordAttempt,
		a.ID.String(), a.AccountID.String(), string(a.Portal), string(a.Outcome),
		a.Attempts, a.Fatal, a.Error, toMillis(a.CreatedAt),
	)
	return err
}

func (r *attemptsRepo) ListAttempts(ctx context.Context, accountID idx.ID, limit int) ([]vault.Attempt, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := r.q.db.QueryContext(ctx, listAttempts, accountID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vault.Attempt
	for rows.Next() {
		var (
			a                         vault.Attempt
			id, account, portal, outc string
			createdMillis             int64
		)
		if err := rows.Scan(&id, &account, &portal, &outc, &a.Attempts, &a.Fatal, &a.Error, &createdMillis); err != nil {
			return nil, err
		}
		a.ID = idx.ID(id)
		a.AccountID = idx.ID(account)
		a.Portal = login.PortalKind(portal)
		a.Outcome = vault.Outcome(outc)
		a.CreatedAt = fromMillis(createdMillis)
		out = append(out, a)
	}
	return out, rows.Err()
}
