package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/xdauth/internal/login"
	"github.com/aussiebroadwan/xdauth/internal/vault"
	"github.com/aussiebroadwan/xdauth/pkg/idx"
)

type accountsRepo struct {
	q *queries
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (vault.Account, error) {
	var (
		a                    vault.Account
		id, portal           string
		question             int
		createdAt, updatedAt int64
	)
	if err := row.Scan(&id, &portal, &a.Username, &a.Password, &question, &a.Answer, &createdAt, &updatedAt); err != nil {
		return vault.Account{}, err
	}
	a.ID = idx.ID(id)
	a.Portal = login.PortalKind(portal)
	a.Question = login.Question(question)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a vault.Account) error {
	_, err := r.q.db.ExecContext(ctx, createAccount,
		a.ID.String(), string(a.Portal), a.Username, a.Password,
		int(a.Question), a.Answer, toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id idx.ID) (vault.Account, error) {
	a, err := scanAccount(r.q.db.QueryRowContext(ctx, getAccountByID, id.String()))
	if err != nil {
		return vault.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) GetAccount(ctx context.Context, portal login.PortalKind, username string) (vault.Account, error) {
	a, err := scanAccount(r.q.db.QueryRowContext(ctx, getAccount, string(portal), username))
	if err != nil {
		return vault.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) ListAccounts(ctx context.Context) ([]vault.Account, error) {
	rows, err := r.q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vault.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *accountsRepo) UpdateAccountSecrets(ctx context.Context, a vault.Account) error {
	updatedAt := a.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	err := rowsAffected(r.q.db.ExecContext(ctx, updateAccountSecrets,
		a.Password, int(a.Question), a.Answer, toMillis(updatedAt), a.ID.String(),
	))
	return mapNotFound(err)
}

func (r *accountsRepo) DeleteAccount(ctx context.Context, id idx.ID) error {
	return mapNotFound(rowsAffected(r.q.db.ExecContext(ctx, deleteAccount, id.String())))
}
