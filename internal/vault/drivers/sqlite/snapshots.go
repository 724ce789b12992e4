package sqlite

import (
	"context"

	"github.com/aussiebroadwan/xdauth/internal/vault"
	"github.com/aussiebroadwan/xdauth/pkg/idx"
)

type snapshotsRepo struct {
	q *queries
}

func (r *snapshotsRepo) PutSnapshot(ctx context.Context, s vault.Snapshot) error {
	_, err := r.q.db.ExecContext(ctx, putSnapshot,
		s.ID.String(), s.AccountID.String(), s.Sealed, toMillis(s.CreatedAt),
	)
	return err
}

func (r *snapshotsRepo) GetSnapshot(ctx context.Context, accountID idx.ID) (vault.Snapshot, error) {
	var (
		s             vault.Snapshot
		id, account   string
		createdMillis int64
	)
	err := r.q.db.QueryRowContext(ctx, getSnapshot, accountID.String()).
		Scan(&id, &account, &s.Sealed, &createdMillis)
	if err != nil {
		return vault.Snapshot{}, mapNotFound(err)
	}
	s.ID = idx.ID(id)
	s.AccountID = idx.ID(account)
	s.CreatedAt = fromMillis(createdMillis)
	return s, nil
}

func (r *snapshotsRepo) DeleteSnapshot(ctx context.Context, accountID idx.ID) error {
	return mapNotFound(rowsAffected(r.q.db.ExecContext(ctx, deleteSnapshot, accountID.String())))
}
