// Package vault keeps portal accounts, login attempt records and sealed
// session snapshots, and logs in from stored credentials.
package vault

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/xdauth/internal/login"
	"github.com/aussiebroadwan/xdauth/pkg/idx"
)

var (
	ErrNotFound      = errors.New("vault: not found")
	ErrAlreadyExists = errors.New("vault: already exists")
)

// Account is a stored portal credential. Password and Answer hold the
// storage encryption of the secrets, never plaintext.
type Account struct {
	ID       idx.ID
	Portal   login.PortalKind
	Username string
	Password string
	Question login.Question
	Answer   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot is the sealed cookie state of the last successful login of an
// account. There is at most one per account.
type Snapshot struct {
	ID        idx.ID
	AccountID idx.ID
	Sealed    []byte
	CreatedAt time.Time
}

// Outcome of a recorded login.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Attempt is the audit record of one orchestrated login.
type Attempt struct {
	ID        idx.ID
	AccountID idx.ID
	Portal    login.PortalKind
	Outcome   Outcome
	Attempts  int
	Fatal     bool
	Error     string
	CreatedAt time.Time
}

// Store is the root data access interface implemented by the drivers. The
// sub-repositories are methods so a transaction hands out the same set and
// nested transactions cannot be started by accident.
type Store interface {
	Accounts() Accounts
	Snapshots() Snapshots
	Attempts() Attempts

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST call Commit() or
	// Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction that is committed when fn returns nil
	// and rolled back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// CreateAccount fails with ErrAlreadyExists when portal and username are
	// taken.
	CreateAccount(ctx context.Context, a Account) error

	GetAccountByID(ctx context.Context, id idx.ID) (Account, error)
	GetAccount(ctx context.Context, portal login.PortalKind, username string) (Account, error)

	// ListAccounts orders by portal then username.
	ListAccounts(ctx context.Context) ([]Account, error)

	// UpdateAccountSecrets replaces the stored password and answer and bumps
	// updated_at.
	UpdateAccountSecrets(ctx context.Context, a Account) error

	// DeleteAccount cascades to snapshots and attempts.
	DeleteAccount(ctx context.Context, id idx.ID) error
}

type Snapshots interface {
	// PutSnapshot replaces the account's snapshot.
	PutSnapshot(ctx context.Context, s Snapshot) error
	GetSnapshot(ctx context.Context, accountID idx.ID) (Snapshot, error)
	DeleteSnapshot(ctx context.Context, accountID idx.ID) error
}

type Attempts interface {
	RecordAttempt(ctx context.Context, a Attempt) error

	// ListAttempts returns the newest limit attempts for an account, newest
	// first.
	ListAttempts(ctx context.Context, accountID idx.ID, limit int) ([]Attempt, error)
}
