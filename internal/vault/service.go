package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/xdauth/internal/captcha"
	"github.com/aussiebroadwan/xdauth/internal/login"
	"github.com/aussiebroadwan/xdauth/pkg/cryptox"
	"github.com/aussiebroadwan/xdauth/pkg/idx"
	"github.com/aussiebroadwan/xdauth/pkg/slogx"
)

var (
	// ErrNoSealer is returned by snapshot operations when no master key is
	// configured.
	ErrNoSealer = errors.New("vault: session snapshots need a master key")

	ErrInvalidAccount = errors.New("vault: invalid account")
)

// Service combines the store with the login orchestrator.
type Service struct {
	store  Store
	orch   *login.Orchestrator
	sealer *cryptox.Sealer
	now    func() time.Time
}

// NewService returns a Service. sealer may be nil, which disables session
// snapshots.
func NewService(store Store, orch *login.Orchestrator, sealer *cryptox.Sealer) *Service {
	return &Service{
		store:  store,
		orch:   orch,
		sealer: sealer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AddAccountParams describes a new stored credential.
type AddAccountParams struct {
	Portal   login.PortalKind
	Username string
	Password []byte
	QA       login.QuestionAnswerPair
}

// AddAccount stores a credential, or replaces the secrets of an existing
// one for the same portal and username.
func (s *Service) AddAccount(ctx context.Context, p AddAccountParams) (Account, error) {
	kind, err := login.ParsePortal(string(p.Portal))
	if err != nil {
		return Account{}, err
	}
	username := strings.TrimSpace(p.Username)
	if username == "" {
		return Account{}, fmt.Errorf("%w: empty username", ErrInvalidAccount)
	}
	if !p.QA.Question.Valid() {
		return Account{}, fmt.Errorf("%w: %d", login.ErrInvalidQuestion, p.QA.Question)
	}

	password, err := cryptox.EncryptPasswordForStorage(p.Password)
	if err != nil {
		return Account{}, fmt.Errorf("encrypt password: %w", err)
	}
	answer := ""
	if p.QA.Answer != "" {
		if answer, err = cryptox.EncryptPasswordForStorage([]byte(p.QA.Answer)); err != nil {
			return Account{}, fmt.Errorf("encrypt answer: %w", err)
		}
	}

	now := s.now()
	acct := Account{
		ID:        idx.NewAt(now),
		Portal:    kind,
		Username:  username,
		Password:  password,
		Question:  p.QA.Question,
		Answer:    answer,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.Accounts().GetAccount(ctx, kind, username)
		switch {
		case errors.Is(err, ErrNotFound):
			return tx.Accounts().CreateAccount(ctx, acct)
		case err != nil:
			return err
		}

		acct.ID = existing.ID
		acct.CreatedAt = existing.CreatedAt
		if err := tx.Accounts().UpdateAccountSecrets(ctx, acct); err != nil {
			return err
		}
		// Cookies from the old password are no longer trusted.
		if err := tx.Snapshots().DeleteSnapshot(ctx, acct.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return Account{}, fmt.Errorf("store account: %w", err)
	}

	slogx.FromContext(ctx).Info("account stored", "portal", kind, "account", username)
	return acct, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.store.Accounts().ListAccounts(ctx)
}

func (s *Service) GetAccount(ctx context.Context, portal login.PortalKind, username string) (Account, error) {
	return s.store.Accounts().GetAccount(ctx, portal, strings.TrimSpace(username))
}

// RemoveAccount deletes an account with its snapshot and attempt history.
func (s *Service) RemoveAccount(ctx context.Context, portal login.PortalKind, username string) error {
	acct, err := s.GetAccount(ctx, portal, username)
	if err != nil {
		return err
	}
	if err := s.store.Accounts().DeleteAccount(ctx, acct.ID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	slogx.FromContext(ctx).Info("account removed", "portal", portal, "account", acct.Username)
	return nil
}

// LoginOptions are the per-invocation parts of a login request.
type LoginOptions struct {
	Target       string
	UserAgent    string
	SliderSolver captcha.SliderSolver
	TextSolver   captcha.TextSolver
	CookieDays   int
}

// Login decrypts a stored credential and logs in with it. Every outcome is
// recorded, and a successful session is snapshotted when a sealer is
// configured.
func (s *Service) Login(ctx context.Context, portal login.PortalKind, username string, opts LoginOptions) (*login.Session, error) {
	acct, err := s.GetAccount(ctx, portal, username)
	if err != nil {
		return nil, err
	}

	password, err := cryptox.DecryptStoredPassword(acct.Password)
	if err != nil {
		return nil, fmt.Errorf("decrypt stored password: %w", err)
	}
	qa := login.QuestionAnswerPair{Question: acct.Question}
	if acct.Answer != "" {
		answer, err := cryptox.DecryptStoredPassword(acct.Answer)
		if err != nil {
			return nil, fmt.Errorf("decrypt stored answer: %w", err)
		}
		qa.Answer = string(answer)
	}

	session, loginErr := s.orch.Login(ctx, login.Request{
		Account:      acct.Username,
		Password:     password,
		Portal:       acct.Portal,
		Target:       opts.Target,
		UserAgent:    opts.UserAgent,
		SliderSolver: opts.SliderSolver,
		TextSolver:   opts.TextSolver,
		QA:           qa,
		CookieDays:   opts.CookieDays,
	})

	s.record(ctx, acct, session, loginErr)
	if loginErr != nil {
		return nil, loginErr
	}

	if s.sealer != nil {
		if err := s.SaveSnapshot(ctx, acct, session); err != nil {
			slogx.FromContext(ctx).Warn("session snapshot not saved", "account", acct.Username, "error", err)
		}
	}
	return session, nil
}

func (s *Service) record(ctx context.Context, acct Account, session *login.Session, loginErr error) {
	a := Attempt{
		ID:        idx.NewAt(s.now()),
		AccountID: acct.ID,
		Portal:    acct.Portal,
		Outcome:   OutcomeSuccess,
		CreatedAt: s.now(),
	}
	if session != nil {
		a.Attempts = session.Attempts
	}
	if loginErr != nil {
		a.Outcome = OutcomeFailure
		a.Fatal = login.IsFatal(loginErr)
		a.Error = loginErr.Error()
		var lerr *login.Error
		if errors.As(loginErr, &lerr) {
			a.Attempts = lerr.Attempts
		}
	}
	if err := s.store.Attempts().RecordAttempt(ctx, a); err != nil {
		slogx.FromContext(ctx).Warn("login attempt not recorded", "account", acct.Username, "error", err)
	}
}

// Attempts lists the newest attempts recorded for an account.
func (s *Service) Attempts(ctx context.Context, portal login.PortalKind, username string, limit int) ([]Attempt, error) {
	acct, err := s.GetAccount(ctx, portal, username)
	if err != nil {
		return nil, err
	}
	return s.store.Attempts().ListAttempts(ctx, acct.ID, limit)
}

// SaveSnapshot seals the session cookies for acct, replacing any earlier
// snapshot.
func (s *Service) SaveSnapshot(ctx context.Context, acct Account, session *login.Session) error {
	if s.sealer == nil {
		return ErrNoSealer
	}
	data, err := captureCookies(session.Portal, s.orch.Endpoints, session.Transport)
	if err != nil {
		return err
	}
	sealed, err := s.sealer.Seal(data)
	if err != nil {
		return fmt.Errorf("seal snapshot: %w", err)
	}

	id := session.ID
	if id.IsZero() {
		id = idx.NewAt(s.now())
	}
	return s.store.Snapshots().PutSnapshot(ctx, Snapshot{
		ID:        id,
		AccountID: acct.ID,
		Sealed:    sealed,
		CreatedAt: s.now(),
	})
}

// Restore rebuilds a session from the account's snapshot in a fresh
// transport. The session is not probed; call IsAuthenticated to check it.
func (s *Service) Restore(ctx context.Context, portal login.PortalKind, username, userAgent string) (*login.Session, error) {
	if s.sealer == nil {
		return nil, ErrNoSealer
	}
	acct, err := s.GetAccount(ctx, portal, username)
	if err != nil {
		return nil, err
	}
	snap, err := s.store.Snapshots().GetSnapshot(ctx, acct.ID)
	if err != nil {
		return nil, err
	}
	data, err := s.sealer.Open(snap.Sealed)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}

	newTransport := s.orch.NewTransport
	if newTransport == nil {
		newTransport = login.DefaultTransportFactory
	}
	t, err := newTransport(userAgent)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	kind, err := restoreCookies(data, t)
	if err != nil {
		return nil, err
	}
	if kind != acct.Portal {
		return nil, fmt.Errorf("%w: snapshot is for %s", ErrInvalidAccount, kind)
	}
	return s.orch.Restore(snap.ID, acct.Portal, acct.Username, t)
}
