// Package login drives the portal login procedures: scraping the login
// page, encrypting credentials, answering captchas and retrying within a
// fixed budget, and handing back an authenticated Session.
package login

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/xdauth/internal/captcha"
	"github.com/aussiebroadwan/xdauth/internal/protocol"
	"github.com/aussiebroadwan/xdauth/internal/protocol/ehall"
	"github.com/aussiebroadwan/xdauth/internal/protocol/ids"
	"github.com/aussiebroadwan/xdauth/internal/protocol/rsbbs"
	"github.com/aussiebroadwan/xdauth/internal/transport"
	"github.com/aussiebroadwan/xdauth/pkg/idx"
	"github.com/aussiebroadwan/xdauth/pkg/slogx"
)

// DefaultMaxAttempts is the attempt budget shared by captcha and submission
// retries.
const DefaultMaxAttempts = 5

// PortalKind selects a login procedure.
type PortalKind string

const (
	PortalIDS   PortalKind = "ids"
	PortalEhall PortalKind = "ehall"
	PortalRSBBS PortalKind = "rsbbs"
)

// ParsePortal validates a portal selector.
func ParsePortal(s string) (PortalKind, error) {
	switch k := PortalKind(strings.ToLower(strings.TrimSpace(s))); k {
	case PortalIDS, PortalEhall, PortalRSBBS:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPortal, s)
	}
}

// Credential is an account and its plaintext password. The password is
// never logged.
type Credential struct {
	Account  string
	Password []byte
}

func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(slog.String("account", c.Account))
}

// Request describes one login.
type Request struct {
	Account  string
	Password []byte
	Portal   PortalKind
	// Target overrides the IDS service target. Ignored for other portals.
	Target    string
	UserAgent string

	// SliderSolver answers IDS slider captchas; nil uses the built-in
	// matcher.
	SliderSolver captcha.SliderSolver
	// TextSolver answers forum captchas and is required for the forum.
	TextSolver captcha.TextSolver

	QA         QuestionAnswerPair
	CookieDays int
}

// TransportFactory creates the transport a new session will own.
type TransportFactory func(userAgent string) (transport.Transport, error)

// Orchestrator runs logins. It has no mutable state, so one value may serve
// concurrent logins; each login gets its own transport.
type Orchestrator struct {
	// MaxAttempts defaults to DefaultMaxAttempts when not positive.
	MaxAttempts int
	Endpoints   protocol.Endpoints
	// NewTransport defaults to a transport.Client with default options.
	NewTransport TransportFactory
	Logger       *slog.Logger
	// Now defaults to time.Now; it feeds the captcha endpoints' timestamps.
	Now func() time.Time
}

// NewOrchestrator returns an Orchestrator with production endpoints.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{Endpoints: protocol.Default()}
}

// DefaultTransportFactory builds a cookie-carrying transport.Client.
func DefaultTransportFactory(userAgent string) (transport.Transport, error) {
	return transport.New(transport.Options{UserAgent: userAgent})
}

// Login runs req with a default Orchestrator.
func Login(ctx context.Context, req Request) (*Session, error) {
	return NewOrchestrator().Login(ctx, req)
}

// Login authenticates against req.Portal and returns the session. Errors
// are always *Error.
func (o *Orchestrator) Login(ctx context.Context, req Request) (*Session, error) {
	maxAttempts := o.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	now := o.Now
	if now == nil {
		now = time.Now
	}
	newTransport := o.NewTransport
	if newTransport == nil {
		newTransport = DefaultTransportFactory
	}
	logger := o.Logger
	if logger == nil {
		logger = slogx.FromContext(ctx)
	}

	kind, err := ParsePortal(string(req.Portal))
	if err != nil {
		return nil, classify("select portal", err)
	}
	if kind == PortalRSBBS && req.TextSolver == nil {
		return nil, classify("select portal", ErrNoTextSolver)
	}
	if !req.QA.Question.Valid() {
		return nil, classify("select portal", fmt.Errorf("%w: %d", ErrInvalidQuestion, req.QA.Question))
	}

	t, err := newTransport(req.UserAgent)
	if err != nil {
		return nil, classify("create transport", err)
	}

	attemptID := idx.New()
	ctx = slogx.WithContext(ctx, logger)
	ctx = slogx.WithAttempt(ctx, attemptID.String(), string(kind))
	log := slogx.FromContext(ctx)

	cred := Credential{Account: req.Account, Password: req.Password}
	log.Info("login started", "credential", cred, "max_attempts", maxAttempts)

	var (
		attempts int
		probe    func(context.Context) bool
	)
	switch kind {
	case PortalRSBBS:
		p := &forumPortal{
			rs:         rsbbs.New(t, o.Endpoints.RSBBS),
			cred:       cred,
			qa:         req.QA,
			cookieDays: req.CookieDays,
			solver:     req.TextSolver,
		}
		probe = p.IsAuthenticated
		attempts, err = run(ctx, p, maxAttempts)
	default:
		p := o.casPortal(t, kind, req, cred, now)
		probe = p.IsAuthenticated
		attempts, err = run(ctx, p, maxAttempts)
	}
	if err != nil {
		log.Warn("login failed", "attempts", attempts, "fatal", IsFatal(err), "error", err)
		return nil, err
	}

	log.Info("login succeeded", "attempts", attempts)
	return &Session{
		ID:        attemptID,
		Portal:    kind,
		Account:   req.Account,
		Attempts:  attempts,
		Transport: t,
		probe:     probe,
	}, nil
}

func (o *Orchestrator) casPortal(t transport.Transport, kind PortalKind, req Request, cred Credential, now func() time.Time) *casPortal {
	idsClient := ids.New(t, o.Endpoints.IDS)
	p := &casPortal{
		ids:    idsClient,
		cred:   cred,
		solver: req.SliderSolver,
		now:    now,
		target: ids.TargetLearning,
		probe:  idsClient.IsLoggedIn,
	}
	if kind == PortalEhall {
		p.target = ids.TargetEhall
		p.probe = ehall.New(t, o.Endpoints.Ehall).HasLoggedIn
	}
	if req.Target != "" && kind == PortalIDS {
		p.target = req.Target
	}
	return p
}

// Probe rebuilds the liveness check for a session restored from storage.
func (o *Orchestrator) Probe(kind PortalKind, t transport.Transport) (func(context.Context) bool, error) {
	switch kind {
	case PortalIDS:
		return ids.New(t, o.Endpoints.IDS).IsLoggedIn, nil
	case PortalEhall:
		return ehall.New(t, o.Endpoints.Ehall).HasLoggedIn, nil
	case PortalRSBBS:
		return rsbbs.New(t, o.Endpoints.RSBBS).IsLoggedIn, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPortal, kind)
	}
}
