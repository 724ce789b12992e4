package login

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/xdauth/internal/transport"
	"github.com/aussiebroadwan/xdauth/pkg/idx"
)

// Session is an authenticated transport. It belongs to the caller and must
// not be shared between concurrent logins.
type Session struct {
	ID       idx.ID
	Portal   PortalKind
	Account  string
	Attempts int
	// Transport carries the session cookies; use it for further calls.
	Transport transport.Transport

	probe func(context.Context) bool
}

// IsAuthenticated asks the portal whether the session is still logged in.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	if s.probe == nil {
		return false
	}
	return s.probe(ctx)
}

// Restore wraps a transport whose cookies came from elsewhere, typically a
// stored snapshot, into a Session.
func (o *Orchestrator) Restore(id idx.ID, kind PortalKind, account string, t transport.Transport) (*Session, error) {
	probe, err := o.Probe(kind, t)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return &Session{ID: id, Portal: kind, Account: account, Transport: t, probe: probe}, nil
}
