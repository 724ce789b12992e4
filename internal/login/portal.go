package login

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/xdauth/internal/transport"
	"github.com/aussiebroadwan/xdauth/pkg/slogx"
)

// Portal is one login procedure, split into the steps the orchestrator
// drives. P carries per-login state from FetchLoginPage to later steps.
type Portal[P any] interface {
	// FetchLoginPage loads the login page. Failures here end the login.
	FetchLoginPage(ctx context.Context) (P, error)
	// NeedsCaptcha reports whether this attempt must pass a captcha first.
	NeedsCaptcha(ctx context.Context, page P) bool
	// Challenge obtains and answers a captcha.
	Challenge(ctx context.Context, page P) error
	// Submit posts the credentials. A nil error means logged in.
	Submit(ctx context.Context, page P) error
	// Refresh prepares for another attempt after a retryable failure.
	Refresh(ctx context.Context, page P) error
	// IsAuthenticated probes whether the session is logged in.
	IsAuthenticated(ctx context.Context) bool
}

// run drives portal until it logs in, fails fatally, or has used
// maxAttempts attempts. It returns the number of attempts started.
func run[P any](ctx context.Context, portal Portal[P], maxAttempts int) (int, error) {
	log := slogx.FromContext(ctx)

	page, err := portal.FetchLoginPage(ctx)
	if err != nil {
		return 0, classify("fetch login page", err)
	}

	var last *Error
	attempt := 0
	for attempt < maxAttempts {
		attempt++

		if err := ctx.Err(); err != nil {
			canceled := &transport.Error{Kind: transport.KindCanceled, Op: "attempt", Err: err}
			return attempt, withAttempts(classify("attempt", canceled), attempt)
		}

		if attempt > 1 {
			if err := portal.Refresh(ctx, page); err != nil {
				return attempt, withAttempts(classify("refresh", err), attempt)
			}
		}

		if portal.NeedsCaptcha(ctx, page) {
			if err := portal.Challenge(ctx, page); err != nil {
				last = withAttempts(classify("captcha", err), attempt)
				if !retryable(last) {
					return attempt, last
				}
				log.Warn("captcha attempt failed", "attempt", attempt, "max_attempts", maxAttempts, "error", err)
				continue
			}
		}

		err := portal.Submit(ctx, page)
		if err == nil {
			log.Debug("login submitted", "attempt", attempt)
			return attempt, nil
		}
		last = withAttempts(classify("submit", err), attempt)
		if !retryable(last) {
			return attempt, last
		}
		log.Warn("login attempt failed", "attempt", attempt, "max_attempts", maxAttempts, "error", err)
	}

	return attempt, &Error{
		Kind:     last.Kind,
		Op:       last.Op,
		Fatal:    true,
		Attempts: attempt,
		Err:      fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, last.Err),
	}
}

func withAttempts(e *Error, n int) *Error {
	e.Attempts = n
	return e
}
