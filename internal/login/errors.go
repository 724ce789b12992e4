package login

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/xdauth/internal/captcha"
	"github.com/aussiebroadwan/xdauth/internal/extract"
	"github.com/aussiebroadwan/xdauth/internal/transport"
	"github.com/aussiebroadwan/xdauth/pkg/cryptox"
)

// Kind is the broad category of a login failure.
type Kind int

const (
	KindInternal Kind = iota
	KindTransport
	KindCrypto
	KindCaptcha
	KindServer
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindCrypto:
		return "crypto"
	case KindCaptcha:
		return "captcha"
	case KindServer:
		return "server"
	case KindInput:
		return "input"
	default:
		return "internal"
	}
}

var (
	// ErrRetriesExhausted is wrapped into the final error when every attempt
	// ended in a retryable failure.
	ErrRetriesExhausted = errors.New("login: retries exhausted")
	// ErrServerRejected means the portal answered the login with an error
	// page, e.g. a wrong password.
	ErrServerRejected = errors.New("server error: login rejected")
	// ErrUnknownPortal is returned for an unrecognised portal selector.
	ErrUnknownPortal = errors.New("login: unknown portal")
	// ErrNoTextSolver is returned when the forum is selected without a
	// text captcha solver.
	ErrNoTextSolver = errors.New("login: forum login needs a text captcha solver")
	// ErrUnsolved is returned when a solver produced no answer but did not
	// cancel. The next attempt gets a fresh captcha.
	ErrUnsolved = errors.New("captcha: solver gave no answer")
)

// Error is returned by every failed login.
type Error struct {
	Kind Kind
	Op   string
	// Fatal errors cannot be fixed by trying again with the same input.
	Fatal bool
	// Attempts is how many attempts were started before the failure.
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	fatal := "retryable"
	if e.Fatal {
		fatal = "fatal"
	}
	return fmt.Sprintf("login %s: %s (%s): %v", e.Op, e.Kind, fatal, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) IsFatal() bool {
	return e.Fatal
}

// IsFatal reports whether err is fatal. Errors that did not come from this
// package are treated as fatal.
func IsFatal(err error) bool {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Fatal
	}
	return err != nil
}

// classify wraps err in an *Error describing where it came from.
func classify(op string, err error) *Error {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr
	}

	e := &Error{Op: op, Fatal: true, Err: err}

	var terr *transport.Error
	switch {
	case errors.As(err, &terr):
		e.Kind, e.Fatal = KindTransport, terr.IsFatal()
	case errors.Is(err, captcha.ErrVerifyFailed),
		errors.Is(err, extract.ErrMissingCaptchaImage),
		errors.Is(err, ErrUnsolved):
		e.Kind, e.Fatal = KindCaptcha, false
	case errors.Is(err, captcha.ErrCanceled),
		errors.Is(err, captcha.ErrMalformedChallenge):
		e.Kind = KindCaptcha
	case errors.Is(err, cryptox.ErrInvalidKeySize),
		errors.Is(err, cryptox.ErrInvalidIVSize),
		errors.Is(err, cryptox.ErrUnalignedInput),
		errors.Is(err, cryptox.ErrCipher):
		e.Kind = KindCrypto
	case errors.Is(err, extract.ErrMissingContent),
		errors.Is(err, extract.ErrMissingSalt),
		errors.Is(err, extract.ErrInvalidSalt),
		errors.Is(err, extract.ErrMissingIDHash),
		errors.Is(err, extract.ErrMissingLoginHash),
		errors.Is(err, extract.ErrMissingLoginURL),
		errors.Is(err, ErrServerRejected):
		e.Kind = KindServer
	case errors.Is(err, ErrUnknownPortal),
		errors.Is(err, ErrNoTextSolver),
		errors.Is(err, ErrInvalidQuestion):
		e.Kind = KindInput
	}
	return e
}

// solverFailure marks a solver error as a missed captcha that another
// attempt may fix. Cancellation and malformed challenges keep their
// identity and stay fatal.
func solverFailure(err error) error {
	if errors.Is(err, captcha.ErrCanceled) || errors.Is(err, captcha.ErrMalformedChallenge) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnsolved, err)
}

// retryable reports whether the orchestrator may start another attempt.
// Only captcha failures are retried; a flaky network is the caller's call.
func retryable(e *Error) bool {
	return !e.Fatal && e.Kind == KindCaptcha
}
