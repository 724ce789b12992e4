package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"

	"github.com/aussiebroadwan/xdauth/pkg/httpx"
)

// Kind classifies a transport failure.
type Kind int

const (
	KindIO Kind = iota
	KindBadURL
	KindUnsupportedScheme
	KindBadHeader
	KindConnectionRefused
	KindProxy
	KindBodyLimit
	KindStatus
	KindCanceled
	KindDNS
	KindTimeout
	KindBodyStalled
	KindTooManyRedirects
)

var kindNames = map[Kind]string{
	KindIO:                "io",
	KindBadURL:            "bad_url",
	KindUnsupportedScheme: "unsupported_scheme",
	KindBadHeader:         "bad_header",
	KindConnectionRefused: "connection_refused",
	KindProxy:             "proxy",
	KindBodyLimit:         "body_limit",
	KindStatus:            "status",
	KindCanceled:          "canceled",
	KindDNS:               "dns",
	KindTimeout:           "timeout",
	KindBodyStalled:       "body_stalled",
	KindTooManyRedirects:  "too_many_redirects",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ErrTooManyRedirects is returned by the redirect policy once MaxRedirects is
// reached.
var ErrTooManyRedirects = errors.New("transport: too many redirects")

// Error is the single error type produced by this package.
type Error struct {
	Kind       Kind
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("transport %s %s: %s", e.Op, redact(e.URL), e.Kind)
	if e.Kind == KindStatus {
		msg += fmt.Sprintf(" %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFatal reports whether retrying the same request cannot help.
func (e *Error) IsFatal() bool {
	switch e.Kind {
	case KindDNS, KindTimeout, KindBodyStalled, KindIO, KindTooManyRedirects:
		return false
	case KindStatus:
		return e.StatusCode != http.StatusGatewayTimeout
	default:
		return true
	}
}

// CheckStatus turns a 4xx or 5xx response into an *Error.
func CheckStatus(op string, resp *Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	return &Error{Kind: KindStatus, Op: op, URL: resp.URL, StatusCode: resp.StatusCode}
}

func newError(kind Kind, op, rawURL string, err error) *Error {
	return &Error{Kind: kind, Op: op, URL: rawURL, Err: err}
}

// classify maps an error from http.Client.Do or a body read onto a Kind.
func classify(err error) Kind {
	var (
		dnsErr *net.DNSError
		opErr  *net.OpError
		netErr net.Error
	)

	switch {
	case errors.Is(err, httpx.ErrBodyTooLarge):
		return KindBodyLimit
	case errors.Is(err, ErrTooManyRedirects):
		return KindTooManyRedirects
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &dnsErr):
		return KindDNS
	case errors.As(err, &opErr) && opErr.Op == "proxyconnect":
		return KindProxy
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	case errors.Is(err, io.ErrUnexpectedEOF):
		return KindBodyStalled
	default:
		return KindIO
	}
}

// redact drops the query string, which may carry an account name.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
