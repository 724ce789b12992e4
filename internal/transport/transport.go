// Package transport is the HTTP layer shared by every portal client. A
// Transport carries a cookie jar across requests so that a sequence of calls
// made through it forms one browser-like session.
package transport

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/xdauth/pkg/httpx"
)

// Transport issues requests on behalf of a single session.
//
// Every status code yields a Response; callers that care use CheckStatus.
// Errors are always *Error.
type Transport interface {
	Get(ctx context.Context, rawURL string, hdr http.Header) (*Response, error)
	PostForm(ctx context.Context, rawURL string, hdr http.Header, form httpx.Form) (*Response, error)
	PostJSON(ctx context.Context, rawURL string, hdr http.Header, body any) (*Response, error)

	// WithoutRedirects returns a Transport sharing the same cookies that
	// hands back 3xx responses instead of following them.
	WithoutRedirects() Transport
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the final URL after redirects.
	URL string
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Location returns the redirect target of a 3xx response, if any.
func (r *Response) Location() string {
	return r.Header.Get("Location")
}
