// Package transporttest provides an in-memory transport.Transport for tests.
package transporttest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/aussiebroadwan/xdauth/internal/transport"
	"github.com/aussiebroadwan/xdauth/pkg/httpx"
)

// Request is a recorded call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Form   httpx.Form
	JSON   []byte
	// Redirects is false for calls made through WithoutRedirects.
	Redirects bool
}

// Handler produces the reply to a request.
type Handler func(req Request) (*transport.Response, error)

// ErrNoRoute is wrapped in the fatal error returned for unrouted requests.
var ErrNoRoute = errors.New("transporttest: no route")

type state struct {
	mu       sync.Mutex
	routes   map[string]Handler
	requests []Request
	jar      *cookiejar.Jar
}

// Stub routes requests by method and URL without its query string.
type Stub struct {
	*state
	redirects bool
}

var _ transport.Transport = (*Stub)(nil)

func New() *Stub {
	jar, _ := cookiejar.New(nil) // never fails without options
	return &Stub{state: &state{routes: map[string]Handler{}, jar: jar}, redirects: true}
}

// Cookies returns the cookies the stub's jar holds for rawURL. Handlers
// set cookies with SetCookies; responses never do.
func (s *Stub) Cookies(rawURL string) ([]*http.Cookie, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return s.jar.Cookies(u), nil
}

func (s *Stub) SetCookies(rawURL string, cookies []*http.Cookie) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	s.jar.SetCookies(u, cookies)
	return nil
}

func routeKey(method, rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		rawURL = rawURL[:i]
	}
	return method + " " + rawURL
}

// Handle registers h for method and rawURL. A query string in rawURL is
// ignored.
func (s *Stub) Handle(method, rawURL string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[routeKey(method, rawURL)] = h
}

// Requests returns every recorded call in order.
func (s *Stub) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Calls returns the recorded calls to method and rawURL.
func (s *Stub) Calls(method, rawURL string) []Request {
	key := routeKey(method, rawURL)
	var out []Request
	for _, r := range s.Requests() {
		if routeKey(r.Method, r.URL) == key {
			out = append(out, r)
		}
	}
	return out
}

func (s *Stub) serve(ctx context.Context, req Request) (*transport.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &transport.Error{Kind: transport.KindCanceled, Op: req.Method, URL: req.URL, Err: err}
	}
	req.Redirects = s.redirects

	s.mu.Lock()
	s.requests = append(s.requests, req)
	h, ok := s.routes[routeKey(req.Method, req.URL)]
	s.mu.Unlock()

	if !ok {
		return nil, &transport.Error{Kind: transport.KindBadURL, Op: req.Method, URL: req.URL, Err: ErrNoRoute}
	}
	resp, err := h(req)
	if resp != nil && resp.URL == "" {
		resp.URL = req.URL
	}
	return resp, err
}

func (s *Stub) Get(ctx context.Context, rawURL string, hdr http.Header) (*transport.Response, error) {
	return s.serve(ctx, Request{Method: http.MethodGet, URL: rawURL, Header: hdr})
}

func (s *Stub) PostForm(ctx context.Context, rawURL string, hdr http.Header, form httpx.Form) (*transport.Response, error) {
	return s.serve(ctx, Request{Method: http.MethodPost, URL: rawURL, Header: hdr, Form: form})
}

func (s *Stub) PostJSON(ctx context.Context, rawURL string, hdr http.Header, body any) (*transport.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("transporttest: encode body: %w", err)
	}
	return s.serve(ctx, Request{Method: http.MethodPost, URL: rawURL, Header: hdr, JSON: data})
}

func (s *Stub) WithoutRedirects() transport.Transport {
	return &Stub{state: s.state, redirects: false}
}

// Text replies with status and body.
func Text(status int, body string) Handler {
	return func(Request) (*transport.Response, error) {
		return &transport.Response{StatusCode: status, Header: http.Header{}, Body: []byte(body)}, nil
	}
}

// Bytes replies 200 with body.
func Bytes(body []byte) Handler {
	return func(Request) (*transport.Response, error) {
		return &transport.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: body}, nil
	}
}

// Fail replies with a transport error of kind.
func Fail(kind transport.Kind) Handler {
	return func(req Request) (*transport.Response, error) {
		return nil, &transport.Error{Kind: kind, Op: req.Method, URL: req.URL, Err: errors.New("stubbed failure")}
	}
}

// Sequence uses each handler once in turn and then keeps using the last.
func Sequence(handlers ...Handler) Handler {
	var (
		mu sync.Mutex
		n  int
	)
	return func(req Request) (*transport.Response, error) {
		mu.Lock()
		h := handlers[min(n, len(handlers)-1)]
		n++
		mu.Unlock()
		return h(req)
	}
}
