package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/xdauth/pkg/httpx"
	"github.com/aussiebroadwan/xdauth/pkg/slogx"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/net/publicsuffix"
)

const (
	// MaxRedirects bounds redirect chains followed by a Client.
	MaxRedirects = 15

	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 8 << 20
)

// Options configures a Client. The zero value is usable.
type Options struct {
	// UserAgent overrides the Go default when set.
	UserAgent string
	// Timeout bounds a whole request including the body read.
	Timeout time.Duration
	// MaxBodyBytes caps response bodies; larger bodies fail fatally.
	MaxBodyBytes int64
	// RateLimit, when set, throttles requests per host.
	RateLimit *httpx.RateLimitConfig
	// Base replaces the underlying RoundTripper. Used by tests.
	Base http.RoundTripper
}

// Client implements Transport on net/http with a cookie jar.
type Client struct {
	http      *http.Client
	jar       http.CookieJar
	userAgent string
	maxBody   int64
}

var _ Transport = (*Client)(nil)

// New creates a Client with an empty cookie jar.
func New(opts Options) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	var rt http.RoundTripper = &slogx.Transport{Base: base}
	if opts.RateLimit != nil {
		rt = httpx.NewRateLimitTransport(rt, *opts.RateLimit, nil)
	}

	return &Client{
		http: &http.Client{
			Transport:     rt,
			Jar:           jar,
			Timeout:       opts.Timeout,
			CheckRedirect: limitRedirects,
		},
		jar:       jar,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
	}, nil
}

func limitRedirects(_ *http.Request, via []*http.Request) error {
	if len(via) >= MaxRedirects {
		return ErrTooManyRedirects
	}
	return nil
}

func noRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// WithoutRedirects returns a Client sharing this client's cookie jar that
// does not follow redirects.
func (c *Client) WithoutRedirects() Transport {
	hc := *c.http
	hc.CheckRedirect = noRedirects
	clone := *c
	clone.http = &hc
	return &clone
}

func (c *Client) Get(ctx context.Context, rawURL string, hdr http.Header) (*Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, hdr, nil, "")
}

func (c *Client) PostForm(ctx context.Context, rawURL string, hdr http.Header, form httpx.Form) (*Response, error) {
	return c.do(ctx, http.MethodPost, rawURL, hdr, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (c *Client) PostJSON(ctx context.Context, rawURL string, hdr http.Header, body any) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, newError(KindIO, http.MethodPost, rawURL, fmt.Errorf("encode json body: %w", err))
	}
	return c.do(ctx, http.MethodPost, rawURL, hdr, bytes.NewReader(data), "application/json")
}

func (c *Client) do(ctx context.Context, method, rawURL string, hdr http.Header, body io.Reader, contentType string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, newError(KindBadURL, method, rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, newError(KindUnsupportedScheme, method, rawURL, fmt.Errorf("scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return nil, newError(KindBadURL, method, rawURL, fmt.Errorf("missing host"))
	}
	if err := validateHeader(hdr); err != nil {
		return nil, newError(KindBadHeader, method, rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, newError(KindBadURL, method, rawURL, err)
	}
	for name, values := range hdr {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newError(classify(err), method, rawURL, err)
	}
	defer resp.Body.Close()

	data, err := httpx.ReadLimited(resp.Body, c.maxBody)
	if err != nil {
		kind := classify(err)
		if kind == KindIO {
			kind = KindBodyStalled
		}
		return nil, newError(kind, method, rawURL, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        resp.Request.URL.String(),
	}, nil
}

func validateHeader(hdr http.Header) error {
	for name, values := range hdr {
		if !httpguts.ValidHeaderFieldName(name) {
			return fmt.Errorf("invalid header name %q", name)
		}
		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return fmt.Errorf("invalid value for header %q", name)
			}
		}
	}
	return nil
}

// Cookies returns the cookies the jar would send to rawURL.
func (c *Client) Cookies(rawURL string) ([]*http.Cookie, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, newError(KindBadURL, "cookies", rawURL, err)
	}
	return c.jar.Cookies(u), nil
}

// SetCookies stores cookies in the jar as if rawURL had set them.
func (c *Client) SetCookies(rawURL string, cookies []*http.Cookie) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return newError(KindBadURL, "cookies", rawURL, err)
	}
	c.jar.SetCookies(u, cookies)
	return nil
}
