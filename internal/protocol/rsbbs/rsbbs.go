// Package rsbbs builds requests for the RSBBS forum login.
package rsbbs

import (
	"context"
	"fmt"
	"image"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/xdauth/internal/captcha"
	"github.com/aussiebroadwan/xdauth/internal/extract"
	"github.com/aussiebroadwan/xdauth/internal/transport"
	"github.com/aussiebroadwan/xdauth/pkg/httpx"
)

type Endpoints struct {
	Host      string `yaml:"host"`
	LoginPage string `yaml:"login_page"`
	SecCode   string `yaml:"seccode"`
	Forum     string `yaml:"forum"`
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Host:      "rs.xidian.edu.cn",
		LoginPage: "member.php?mod=logging&action=login&referer=http%3A%2F%2Frs.xidian.edu.cn%2Fforum.php",
		SecCode:   "misc.php?mod=seccode&action=update",
		Forum:     "forum.php",
	}
}

const (
	// modIDFirst is sent with the first seccode update of a page, and is
	// also posted verbatim (so encoded twice) as seccodemodid.
	modIDFirst   = "member%3A%3Alogging"
	modIDRefresh = "undefined"

	// DefaultCookieDays is how long the forum keeps the login when the caller
	// does not say.
	DefaultCookieDays = 30
)

// formFields are the hidden inputs copied from the login form.
var formFields = map[string]bool{"formhash": true, "referer": true, "seccodehash": true}

type Client struct {
	t  transport.Transport
	ep Endpoints
	// float produces the cache-busting number in seccode URLs.
	float func() float64
}

func New(t transport.Transport, ep Endpoints) *Client {
	return &Client{t: t, ep: ep, float: rand.Float64}
}

func (c *Client) url(path string) string {
	return "https://" + c.ep.Host + "/" + path
}

func referer(r string) http.Header {
	hdr := http.Header{}
	hdr.Set("Referer", r)
	return hdr
}

// LoginPage fetches the login page. The response URL is the Referer for
// every later request of the login.
func (c *Client) LoginPage(ctx context.Context) (*transport.Response, error) {
	resp, err := c.t.Get(ctx, c.url(c.ep.LoginPage), nil)
	if err != nil {
		return nil, err
	}
	if err := transport.CheckStatus("login page", resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// UpdateSecCode asks the forum to bind a new captcha to idHash and returns
// the fragment holding the image element.
func (c *Client) UpdateSecCode(ctx context.Context, idHash, ref string, first bool) (*transport.Response, error) {
	modID := modIDRefresh
	if first {
		modID = modIDFirst
	}
	u := fmt.Sprintf("%s&idhash=%s&%s&modid=%s",
		c.url(c.ep.SecCode), idHash, strconv.FormatFloat(c.float(), 'f', -1, 64), modID)

	resp, err := c.t.Get(ctx, u, referer(ref))
	if err != nil {
		return nil, err
	}
	if err := transport.CheckStatus("update seccode", resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RefreshSecCode replaces the captcha after a wrong answer and returns the
// new fragment.
func (c *Client) RefreshSecCode(ctx context.Context, idHash, ref string) (*transport.Response, error) {
	return c.UpdateSecCode(ctx, idHash, ref, false)
}

// DownloadCaptcha fetches and decodes the captcha image at imgURL, which is
// relative to the forum root.
func (c *Client) DownloadCaptcha(ctx context.Context, ref, imgURL string) (image.Image, error) {
	resp, err := c.t.Get(ctx, c.url(imgURL), referer(ref))
	if err != nil {
		return nil, err
	}
	if err := transport.CheckStatus("download captcha", resp); err != nil {
		return nil, err
	}
	return captcha.DecodeImage(resp.Body)
}

// Credentials is what the forum login form needs beyond the page's hidden
// fields.
type Credentials struct {
	Username    string
	PasswordMD5 string
	QuestionID  int
	Answer      string
	SecCode     string
	// CookieDays of zero means DefaultCookieDays.
	CookieDays int
}

// BuildLoginForm derives the POST path and form from the login page.
func BuildLoginForm(page string, cred Credentials) (path string, form httpx.Form, err error) {
	hash, hashEnd, err := extract.FindLoginHash(page)
	if err != nil {
		return "", nil, err
	}
	action, err := extract.FindLoginURL(page, hashEnd)
	if err != nil {
		return "", nil, err
	}
	path = strings.ReplaceAll(action, "&amp;", "&")

	region, err := extract.FindBoundedRegion([]string{"loginform_" + hash, "loginform_"}, page)
	if err != nil {
		return "", nil, err
	}
	scanned, err := extract.ScanInputFields(region, `name="`)
	if err != nil {
		return "", nil, err
	}
	for _, f := range scanned.Fields {
		if formFields[f.Name] {
			form.Add(f.Name, f.Value)
		}
	}

	days := cred.CookieDays
	if days <= 0 {
		days = DefaultCookieDays
	}
	form.Add("username", cred.Username)
	form.Add("password", cred.PasswordMD5)
	form.Add("questionid", strconv.Itoa(cred.QuestionID))
	form.Add("answer", cred.Answer)
	form.Add("seccodemodid", modIDFirst)
	form.Add("seccodeverify", cred.SecCode)
	form.Add("cookietime", strconv.FormatInt(int64(days)*24*60*60, 10))
	return path, form, nil
}

// Login submits the login form built from page.
func (c *Client) Login(ctx context.Context, ref, page string, cred Credentials) (*transport.Response, error) {
	path, form, err := BuildLoginForm(page, cred)
	if err != nil {
		return nil, err
	}

	hdr := referer(ref)
	hdr.Set("Origin", c.ep.Host)
	resp, err := c.t.PostForm(ctx, c.url(path), hdr, form)
	if err != nil {
		return nil, err
	}
	if err := transport.CheckStatus("login", resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// IsLoggedIn probes forum.php without following redirects; a 302 to the
// login page means the session has expired.
func (c *Client) IsLoggedIn(ctx context.Context) bool {
	resp, err := c.t.WithoutRedirects().Get(ctx, c.url(c.ep.Forum), nil)
	if err != nil {
		return false
	}
	return resp.StatusCode != http.StatusFound
}
