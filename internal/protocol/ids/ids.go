// Package ids builds requests for the IDS central authentication service.
package ids

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/xdauth/internal/captcha"
	"github.com/aussiebroadwan/xdauth/internal/transport"
	"github.com/aussiebroadwan/xdauth/pkg/cryptox"
	"github.com/aussiebroadwan/xdauth/pkg/httpx"
)

// Login targets understood by IDS.
const (
	TargetLearning = "https://learning.xidian.edu.cn/cassso/xidian"
	TargetEhall    = "http://ehall.xidian.edu.cn/login?service=http://ehall.xidian.edu.cn/new/index.html"
)

// Endpoints is the IDS URL table. Fields left empty in an override file keep
// their defaults.
type Endpoints struct {
	Login               string `yaml:"login"`
	CheckNeedCaptcha    string `yaml:"check_need_captcha"`
	OpenSliderCaptcha   string `yaml:"open_slider_captcha"`
	VerifySliderCaptcha string `yaml:"verify_slider_captcha"`
	Authserver          string `yaml:"authserver"`
	GetUserConf         string `yaml:"get_user_conf"`
	// SliderRefer is sent in the (misspelt) Refer header on verification.
	SliderRefer string `yaml:"slider_refer"`
}

// DefaultEndpoints returns the production URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:               "http://ids.xidian.edu.cn/authserver/login",
		CheckNeedCaptcha:    "https://ids.xidian.edu.cn/authserver/checkNeedCaptcha.htl",
		OpenSliderCaptcha:   "https://ids.xidian.edu.cn/authserver/common/openSliderCaptcha.htl",
		VerifySliderCaptcha: "https://ids.xidian.edu.cn/authserver/common/verifySliderCaptcha.htl",
		Authserver:          "http://ids.xidian.edu.cn/authserver/index.do",
		GetUserConf:         "https://ids.xidian.edu.cn/personalInfo/common/getUserConf",
		SliderRefer:         "https://ids.xidian.edu.cn/authserver/login",
	}
}

// userConfNonce is the body the web client posts; the server ignores it.
const userConfNonce = 0.12724911253015814

// Client issues IDS requests over a session transport. It holds no state
// of its own.
type Client struct {
	t  transport.Transport
	ep Endpoints
}

func New(t transport.Transport, ep Endpoints) *Client {
	return &Client{t: t, ep: ep}
}

func (c *Client) loginURL(target string) string {
	return c.ep.Login + "?service=" + cryptox.PercentEncode(target)
}

// LoginPage fetches the login form for target.
func (c *Client) LoginPage(ctx context.Context, target string) (*transport.Response, error) {
	resp, err := c.t.Get(ctx, c.loginURL(target), nil)
	if err != nil {
		return nil, err
	}
	if err := transport.CheckStatus("login page", resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CheckNeedCaptcha asks whether account must pass the slider first. The
// endpoint answers with a small JSON object; any "t" in it (as in "true")
// means yes.
func (c *Client) CheckNeedCaptcha(ctx context.Context, account string, tsMillis int64) (bool, error) {
	u := c.ep.CheckNeedCaptcha + "?username=" + url.QueryEscape(account) + "&_=" + strconv.FormatInt(tsMillis, 10)
	resp, err := c.t.Get(ctx, u, nil)
	if err != nil {
		return false, err
	}
	if err := transport.CheckStatus("check need captcha", resp); err != nil {
		return false, err
	}
	return strings.Contains(resp.Text(), "t"), nil
}

// OpenSliderCaptcha fetches a fresh slider challenge.
func (c *Client) OpenSliderCaptcha(ctx context.Context, tsMillis int64) (*captcha.Challenge, error) {
	resp, err := c.t.Get(ctx, c.ep.OpenSliderCaptcha+"?_="+strconv.FormatInt(tsMillis, 10), nil)
	if err != nil {
		return nil, err
	}
	if err := transport.CheckStatus("open slider captcha", resp); err != nil {
		return nil, err
	}
	return captcha.DecodeChallenge(resp.Body)
}

type verifyResponse struct {
	ErrorMsg string `json:"errorMsg"`
}

// VerifySliderCaptcha submits a canvas-relative move length. It returns an
// error wrapping captcha.ErrVerifyFailed unless the server says "success".
func (c *Client) VerifySliderCaptcha(ctx context.Context, moveLength uint32) error {
	hdr := http.Header{}
	hdr.Set("Refer", c.ep.SliderRefer)

	form := httpx.Form{
		{Name: "canvasLength", Value: strconv.Itoa(captcha.CanvasWidth)},
		{Name: "moveLength", Value: strconv.FormatUint(uint64(moveLength), 10)},
	}
	resp, err := c.t.PostForm(ctx, c.ep.VerifySliderCaptcha, hdr, form)
	if err != nil {
		return err
	}
	if err := transport.CheckStatus("verify slider captcha", resp); err != nil {
		return err
	}

	var v verifyResponse
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return fmt.Errorf("%w: unreadable response: %v", captcha.ErrVerifyFailed, err)
	}
	return captcha.CheckVerify(v.ErrorMsg)
}

// Login posts the assembled credential form for target.
func (c *Client) Login(ctx context.Context, target string, form httpx.Form) (*transport.Response, error) {
	resp, err := c.t.PostForm(ctx, c.loginURL(target), nil, form)
	if err != nil {
		return nil, err
	}
	if err := transport.CheckStatus("login", resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// IsLoggedIn probes the authserver index without following redirects. A
// 302 means the session has no ticket.
func (c *Client) IsLoggedIn(ctx context.Context) bool {
	resp, err := c.t.WithoutRedirects().Get(ctx, c.ep.Authserver, nil)
	if err != nil {
		return false
	}
	return resp.StatusCode != http.StatusFound
}

// UserConf is the display name block returned by GetUserConf.
type UserConf struct {
	CN string `json:"cn"`
	EN string `json:"en"`
}

// GetUserConf returns the logged in user's configured display names.
func (c *Client) GetUserConf(ctx context.Context) (*UserConf, error) {
	resp, err := c.t.PostJSON(ctx, c.ep.GetUserConf, nil, map[string]float64{"n": userConfNonce})
	if err != nil {
		return nil, err
	}
	if err := transport.CheckStatus("get user conf", resp); err != nil {
		return nil, err
	}

	var conf UserConf
	if err := json.Unmarshal(resp.Body, &conf); err != nil {
		return nil, fmt.Errorf("decode user conf: %w", err)
	}
	return &conf, nil
}
