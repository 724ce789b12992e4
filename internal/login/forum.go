package login

import (
	"context"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/xdauth/internal/captcha"
	"github.com/aussiebroadwan/xdauth/internal/extract"
	"github.com/aussiebroadwan/xdauth/internal/protocol/rsbbs"
	"github.com/aussiebroadwan/xdauth/pkg/cryptox"
	"github.com/aussiebroadwan/xdauth/pkg/slogx"
)

// Markers in the forum's login response.
const (
	forumWelcome      = "欢迎您回来"
	forumWrongSecCode = "验证码填写错误"
)

// forumPortal logs in to RSBBS. Every attempt answers a fresh text captcha.
type forumPortal struct {
	rs         *rsbbs.Client
	cred       Credential
	qa         QuestionAnswerPair
	cookieDays int
	solver     captcha.TextSolver
}

type forumPage struct {
	html    string
	referer string
	idHash  string
	imgURL  string
	secCode string
}

var _ Portal[*forumPage] = (*forumPortal)(nil)

func (p *forumPortal) FetchLoginPage(ctx context.Context) (*forumPage, error) {
	resp, err := p.rs.LoginPage(ctx)
	if err != nil {
		return nil, err
	}
	page := &forumPage{html: resp.Text(), referer: resp.URL}

	if page.idHash, err = extract.FindIDHash(page.html); err != nil {
		return nil, err
	}
	frag, err := p.rs.UpdateSecCode(ctx, page.idHash, page.referer, true)
	if err != nil {
		return nil, err
	}
	page.imgURL, _ = extract.FindCaptchaImageURL(page.idHash, frag.Text())
	return page, nil
}

func (p *forumPortal) NeedsCaptcha(context.Context, *forumPage) bool {
	return true
}

func (p *forumPortal) Challenge(ctx context.Context, page *forumPage) error {
	if page.imgURL == "" {
		return extract.ErrMissingCaptchaImage
	}
	img, err := p.rs.DownloadCaptcha(ctx, page.referer, page.imgURL)
	if err != nil {
		return err
	}

	code, err := p.solver(img)
	if err != nil {
		return solverFailure(err)
	}
	page.secCode = code
	return nil
}

func (p *forumPortal) Submit(ctx context.Context, page *forumPage) error {
	resp, err := p.rs.Login(ctx, page.referer, page.html, rsbbs.Credentials{
		Username:    p.cred.Account,
		PasswordMD5: cryptox.MD5Hex(p.cred.Password),
		QuestionID:  p.qa.Question.ID(),
		Answer:      p.qa.Answer,
		SecCode:     page.secCode,
		CookieDays:  p.cookieDays,
	})
	if err != nil {
		return err
	}

	body := resp.Text()
	switch {
	case strings.Contains(body, forumWelcome):
		return nil
	case strings.Contains(body, forumWrongSecCode):
		return fmt.Errorf("%w: forum rejected the captcha answer", captcha.ErrVerifyFailed)
	default:
		// The message sits between a CDATA marker and a script tag. This
		// breaks as soon as the forum changes its template.
		return fmt.Errorf("%w: %s", ErrServerRejected, extract.FindErrorMessage(body))
	}
}

// Refresh asks for a new captcha. The image URL is kept if the refreshed
// fragment does not carry one; the forum serves a new image at the same URL.
func (p *forumPortal) Refresh(ctx context.Context, page *forumPage) error {
	frag, err := p.rs.RefreshSecCode(ctx, page.idHash, page.referer)
	if err != nil {
		return err
	}
	if u, err := extract.FindCaptchaImageURL(page.idHash, frag.Text()); err == nil {
		page.imgURL = u
	} else {
		slogx.FromContext(ctx).Debug("refreshed seccode has no image, reusing previous")
	}
	page.secCode = ""
	return nil
}

func (p *forumPortal) IsAuthenticated(ctx context.Context) bool {
	return p.rs.IsLoggedIn(ctx)
}
