package login_test

import (
	"context"
	"errors"
	"image"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/xdauth/internal/captcha"
	"github.com/aussiebroadwan/xdauth/internal/extract"
	"github.com/aussiebroadwan/xdauth/internal/login"
	"github.com/aussiebroadwan/xdauth/internal/transport"
	"github.com/aussiebroadwan/xdauth/internal/transport/transporttest"
	"github.com/aussiebroadwan/xdauth/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestCASLoginWithoutCaptcha(t *testing.T) {
	t.Parallel()

	stub, ep := casStub(t)
	sess, err := newOrchestrator(stub).Login(context.Background(), login.Request{
		Account:  "u1",
		Password: []byte("pw"),
		Portal:   login.PortalIDS,
	})
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, 1, sess.Attempts)

	require.Empty(t, stub.Calls(http.MethodGet, ep.IDS.OpenSliderCaptcha))

	posts := stub.Calls(http.MethodPost, ep.IDS.Login)
	require.Len(t, posts, 1)
	form := posts[0].Form

	v, ok := form.Get("username")
	require.True(t, ok)
	require.Equal(t, "u1", v)

	pw, ok := form.Get("password")
	require.True(t, ok)
	require.NotEmpty(t, pw)
	require.NotEqual(t, "pw", pw)

	v, _ = form.Get("remember_me")
	require.Equal(t, "true", v)
	v, ok = form.Get("captcha")
	require.True(t, ok)
	require.Empty(t, v)

	v, _ = form.Get("lt")
	require.Equal(t, "LT-1", v)
	_, ok = form.Get(extract.SaltField)
	require.False(t, ok)

	// The password decrypts under the page salt to the decoy prefix and "pw".
	raw, err := cryptox.Base64Decode(pw)
	require.NoError(t, err)
	plain, err := cryptox.DecryptCBC(raw, []byte("0123456789abcdef"), cryptox.LoginIV)
	require.NoError(t, err)
	require.Equal(t, "pw", string(plain[4*cryptox.BlockSize:]))

	require.True(t, sess.IsAuthenticated(context.Background()))
}

func TestCASCaptchaCheckFailsOpen(t *testing.T) {
	t.Parallel()

	for name, h := range map[string]transporttest.Handler{
		"transport error": transporttest.Fail(transport.KindDNS),
		"server error":    transporttest.Text(http.StatusInternalServerError, "true"),
	} {
		t.Run(name, func(t *testing.T) {
			stub, ep := casStub(t)
			stub.Handle(http.MethodGet, ep.IDS.CheckNeedCaptcha, h)

			_, err := newOrchestrator(stub).Login(context.Background(), login.Request{
				Account: "u1", Password: []byte("pw"), Portal: login.PortalIDS,
			})
			require.NoError(t, err)
			require.Len(t, stub.Calls(http.MethodGet, ep.IDS.CheckNeedCaptcha), 1)
			require.Empty(t, stub.Calls(http.MethodGet, ep.IDS.OpenSliderCaptcha))
			require.Len(t, stub.Calls(http.MethodPost, ep.IDS.Login), 1)
		})
	}
}

func TestCASCaptchaSolvedOnSecondTry(t *testing.T) {
	t.Parallel()

	stub, ep := casStub(t)
	stub.Handle(http.MethodGet, ep.IDS.CheckNeedCaptcha, transporttest.Text(http.StatusOK, `{"isNeed":true}`))
	stub.Handle(http.MethodPost, ep.IDS.VerifySliderCaptcha, transporttest.Sequence(
		transporttest.Text(http.StatusOK, `{"errorMsg":"error"}`),
		transporttest.Text(http.StatusOK, `{"errorMsg":"success"}`),
	))

	sess, err := newOrchestrator(stub).Login(context.Background(), login.Request{
		Account: "u1", Password: []byte("pw"), Portal: login.PortalIDS,
		SliderSolver: fixedSlider(28),
	})
	require.NoError(t, err)
	require.Equal(t, 2, sess.Attempts)

	verifies := stub.Calls(http.MethodPost, ep.IDS.VerifySliderCaptcha)
	require.Len(t, verifies, 2)
	// 28px of a 56px image is half the 280 canvas.
	v, _ := verifies[0].Form.Get("moveLength")
	require.Equal(t, "140", v)
	require.Len(t, stub.Calls(http.MethodPost, ep.IDS.Login), 1)
}

func TestCASRetryBound(t *testing.T) {
	t.Parallel()

	stub, ep := casStub(t)
	stub.Handle(http.MethodGet, ep.IDS.CheckNeedCaptcha, transporttest.Text(http.StatusOK, `{"isNeed":true}`))
	stub.Handle(http.MethodPost, ep.IDS.VerifySliderCaptcha, transporttest.Text(http.StatusOK, `{"errorMsg":"验证失败"}`))

	_, err := newOrchestrator(stub).Login(context.Background(), login.Request{
		Account: "u1", Password: []byte("pw"), Portal: login.PortalIDS,
		SliderSolver: fixedSlider(5),
	})
	lerr := requireLoginError(t, err, login.KindCaptcha, true)
	require.ErrorIs(t, err, login.ErrRetriesExhausted)
	require.ErrorIs(t, err, captcha.ErrVerifyFailed)
	require.Equal(t, login.DefaultMaxAttempts, lerr.Attempts)

	require.Len(t, stub.Calls(http.MethodPost, ep.IDS.VerifySliderCaptcha), 5)
	require.Len(t, stub.Calls(http.MethodGet, ep.IDS.OpenSliderCaptcha), 5)
	require.Empty(t, stub.Calls(http.MethodPost, ep.IDS.Login))
}

func TestCASRetryBoundIsConfigurable(t *testing.T) {
	t.Parallel()

	stub, ep := casStub(t)
	stub.Handle(http.MethodGet, ep.IDS.CheckNeedCaptcha, transporttest.Text(http.StatusOK, `{"isNeed":true}`))
	stub.Handle(http.MethodPost, ep.IDS.VerifySliderCaptcha, transporttest.Text(http.StatusOK, `{"errorMsg":"error"}`))

	o := newOrchestrator(stub)
	o.MaxAttempts = 2
	_, err := o.Login(context.Background(), login.Request{
		Account: "u1", Password: []byte("pw"), Portal: login.PortalIDS, SliderSolver: fixedSlider(5),
	})
	require.ErrorIs(t, err, login.ErrRetriesExhausted)
	require.Len(t, stub.Calls(http.MethodPost, ep.IDS.VerifySliderCaptcha), 2)
}

func TestCASSolverCanceledIsFatal(t *testing.T) {
	t.Parallel()

	stub, ep := casStub(t)
	stub.Handle(http.MethodGet, ep.IDS.CheckNeedCaptcha, transporttest.Text(http.StatusOK, `{"isNeed":true}`))

	_, err := newOrchestrator(stub).Login(context.Background(), login.Request{
		Account: "u1", Password: []byte("pw"), Portal: login.PortalIDS,
		SliderSolver: func(big, small image.Image) (uint32, error) {
			return 0, captcha.Canceled("no display")
		},
	})
	requireLoginError(t, err, login.KindCaptcha, true)
	require.ErrorIs(t, err, captcha.ErrCanceled)
	require.Len(t, stub.Calls(http.MethodGet, ep.IDS.OpenSliderCaptcha), 1)
	require.Empty(t, stub.Calls(http.MethodPost, ep.IDS.VerifySliderCaptcha))
}

func TestCASSolverFailureIsRetried(t *testing.T) {
	t.Parallel()

	stub, ep := casStub(t)
	stub.Handle(http.MethodGet, ep.IDS.CheckNeedCaptcha, transporttest.Text(http.StatusOK, `{"isNeed":true}`))

	calls := 0
	sess, err := newOrchestrator(stub).Login(context.Background(), login.Request{
		Account: "u1", Password: []byte("pw"), Portal: login.PortalIDS,
		SliderSolver: func(big, small image.Image) (uint32, error) {
			calls++
			if calls == 1 {
				return 0, errors.New("piece not found")
			}
			return 28, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, sess.Attempts)
	require.Equal(t, 2, calls)
	require.Len(t, stub.Calls(http.MethodGet, ep.IDS.OpenSliderCaptcha), 2)
	require.Len(t, stub.Calls(http.MethodPost, ep.IDS.VerifySliderCaptcha), 1)
	require.Len(t, stub.Calls(http.MethodPost, ep.IDS.Login), 1)

	t.Run("malformed challenge stays fatal", func(t *testing.T) {
		stub, ep := casStub(t)
		stub.Handle(http.MethodGet, ep.IDS.CheckNeedCaptcha, transporttest.Text(http.StatusOK, `{"isNeed":true}`))

		_, err := newOrchestrator(stub).Login(context.Background(), login.Request{
			Account: "u1", Password: []byte("pw"), Portal: login.PortalIDS,
			SliderSolver: func(big, small image.Image) (uint32, error) {
				return 0, captcha.ErrMalformedChallenge
			},
		})
		requireLoginError(t, err, login.KindCaptcha, true)
		require.ErrorIs(t, err, captcha.ErrMalformedChallenge)
		require.Len(t, stub.Calls(http.MethodGet, ep.IDS.OpenSliderCaptcha), 1)
	})
}

func TestCASPageFetchFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	stub, ep := casStub(t)
	stub.Handle(http.MethodGet, ep.IDS.Login, transporttest.Fail(transport.KindTimeout))

	_, err := newOrchestrator(stub).Login(context.Background(), login.Request{
		Account: "u1", Password: []byte("pw"), Portal: login.PortalIDS,
	})
	requireLoginError(t, err, login.KindTransport, false)
	require.Len(t, stub.Calls(http.MethodGet, ep.IDS.Login), 1)
	require.Empty(t, stub.Calls(http.MethodGet, ep.IDS.CheckNeedCaptcha))
}

func TestCASMissingSaltIsFatal(t *testing.T) {
	t.Parallel()

	stub, ep := casStub(t)
	stub.Handle(http.MethodGet, ep.IDS.Login, transporttest.Text(http.StatusOK,
		`<form id="pwdFromId"><div></div><input id="lt" value="x"/></form>`))

	_, err := newOrchestrator(stub).Login(context.Background(), login.Request{
		Account: "u1", Password: []byte("pw"), Portal: login.PortalIDS,
	})
	requireLoginError(t, err, login.KindServer, true)
	require.ErrorIs(t, err, extract.ErrMissingSalt)
	require.Empty(t, stub.Calls(http.MethodPost, ep.IDS.Login))
}

func TestCASTarget(t *testing.T) {
	t.Parallel()

	t.Run("ehall uses its own target and probe", func(t *testing.T) {
		stub, ep := casStub(t)
		stub.Handle(http.MethodGet, ep.Ehall.UserFavoriteApps, transporttest.Text(http.StatusOK, `{"hasLogin":true}`))

		sess, err := newOrchestrator(stub).Login(context.Background(), login.Request{
			Account: "u1", Password: []byte("pw"), Portal: login.PortalEhall,
		})
		require.NoError(t, err)
		require.Contains(t, stub.Calls(http.MethodPost, ep.IDS.Login)[0].URL, "service=http%3A%2F%2Fehall")
		require.True(t, sess.IsAuthenticated(context.Background()))

		stub.Handle(http.MethodGet, ep.Ehall.UserFavoriteApps, transporttest.Text(http.StatusOK, `{"hasLogin":false}`))
		require.False(t, sess.IsAuthenticated(context.Background()))
	})

	t.Run("ids honours target override", func(t *testing.T) {
		stub, ep := casStub(t)
		_, err := newOrchestrator(stub).Login(context.Background(), login.Request{
			Account: "u1", Password: []byte("pw"), Portal: login.PortalIDS,
			Target: "https://yjspt.xidian.edu.cn/",
		})
		require.NoError(t, err)
		require.Contains(t, stub.Calls(http.MethodPost, ep.IDS.Login)[0].URL, "service=https%3A%2F%2Fyjspt")
	})
}

func TestSessionLiveness(t *testing.T) {
	t.Parallel()

	for status, want := range map[int]bool{
		http.StatusFound:    false,
		http.StatusOK:       true,
		http.StatusNotFound: true,
	} {
		stub, ep := casStub(t)
		sess, err := newOrchestrator(stub).Login(context.Background(), login.Request{
			Account: "u1", Password: []byte("pw"), Portal: login.PortalIDS,
		})
		require.NoError(t, err)

		stub.Handle(http.MethodGet, ep.IDS.Authserver, transporttest.Text(status, ""))
		require.Equal(t, want, sess.IsAuthenticated(context.Background()), "status %d", status)
	}
}

func TestAssembleCASFormOrder(t *testing.T) {
	t.Parallel()

	form, err := login.AssembleCASForm(casPage, login.Credential{Account: "u1", Password: []byte("pw")})
	require.NoError(t, err)
	require.Equal(t, []string{"lt", "execution", "username", "password", "remember_me", "captcha"}, form.Names())
}
