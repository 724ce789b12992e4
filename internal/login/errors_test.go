package login

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aussiebroadwan/xdauth/internal/captcha"
	"github.com/aussiebroadwan/xdauth/internal/extract"
	"github.com/aussiebroadwan/xdauth/internal/transport"
	"github.com/aussiebroadwan/xdauth/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		err   error
		kind  Kind
		fatal bool
	}{
		{"transport dns", &transport.Error{Kind: transport.KindDNS}, KindTransport, false},
		{"transport refused", &transport.Error{Kind: transport.KindConnectionRefused}, KindTransport, true},
		{"transport 504", &transport.Error{Kind: transport.KindStatus, StatusCode: 504}, KindTransport, false},
		{"verify failed", captcha.CheckVerify("nope"), KindCaptcha, false},
		{"image missing", extract.ErrMissingCaptchaImage, KindCaptcha, false},
		{"unsolved", fmt.Errorf("%w: blurry", ErrUnsolved), KindCaptcha, false},
		{"canceled", captcha.Canceled("user"), KindCaptcha, true},
		{"malformed", captcha.ErrMalformedChallenge, KindCaptcha, true},
		{"crypto", cryptox.ErrInvalidKeySize, KindCrypto, true},
		{"cipher", cryptox.ErrCipher, KindCrypto, true},
		{"missing content", extract.ErrMissingContent, KindServer, true},
		{"missing salt", extract.ErrMissingSalt, KindServer, true},
		{"rejected", ErrServerRejected, KindServer, true},
		{"invalid question", ErrInvalidQuestion, KindInput, true},
		{"unknown", errors.New("boom"), KindInternal, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := classify("op", tc.err)
			require.Equal(t, tc.kind, e.Kind)
			require.Equal(t, tc.fatal, e.IsFatal())
			require.ErrorIs(t, e, tc.err)
		})
	}
}

func TestClassifyKeepsExisting(t *testing.T) {
	t.Parallel()

	orig := &Error{Kind: KindServer, Op: "submit", Fatal: true, Err: ErrServerRejected}
	require.Same(t, orig, classify("other", fmt.Errorf("wrapped: %w", orig)))
}

func TestRetryableOnlyForCaptcha(t *testing.T) {
	t.Parallel()

	require.True(t, retryable(&Error{Kind: KindCaptcha}))
	require.False(t, retryable(&Error{Kind: KindCaptcha, Fatal: true}))
	require.False(t, retryable(&Error{Kind: KindTransport}))
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	require.False(t, IsFatal(nil))
	require.True(t, IsFatal(errors.New("foreign")))
	require.False(t, IsFatal(&Error{Kind: KindCaptcha}))
	require.True(t, IsFatal(fmt.Errorf("ctx: %w", &Error{Fatal: true})))
}
