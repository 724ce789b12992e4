package login_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/xdauth/internal/login"
	"github.com/aussiebroadwan/xdauth/internal/protocol"
	"github.com/aussiebroadwan/xdauth/internal/transport"
	"github.com/aussiebroadwan/xdauth/internal/transport/transporttest"
	"github.com/aussiebroadwan/xdauth/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const casPage = `<html><body>
<form id="pwdFromId" method="post">
  <div class="item"><input id="username" value=""/></div>
  <input type="hidden" id="pwdEncryptSalt" value="0123456789abcdef"/>
  <input type="hidden" name="lt" value="LT-1"/>
  <input type="hidden" id="execution" value="e1s1"/>
</form>
</body></html>`

const forumPage = `<form method="post" name="login" id="loginform_LxA1b" action="member.php?mod=logging&amp;action=login&amp;loginsubmit=yes&amp;loginhash=LxA1b">
<div class="c cl"><span>login</span></div>
<input type="hidden" name="formhash" value="f0rmh4sh" />
<input type="hidden" name="referer" value="http://rs.xidian.edu.cn/forum.php" />
<input name="seccodehash" type="hidden" value="cSA" />
<script>updateseccode('cSA', '', 'member::logging');</script>
</form>`

const forumSecCode = `<root><![CDATA[<span id="vseccode_cSA"><img src="misc.php?mod=seccode&update=77&idhash=cSA" /></span>]]></root>`

func newOrchestrator(stub *transporttest.Stub) *login.Orchestrator {
	return &login.Orchestrator{
		Endpoints:    protocol.Default(),
		NewTransport: func(string) (transport.Transport, error) { return stub, nil },
		Logger:       slogx.Discard(),
		Now:          func() time.Time { return time.UnixMilli(1700000000000) },
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0x40, 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func challengeJSON(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]string{
		"bigImage":   base64.StdEncoding.EncodeToString(pngBytes(t, 56, 20)),
		"smallImage": base64.StdEncoding.EncodeToString(pngBytes(t, 10, 20)),
	})
	require.NoError(t, err)
	return data
}

func fixedSlider(raw uint32) func(big, small image.Image) (uint32, error) {
	return func(big, small image.Image) (uint32, error) { return raw, nil }
}

// casStub routes every IDS endpoint. Handlers may be replaced afterwards.
func casStub(t *testing.T) (*transporttest.Stub, protocol.Endpoints) {
	t.Helper()
	ep := protocol.Default()
	stub := transporttest.New()
	stub.Handle(http.MethodGet, ep.IDS.Login, transporttest.Text(http.StatusOK, casPage))
	stub.Handle(http.MethodGet, ep.IDS.CheckNeedCaptcha, transporttest.Text(http.StatusOK, `{"isNeed":false}`))
	stub.Handle(http.MethodGet, ep.IDS.OpenSliderCaptcha, transporttest.Bytes(challengeJSON(t)))
	stub.Handle(http.MethodPost, ep.IDS.VerifySliderCaptcha, transporttest.Text(http.StatusOK, `{"errorMsg":"success"}`))
	stub.Handle(http.MethodPost, ep.IDS.Login, transporttest.Text(http.StatusOK, "<html>welcome</html>"))
	stub.Handle(http.MethodGet, ep.IDS.Authserver, transporttest.Text(http.StatusOK, ""))
	return stub, ep
}

// forumStub routes the forum endpoints. The seccode update and the image
// share misc.php and are told apart by the query.
func forumStub(t *testing.T, submit transporttest.Handler) (*transporttest.Stub, protocol.Endpoints) {
	t.Helper()
	ep := protocol.Default()
	stub := transporttest.New()
	img := pngBytes(t, 60, 24)

	stub.Handle(http.MethodGet, "https://rs.xidian.edu.cn/member.php", transporttest.Text(http.StatusOK, forumPage))
	stub.Handle(http.MethodGet, "https://rs.xidian.edu.cn/misc.php", func(req transporttest.Request) (*transport.Response, error) {
		if strings.Contains(req.URL, "action=update") {
			return transporttest.Text(http.StatusOK, forumSecCode)(req)
		}
		return transporttest.Bytes(img)(req)
	})
	stub.Handle(http.MethodPost, "https://rs.xidian.edu.cn/member.php", submit)
	stub.Handle(http.MethodGet, "https://rs.xidian.edu.cn/forum.php", transporttest.Text(http.StatusOK, ""))
	return stub, ep
}

func imageDownloads(stub *transporttest.Stub) int {
	n := 0
	for _, r := range stub.Calls(http.MethodGet, "https://rs.xidian.edu.cn/misc.php") {
		if !strings.Contains(r.URL, "action=update") {
			n++
		}
	}
	return n
}

func requireLoginError(t *testing.T, err error, kind login.Kind, fatal bool) *login.Error {
	t.Helper()
	var lerr *login.Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, kind, lerr.Kind, "error: %v", err)
	require.Equal(t, fatal, lerr.IsFatal(), "error: %v", err)
	return lerr
}
