package extract_test

import (
	"testing"

	"github.com/aussiebroadwan/xdauth/internal/extract"
	"github.com/stretchr/testify/require"
)

const forumPage = `<div id="main_messaqge_LxA1b">
<form method="post" autocomplete="off" name="login" id="loginform_LxA1b" class="cl" onsubmit="pwdclear=1;ajaxpost('loginform_LxA1b', 'returnmessage_LxA1b', 'returnmessage_LxA1b', 'onerror');return false;" action="member.php?mod=logging&amp;action=login&amp;loginsubmit=yes&amp;handlekey=login&amp;loginhash=LxA1b">
<div class="c cl"><span>login</span></div>
<input type="hidden" name="formhash" value="f0rmh4sh" />
<input type="hidden" name="referer" value="http://rs.xidian.edu.cn/forum.php" />
<input name="seccodehash" type="hidden" value="cSA" />
<input name="seccodemodid" type="hidden" value="member::logging" />
<span id="seccode_cSA"></span><script type="text/javascript" reload="1">updateseccode('cSA', '', 'member::logging');</script>
</form>
</div>`

func TestFindIDHash(t *testing.T) {
	t.Parallel()

	h, err := extract.FindIDHash(forumPage)
	require.NoError(t, err)
	require.Equal(t, "cSA", h)

	_, err = extract.FindIDHash("<html></html>")
	require.ErrorIs(t, err, extract.ErrMissingIDHash)
}

func TestFindCaptchaImageURL(t *testing.T) {
	t.Parallel()

	fragment := `<?xml version="1.0" encoding="utf-8"?><root><![CDATA[<span class="xg2">input below</span>` +
		`<img onclick="updateseccode('cSA')" width="100" height="30" src="misc.php?mod=seccode&update=123&idhash=cSA" class="vm" alt="" />` +
		`<span id="vseccode_cSA"><img src="ignored.png"/><img src="misc.php?mod=seccode&update=456&idhash=cSA" /></span>]]></root>`

	u, err := extract.FindCaptchaImageURL("cSA", fragment)
	require.NoError(t, err)
	require.Equal(t, "misc.php?mod=seccode&update=456&idhash=cSA", u)

	_, err = extract.FindCaptchaImageURL("other", fragment)
	require.ErrorIs(t, err, extract.ErrMissingCaptchaImage)
}

func TestFindLoginHashAndURL(t *testing.T) {
	t.Parallel()

	hash, end, err := extract.FindLoginHash(forumPage)
	require.NoError(t, err)
	require.Equal(t, "LxA1b", hash)

	u, err := extract.FindLoginURL(forumPage, end)
	require.NoError(t, err)
	require.Equal(t, "member.php?mod=logging&amp;action=login&amp;loginsubmit=yes&amp;handlekey=login&amp;loginhash=LxA1b", u)

	t.Run("unterminated hash uses five bytes", func(t *testing.T) {
		hash, end, err := extract.FindLoginHash(`action="x?loginhash=ABCDEFG`)
		require.NoError(t, err)
		require.Equal(t, "ABCDE", hash)

		u, err := extract.FindLoginURL(`action="x?loginhash=ABCDEFG`, end)
		require.NoError(t, err)
		require.Equal(t, "x?loginhash=ABCDE", u)
	})

	t.Run("missing", func(t *testing.T) {
		_, _, err := extract.FindLoginHash("nothing")
		require.ErrorIs(t, err, extract.ErrMissingLoginHash)

		_, _, err = extract.FindLoginHash("loginhash=ab")
		require.ErrorIs(t, err, extract.ErrMissingLoginHash)

		_, err = extract.FindLoginURL("loginhash=abc\"", 13)
		require.ErrorIs(t, err, extract.ErrMissingLoginURL)
	})
}

func TestForumFormRegion(t *testing.T) {
	t.Parallel()

	region, err := extract.FindBoundedRegion([]string{"loginform_LxA1b", "loginform_"}, forumPage)
	require.NoError(t, err)

	form, err := extract.ScanInputFields(region, `name="`)
	require.NoError(t, err)

	require.Equal(t, []string{"formhash", "referer", "seccodehash", "seccodemodid"}, form.Fields.Names())
	v, ok := form.Fields.Get("seccodehash")
	require.True(t, ok)
	require.Equal(t, "cSA", v)
}

func TestFindErrorMessage(t *testing.T) {
	t.Parallel()

	body := `<?xml version="1.0" encoding="utf-8"?><root><![CDATA[抱歉，密码错误，您还可以尝试 4 次<script type="text/javascript">errorhandle_()</script>]]></root>`
	require.Equal(t, "密码错误，您还可以尝试 4 次", extract.FindErrorMessage(body))

	require.Equal(t, "plain failure", extract.FindErrorMessage("plain failure"))
	require.Equal(t, "![CDATA[no script", extract.FindErrorMessage("![CDATA[no script"))
}
