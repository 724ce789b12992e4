package captcha_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"testing"

	"github.com/aussiebroadwan/xdauth/internal/captcha"
	"github.com/stretchr/testify/require"
)

func noise(w, h int, seed uint64) *image.RGBA {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{uint8(r.IntN(256)), uint8(r.IntN(256)), uint8(r.IntN(256)), 0xff})
		}
	}
	return img
}

// piece cuts a disc-shaped piece out of big at (ox, 0) on a transparent
// background the height of big.
func piece(big *image.RGBA, ox, size int) *image.NRGBA {
	h := big.Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, size, h))
	cy := h / 2
	r := size / 2
	for y := range h {
		for x := range size {
			dx, dy := x-r, y-cy
			if dx*dx+dy*dy > r*r {
				continue
			}
			c := big.RGBAAt(ox+x, y)
			out.SetNRGBA(x, y, color.NRGBA{c.R, c.G, c.B, 0xff})
		}
	}
	return out
}

func encodePNG(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func fixedSolver(raw uint32) captcha.SliderSolver {
	return func(big, small image.Image) (uint32, error) { return raw, nil }
}

func TestScaleOffset(t *testing.T) {
	t.Parallel()

	v, err := captcha.ScaleOffset(590, 590)
	require.NoError(t, err)
	require.Equal(t, uint32(captcha.CanvasWidth), v)

	v, err = captcha.ScaleOffset(100, 280)
	require.NoError(t, err)
	require.Equal(t, uint32(100), v)

	_, err = captcha.ScaleOffset(10, 0)
	require.ErrorIs(t, err, captcha.ErrMalformedChallenge)
}

func TestResolveOffsetScalingIsLinear(t *testing.T) {
	t.Parallel()

	small := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	narrow := &captcha.Challenge{Big: image.NewRGBA(image.Rect(0, 0, 200, 10)), Small: small}
	wide := &captcha.Challenge{Big: image.NewRGBA(image.Rect(0, 0, 400, 10)), Small: small}

	a, err := captcha.ResolveOffset(narrow, fixedSolver(100))
	require.NoError(t, err)
	b, err := captcha.ResolveOffset(wide, fixedSolver(100))
	require.NoError(t, err)
	require.Equal(t, uint32(140), a)
	require.Equal(t, a/2, b)

	full, err := captcha.ResolveOffset(wide, fixedSolver(400))
	require.NoError(t, err)
	require.Equal(t, uint32(280), full)
}

func TestResolveOffsetSolverCancel(t *testing.T) {
	t.Parallel()

	ch := &captcha.Challenge{Big: image.NewRGBA(image.Rect(0, 0, 10, 10)), Small: image.NewRGBA(image.Rect(0, 0, 2, 2))}
	_, err := captcha.ResolveOffset(ch, func(big, small image.Image) (uint32, error) {
		return 0, captcha.Canceled("user closed the window")
	})
	require.ErrorIs(t, err, captcha.ErrCanceled)
}

func TestMatchOffset(t *testing.T) {
	t.Parallel()

	big := noise(160, 40, 7)
	for _, ox := range []int{0, 37, 118} {
		got, err := captcha.MatchOffset(big, piece(big, ox, 30))
		require.NoError(t, err)
		require.Equal(t, uint32(ox), got)
	}

	t.Run("built in solver is used without a callback", func(t *testing.T) {
		v, err := captcha.ResolveOffset(&captcha.Challenge{Big: big, Small: piece(big, 80, 30)}, nil)
		require.NoError(t, err)
		require.Equal(t, uint32(80*280/160), v)
	})

	t.Run("piece larger than background", func(t *testing.T) {
		_, err := captcha.MatchOffset(noise(10, 10, 1), noise(20, 10, 1))
		require.ErrorIs(t, err, captcha.ErrMalformedChallenge)
	})

	t.Run("transparent piece", func(t *testing.T) {
		_, err := captcha.MatchOffset(big, image.NewNRGBA(image.Rect(0, 0, 10, 40)))
		require.ErrorIs(t, err, captcha.ErrMalformedChallenge)
	})
}

func TestDecodeChallenge(t *testing.T) {
	t.Parallel()

	big := noise(60, 20, 3)
	payload, err := json.Marshal(map[string]string{
		"bigImage":   encodePNG(t, big),
		"smallImage": encodePNG(t, piece(big, 10, 12)),
	})
	require.NoError(t, err)

	ch, err := captcha.DecodeChallenge(payload)
	require.NoError(t, err)
	require.Equal(t, 60, ch.Big.Bounds().Dx())
	require.Equal(t, 12, ch.Small.Bounds().Dx())

	for name, bad := range map[string]string{
		"not json":      `{`,
		"missing image": `{"bigImage":""}`,
		"bad base64":    `{"bigImage":"!!","smallImage":"!!"}`,
		"not an image":  `{"bigImage":"aGVsbG8=","smallImage":"aGVsbG8="}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := captcha.DecodeChallenge([]byte(bad))
			require.ErrorIs(t, err, captcha.ErrMalformedChallenge)
		})
	}
}

func TestCheckVerify(t *testing.T) {
	t.Parallel()

	require.NoError(t, captcha.CheckVerify("success"))
	require.ErrorIs(t, captcha.CheckVerify("Success"), captcha.ErrVerifyFailed)
	require.ErrorIs(t, captcha.CheckVerify("error"), captcha.ErrVerifyFailed)
	require.ErrorIs(t, captcha.CheckVerify(""), captcha.ErrVerifyFailed)
}
