package captcha

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// alphaOpaque is the minimum alpha for a piece pixel to take part in
// matching. The piece edges are anti-aliased against transparency.
const alphaOpaque = 0x8000

// MatchOffset finds the x position in big where small fits best, by
// normalized cross-correlation of luminance over the opaque pixels of small.
// It satisfies SliderSolver.
func MatchOffset(big, small image.Image) (uint32, error) {
	bb, sb := big.Bounds(), small.Bounds()
	bw, bh := bb.Dx(), bb.Dy()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 || sw > bw || sh > bh {
		return 0, fmt.Errorf("%w: piece %dx%d does not fit in %dx%d", ErrMalformedChallenge, sw, sh, bw, bh)
	}

	bigLum := luminance(big)
	tmpl := newTemplate(small)
	if len(tmpl.idx) == 0 {
		return 0, fmt.Errorf("%w: piece is fully transparent", ErrMalformedChallenge)
	}

	bestX, best := 0, math.Inf(-1)
	for y := 0; y+sh <= bh; y++ {
		for x := 0; x+sw <= bw; x++ {
			if s := tmpl.score(bigLum, bw, x, y); s > best {
				best, bestX = s, x
			}
		}
	}
	return uint32(bestX), nil
}

type template struct {
	w    int
	idx  []int     // offsets (dy*w+dx) of opaque pixels
	dev  []float64 // pixel luminance minus template mean
	norm float64   // sqrt(sum(dev^2))
}

func newTemplate(img image.Image) *template {
	b := img.Bounds()
	t := &template{w: b.Dx()}

	var vals []float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.At(x, y)
			if _, _, _, a := c.RGBA(); a < alphaOpaque {
				continue
			}
			t.idx = append(t.idx, (y-b.Min.Y)*t.w+(x-b.Min.X))
			vals = append(vals, lum(c))
		}
	}

	var mean float64
	for _, v := range vals {
		mean += v
	}
	if len(vals) > 0 {
		mean /= float64(len(vals))
	}

	t.dev = make([]float64, len(vals))
	var ss float64
	for i, v := range vals {
		t.dev[i] = v - mean
		ss += t.dev[i] * t.dev[i]
	}
	t.norm = math.Sqrt(ss)
	return t
}

// score is the NCC between the template and the window of big at (x, y).
func (t *template) score(big []float64, bigW, x, y int) float64 {
	n := float64(len(t.idx))
	var sum, sumSq, cross float64
	for i, off := range t.idx {
		dy, dx := off/t.w, off%t.w
		v := big[(y+dy)*bigW+x+dx]
		sum += v
		sumSq += v * v
		cross += v * t.dev[i]
	}
	// sum(dev) is zero, so cross already equals sum((v-mean_v)*dev).
	varW := sumSq - sum*sum/n
	if varW <= 0 || t.norm == 0 {
		return 0
	}
	return cross / (math.Sqrt(varW) * t.norm)
}

func luminance(img image.Image) []float64 {
	b := img.Bounds()
	w := b.Dx()
	out := make([]float64, w*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out[(y-b.Min.Y)*w+x-b.Min.X] = lum(img.At(x, y))
		}
	}
	return out
}

func lum(c color.Color) float64 {
	return float64(color.Gray16Model.Convert(c).(color.Gray16).Y)
}
