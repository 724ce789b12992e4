package captcha

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrCanceled is returned by a solver that gives up. It is never retried.
	ErrCanceled = errors.New("captcha: canceled")
	// ErrVerifyFailed means the server rejected the submitted answer.
	ErrVerifyFailed = errors.New("captcha: verification failed")
)

// SuccessToken is the only verify response that counts as solved.
const SuccessToken = "success"

// SliderSolver returns the horizontal pixel offset of the piece within big.
type SliderSolver func(big, small image.Image) (uint32, error)

// TextSolver reads the characters of a distorted text captcha.
type TextSolver func(img image.Image) (string, error)

// Canceled wraps ErrCanceled with a reason.
func Canceled(reason string) error {
	return fmt.Errorf("%w: %s", ErrCanceled, reason)
}

// CheckVerify maps the verify endpoint's errorMsg onto an error.
func CheckVerify(errorMsg string) error {
	if errorMsg == SuccessToken {
		return nil
	}
	return fmt.Errorf("%w: server said %q", ErrVerifyFailed, errorMsg)
}

// ScaleOffset converts a pixel offset in an image of bigWidth pixels into
// the canvas-relative move length the server expects.
func ScaleOffset(raw uint32, bigWidth int) (uint32, error) {
	if bigWidth <= 0 {
		return 0, fmt.Errorf("%w: image width %d", ErrMalformedChallenge, bigWidth)
	}
	return uint32(uint64(raw) * CanvasWidth / uint64(bigWidth)), nil
}

// ResolveOffset solves ch with solver, or with MatchOffset when solver is
// nil, and scales the answer to the canvas.
func ResolveOffset(ch *Challenge, solver SliderSolver) (uint32, error) {
	if solver == nil {
		solver = MatchOffset
	}
	raw, err := solver(ch.Big, ch.Small)
	if err != nil {
		return 0, err
	}
	return ScaleOffset(raw, ch.Big.Bounds().Dx())
}
