// Package captcha decodes portal captcha challenges and solves slider
// puzzles.
package captcha

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"

	// Portals have served every one of these formats at some point.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/aussiebroadwan/xdauth/pkg/cryptox"
)

// CanvasWidth is the logical width the IDS slider reports offsets against.
const CanvasWidth = 280

var (
	// ErrMalformedChallenge means the challenge payload or an image in it
	// could not be decoded.
	ErrMalformedChallenge = errors.New("captcha: malformed challenge")
)

// Challenge is a slider puzzle: the background with a hole and the piece
// that fills it.
type Challenge struct {
	Big   image.Image
	Small image.Image
}

type challengePayload struct {
	SmallImage string `json:"smallImage"`
	BigImage   string `json:"bigImage"`
}

// DecodeChallenge parses the openSliderCaptcha JSON body.
func DecodeChallenge(payload []byte) (*Challenge, error) {
	var p challengePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChallenge, err)
	}
	if p.BigImage == "" || p.SmallImage == "" {
		return nil, fmt.Errorf("%w: missing image", ErrMalformedChallenge)
	}

	big, err := decodeBase64Image(p.BigImage)
	if err != nil {
		return nil, fmt.Errorf("big image: %w", err)
	}
	small, err := decodeBase64Image(p.SmallImage)
	if err != nil {
		return nil, fmt.Errorf("small image: %w", err)
	}
	return &Challenge{Big: big, Small: small}, nil
}

func decodeBase64Image(s string) (image.Image, error) {
	raw, err := cryptox.Base64Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChallenge, err)
	}
	return DecodeImage(raw)
}

// DecodeImage decodes any registered image format.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChallenge, err)
	}
	return img, nil
}
