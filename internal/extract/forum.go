package extract

import (
	"errors"
	"strings"
)

var (
	// ErrMissingIDHash means the page had no updateseccode('...') call.
	ErrMissingIDHash = errors.New("server error: captcha id hash not found")
	// ErrMissingCaptchaImage means the seccode fragment had no image for the
	// id hash. The server sometimes answers with an empty fragment, so this
	// is worth retrying with a fresh token.
	ErrMissingCaptchaImage = errors.New("captcha image not found")
	// ErrMissingLoginHash means the page had no loginhash= token.
	ErrMissingLoginHash = errors.New("server error: login hash not found")
	// ErrMissingLoginURL means no action attribute precedes the login hash.
	ErrMissingLoginURL = errors.New("server error: login url not found")
)

const (
	seccodeCall   = "updateseccode('"
	seccodeImgID  = "vseccode_"
	srcMarker     = `src="`
	loginHashMark = "loginhash="
	actionMarker  = `action="`
	cdataMarker   = "![CDATA["
	scriptOpen    = "<script"
	apologyPrefix = "抱歉，"

	// loginHashFallbackLen is used when the hash is not followed by a quote.
	loginHashFallbackLen = 5
)

// FindIDHash returns the argument of the page's updateseccode('...') call.
func FindIDHash(html string) (string, error) {
	i := strings.Index(html, seccodeCall)
	if i < 0 {
		return "", ErrMissingIDHash
	}
	rest := html[i+len(seccodeCall):]
	end := strings.IndexByte(rest, '\'')
	if end < 0 {
		return "", ErrMissingIDHash
	}
	return rest[:end], nil
}

// FindCaptchaImageURL returns the src of the captcha image for idHash. The
// last src attribute after the vseccode_<idHash> element is used.
func FindCaptchaImageURL(idHash, html string) (string, error) {
	i := strings.Index(html, seccodeImgID+idHash)
	if i < 0 {
		return "", ErrMissingCaptchaImage
	}
	rest := html[i:]
	j := strings.LastIndex(rest, srcMarker)
	if j < 0 {
		return "", ErrMissingCaptchaImage
	}
	rest = rest[j+len(srcMarker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return "", ErrMissingCaptchaImage
	}
	return rest[:end], nil
}

// FindLoginHash returns the login hash and the index in html just past it.
func FindLoginHash(html string) (hash string, end int, err error) {
	i := strings.Index(html, loginHashMark)
	if i < 0 {
		return "", 0, ErrMissingLoginHash
	}
	start := i + len(loginHashMark)
	rest := html[start:]

	if q := strings.IndexByte(rest, '"'); q >= 0 {
		return rest[:q], start + q, nil
	}
	if len(rest) >= loginHashFallbackLen {
		return rest[:loginHashFallbackLen], start + loginHashFallbackLen, nil
	}
	return "", 0, ErrMissingLoginHash
}

// FindLoginURL returns the form action that ends at hashEnd, as found by
// FindLoginHash. The result is still HTML-escaped.
func FindLoginURL(html string, hashEnd int) (string, error) {
	if hashEnd < 0 || hashEnd > len(html) {
		return "", ErrMissingLoginURL
	}
	head := html[:hashEnd]
	i := strings.LastIndex(head, actionMarker)
	if i < 0 {
		return "", ErrMissingLoginURL
	}
	return head[i+len(actionMarker):], nil
}

// FindErrorMessage pulls the human readable message out of a failed forum
// login response. The forum wraps it in a CDATA section followed by a
// script tag; when that shape is absent the whole body is returned.
func FindErrorMessage(body string) string {
	i := strings.Index(body, cdataMarker)
	if i < 0 {
		return body
	}
	msg := body[i+len(cdataMarker):]
	if j := strings.Index(msg, scriptOpen); j >= 0 {
		msg = msg[:j]
	} else {
		return body
	}
	return strings.TrimPrefix(strings.TrimSpace(msg), apologyPrefix)
}
