package cryptox

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Base64Encode encodes with the standard padded alphabet.
func Base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Base64Decode decodes standard padded base64. Surrounding whitespace is
// tolerated because some portals pretty-print their JSON.
func Base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

// PercentEncode escapes every byte that is not an ASCII letter or digit.
// url.QueryEscape keeps "-_.~" and turns spaces into "+", which the IDS
// service parameter does not accept.
func PercentEncode(s string) string {
	const hexUpper = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexUpper[c>>4])
		b.WriteByte(hexUpper[c&0x0f])
	}
	return b.String()
}

// MD5Hex returns the lowercase hex MD5 digest. Used only for the forum login.
func MD5Hex(b []byte) string {
	sum := md5.Sum(b) // #nosec G401 - required by the forum wire format
	return hex.EncodeToString(sum[:])
}
