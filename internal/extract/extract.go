// Package extract pulls form fields and tokens out of portal login pages.
//
// Everything here is plain substring search over the raw page text. The
// portals emit malformed markup that structural parsers repair in ways that
// move fields between forms, so marker order and slice offsets matter and
// must not be "fixed".
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/xdauth/pkg/httpx"
)

var (
	// ErrMissingContent means none of the region markers appear in the page.
	ErrMissingContent = errors.New("server error: page missing expected content")
	// ErrMissingSalt means the login form carried no pwdEncryptSalt input.
	ErrMissingSalt = errors.New("server error: login page has no encryption salt")
	// ErrInvalidSalt means the salt input was present but not 16 bytes.
	ErrInvalidSalt = errors.New("server error: encryption salt is not 16 bytes")
)

// SaltField is the hidden input holding the per-session AES key.
const SaltField = "pwdEncryptSalt"

// SaltSize is the only accepted salt length.
const SaltSize = 16

const (
	formClose = "</form>"
	divClose  = "</div>"
	// divSkip is added to the index of the last </div>, which is also applied
	// when no </div> exists.
	divSkip = 6

	inputOpen   = "<input "
	valueMarker = `value="`
)

// DefaultIDMarkers are tried in order to name an input: id first, then name.
var DefaultIDMarkers = []string{`id="`, `name="`}

// FindBoundedRegion locates the part of html that holds a form's inputs.
//
// Every marker is searched for and the last one found wins, so callers list
// generic markers before specific ones. The region runs from that marker to
// the next </form> (or the end of html) and is then narrowed to what follows
// the last </div> inside it.
func FindBoundedRegion(markers []string, html string) (string, error) {
	start := -1
	for _, m := range markers {
		if i := strings.Index(html, m); i >= 0 {
			start = i
		}
	}
	if start < 0 {
		return "", ErrMissingContent
	}

	region := html[start:]
	if end := strings.Index(region, formClose); end >= 0 {
		region = region[:end]
	}

	cut := strings.LastIndex(region, divClose)
	if cut < 0 {
		cut = 0
	}
	cut = min(cut+divSkip, len(region))
	return region[cut:], nil
}

// Form is the result of scanning a form region.
type Form struct {
	// Fields holds every named input except the salt, in page order.
	Fields httpx.Form
	// Salt is nil when the region had no salt input.
	Salt []byte
}

// RequireSalt returns the salt or ErrMissingSalt.
func (f *Form) RequireSalt() ([]byte, error) {
	if f.Salt == nil {
		return nil, ErrMissingSalt
	}
	return f.Salt, nil
}

// ScanInputFields collects name/value pairs from every <input in region.
//
// The first of idMarkers present in an input names it (DefaultIDMarkers when
// none are given). Inputs without a name or a value are skipped. The salt
// input is moved to Form.Salt instead of Form.Fields.
func ScanInputFields(region string, idMarkers ...string) (*Form, error) {
	if len(idMarkers) == 0 {
		idMarkers = DefaultIDMarkers
	}

	form := &Form{}
	for _, fragment := range strings.Split(region, inputOpen) {
		name, value, ok := inputPair(fragment, idMarkers)
		if !ok {
			continue
		}
		if name == SaltField {
			if len(value) != SaltSize {
				return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSalt, len(value))
			}
			form.Salt = []byte(value)
			continue
		}
		form.Fields.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return form, nil
}

func inputPair(fragment string, idMarkers []string) (name, value string, ok bool) {
	name, ok = quotedAfterFirst(fragment, idMarkers)
	if !ok {
		return "", "", false
	}
	value, ok = quotedAfterFirst(fragment, []string{valueMarker})
	if !ok {
		return "", "", false
	}
	return name, value, true
}

// quotedAfterFirst returns the text between the first present marker and the
// next double quote.
func quotedAfterFirst(s string, markers []string) (string, bool) {
	for _, m := range markers {
		i := strings.Index(s, m)
		if i < 0 {
			continue
		}
		rest := s[i+len(m):]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return "", false
		}
		return rest[:end], true
	}
	return "", false
}
