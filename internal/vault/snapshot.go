package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/xdauth/internal/login"
	"github.com/aussiebroadwan/xdauth/internal/protocol"
	"github.com/aussiebroadwan/xdauth/internal/transport"
)

// ErrNoCookieJar is returned when a session transport cannot export or
// import cookies.
var ErrNoCookieJar = errors.New("vault: transport has no cookie jar")

// CookieJar is implemented by transports whose cookies can be snapshotted.
type CookieJar interface {
	Cookies(rawURL string) ([]*http.Cookie, error)
	SetCookies(rawURL string, cookies []*http.Cookie) error
}

type snapshotCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type snapshotOrigin struct {
	URL     string           `json:"url"`
	Cookies []snapshotCookie `json:"cookies"`
}

type cookieSnapshot struct {
	Portal  login.PortalKind `json:"portal"`
	Origins []snapshotOrigin `json:"origins"`
}

// snapshotURLs are the origins whose cookies make up a portal session.
func snapshotURLs(kind login.PortalKind, ep protocol.Endpoints) []string {
	switch kind {
	case login.PortalRSBBS:
		return []string{"https://" + ep.RSBBS.Host + "/"}
	case login.PortalEhall:
		return []string{ep.IDS.Login, ep.IDS.CheckNeedCaptcha, ep.Ehall.UserFavoriteApps}
	default:
		return []string{ep.IDS.Login, ep.IDS.CheckNeedCaptcha}
	}
}

func captureCookies(kind login.PortalKind, ep protocol.Endpoints, t transport.Transport) ([]byte, error) {
	jar, ok := t.(CookieJar)
	if !ok {
		return nil, ErrNoCookieJar
	}

	snap := cookieSnapshot{Portal: kind}
	for _, raw := range snapshotURLs(kind, ep) {
		cookies, err := jar.Cookies(raw)
		if err != nil {
			return nil, fmt.Errorf("read cookies for %s: %w", originOf(raw), err)
		}
		if len(cookies) == 0 {
			continue
		}
		origin := snapshotOrigin{URL: raw}
		for _, c := range cookies {
			origin.Cookies = append(origin.Cookies, snapshotCookie{Name: c.Name, Value: c.Value})
		}
		snap.Origins = append(snap.Origins, origin)
	}
	return json.Marshal(snap)
}

func restoreCookies(data []byte, t transport.Transport) (login.PortalKind, error) {
	jar, ok := t.(CookieJar)
	if !ok {
		return "", ErrNoCookieJar
	}

	var snap cookieSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return "", fmt.Errorf("decode snapshot: %w", err)
	}
	for _, origin := range snap.Origins {
		cookies := make([]*http.Cookie, 0, len(origin.Cookies))
		for _, c := range origin.Cookies {
			// The jar only hands back name and value, so the path is widened
			// to the whole host on the way back in.
			cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
		}
		if err := jar.SetCookies(origin.URL, cookies); err != nil {
			return "", fmt.Errorf("restore cookies for %s: %w", originOf(origin.URL), err)
		}
	}
	return snap.Portal, nil
}

// originOf drops path and query so cookie errors never echo tokens.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid url"
	}
	return u.Scheme + "://" + u.Host
}
