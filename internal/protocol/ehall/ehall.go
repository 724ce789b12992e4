// Package ehall wraps the few Ehall portal calls made after an IDS login.
package ehall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/xdauth/internal/transport"
	"github.com/aussiebroadwan/xdauth/pkg/httpx"
)

// ErrNotLoggedIn is returned when Ehall reports hasLogin=false.
var ErrNotLoggedIn = errors.New("ehall: session is not logged in")

type Endpoints struct {
	UserFavoriteApps    string `yaml:"user_favorite_apps"`
	AppShow             string `yaml:"app_show"`
	ServiceSearchCustom string `yaml:"service_search_custom"`
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		UserFavoriteApps:    "http://ehall.xidian.edu.cn/jsonp/userFavoriteApps.json",
		AppShow:             "http://ehall.xidian.edu.cn//appShow",
		ServiceSearchCustom: "http://ehall.xidian.edu.cn/jsonp/serviceSearchCustom.json",
	}
}

const appShowAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8"

type Client struct {
	t  transport.Transport
	ep Endpoints
}

func New(t transport.Transport, ep Endpoints) *Client {
	return &Client{t: t, ep: ep}
}

type loginFlag struct {
	HasLogin bool `json:"hasLogin"`
}

// HasLoggedIn reads the hasLogin flag from the favourites endpoint. Any
// failure counts as not logged in.
func (c *Client) HasLoggedIn(ctx context.Context) bool {
	resp, err := c.t.Get(ctx, c.ep.UserFavoriteApps, nil)
	if err != nil || transport.CheckStatus("user favorite apps", resp) != nil {
		return false
	}
	var v loginFlag
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return false
	}
	return v.HasLogin
}

// App is one entry of the service search.
type App struct {
	AppID       string  `json:"appId"`
	AppName     string  `json:"appName"`
	MiddleIcon  string  `json:"middleIcon"`
	Type        int     `json:"type"`
	Description *string `json:"description"`
}

type appList struct {
	HasLogin bool  `json:"hasLogin"`
	Data     []App `json:"data"`
}

// AppList searches the service catalogue. An empty key lists everything.
func (c *Client) AppList(ctx context.Context, searchKey string) ([]App, error) {
	q := httpx.Form{
		{Name: "searchKey", Value: searchKey},
		{Name: "pageNumber", Value: "1"},
		{Name: "pageSize", Value: "150"},
		{Name: "sortKey", Value: "recentUseCount"},
		{Name: "orderKey", Value: "desc"},
	}

	resp, err := c.t.Get(ctx, c.ep.ServiceSearchCustom+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if err := transport.CheckStatus("service search", resp); err != nil {
		return nil, err
	}

	var list appList
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return nil, fmt.Errorf("decode app list: %w", err)
	}
	if !list.HasLogin {
		return nil, ErrNotLoggedIn
	}
	return list.Data, nil
}

// UseApp opens an app, which makes Ehall issue the app's own cookies.
func (c *Client) UseApp(ctx context.Context, appID string) (*transport.Response, error) {
	hdr := http.Header{}
	hdr.Set("Accept", appShowAccept)

	resp, err := c.t.Get(ctx, c.ep.AppShow+"?appId="+url.QueryEscape(appID), hdr)
	if err != nil {
		return nil, err
	}
	if err := transport.CheckStatus("app show", resp); err != nil {
		return nil, err
	}
	return resp, nil
}
