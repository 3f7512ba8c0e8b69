// Package twitchapi holds the small slice of the Twitch identity and Helix
// APIs the bot needs: app tokens, user token refresh and validation, and
// login to user id lookups.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultHelixBaseURL is the Helix API root.
const DefaultHelixBaseURL = "https://api.twitch.tv/helix"

// ErrUserNotFound is returned when Helix knows no user by the given login.
var ErrUserNotFound = errors.New("user not found")

// HelixClient calls Helix with an app access token.
type HelixClient struct {
	Tokens   *TokenSource
	ClientID string
	// BaseURL defaults to DefaultHelixBaseURL.
	BaseURL    string
	HTTPClient *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) url(path string) string {
	base := hc.BaseURL
	if base == "" {
		base = DefaultHelixBaseURL
	}
	return strings.TrimRight(base, "/") + path
}

// GetUserID resolves a login name to its user id. A 401 drops the cached
// app token and retries once.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	for attempt := 0; ; attempt++ {
		id, status, err := hc.getUserID(ctx, login)
		if status == http.StatusUnauthorized && attempt == 0 {
			hc.Tokens.Invalidate()
			continue
		}
		return id, err
	}
}

func (hc *HelixClient) getUserID(ctx context.Context, login string) (string, int, error) {
	tok, err := hc.Tokens.Get(ctx)
	if err != nil {
		return "", 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.url("/users"), nil)
	if err != nil {
		return "", 0, err
	}
	q := req.URL.Query()
	q.Set("login", login)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return "", 0, err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("helix users: %s", resp.Status)
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", resp.StatusCode, err
	}
	if len(body.Data) == 0 {
		return "", resp.StatusCode, fmt.Errorf("%w: %s", ErrUserNotFound, login)
	}
	return body.Data[0].ID, resp.StatusCode, nil
}
