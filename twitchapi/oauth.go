package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAuthBaseURL is the Twitch identity service.
const DefaultAuthBaseURL = "https://id.twitch.tv"

// ErrInvalidToken is returned by Validate when Twitch rejects a token.
var ErrInvalidToken = errors.New("twitch token is invalid or expired")

// TokenResult is the body of a successful /oauth2/token grant.
type TokenResult struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	Scope        []string `json:"scope"`
	ExpiresIn    int      `json:"expires_in"`
}

// Validation describes a user token as reported by /oauth2/validate.
type Validation struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	UserID    string   `json:"user_id"`
	Scopes    []string `json:"scopes"`
	ExpiresIn int      `json:"expires_in"`
}

// Auth talks to the Twitch identity endpoints for one application.
type Auth struct {
	ClientID     string
	ClientSecret string
	// BaseURL defaults to DefaultAuthBaseURL.
	BaseURL    string
	HTTPClient *http.Client
}

func (a *Auth) url(path string) string {
	base := a.BaseURL
	if base == "" {
		base = DefaultAuthBaseURL
	}
	return strings.TrimRight(base, "/") + path
}

func (a *Auth) http() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

// AppToken requests an app access token with the client credentials grant.
// App tokens can call Helix but cannot log in to chat.
func (a *Auth) AppToken(ctx context.Context) (*TokenResult, error) {
	if a.ClientID == "" || a.ClientSecret == "" {
		return nil, errors.New("missing client id/secret for twitch app token")
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	return a.grant(ctx, form)
}

// RefreshToken exchanges a user refresh token for a new access token.
func (a *Auth) RefreshToken(ctx context.Context, refreshToken string) (*TokenResult, error) {
	if a.ClientID == "" || a.ClientSecret == "" || refreshToken == "" {
		return nil, errors.New("missing clientID/clientSecret/refreshToken")
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return a.grant(ctx, form)
}

func (a *Auth) grant(ctx context.Context, form url.Values) (*TokenResult, error) {
	form.Set("client_id", a.ClientID)
	form.Set("client_secret", a.ClientSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url("/oauth2/token"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := a.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("twitch %s grant failed: %s: %s", form.Get("grant_type"), resp.Status, string(b))
	}
	var res TokenResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	if res.AccessToken == "" {
		return nil, errors.New("empty access_token in twitch response")
	}
	return &res, nil
}

// Validate checks a user access token and reports who it belongs to.
func (a *Auth) Validate(ctx context.Context, accessToken string) (*Validation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url("/oauth2/validate"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+strings.TrimPrefix(accessToken, "oauth:"))
	resp, err := a.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("twitch validate failed: %s", resp.Status)
	}
	var v Validation
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ComputeExpiry returns absolute expiry time from seconds, defaulting to +60m when unknown.
func ComputeExpiry(seconds int) time.Time {
	if seconds <= 0 {
		return time.Now().Add(60 * time.Minute)
	}
	return time.Now().Add(time.Duration(seconds) * time.Second)
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err), slog.String("component", "twitchapi"))
	}
}
