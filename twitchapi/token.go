package twitchapi

import (
	"context"
	"sync"
	"time"
)

// TokenSource caches an app access token and renews it a minute before it
// expires. It cannot be used for chat, which needs a user token with the
// chat:read and chat:edit scopes.
type TokenSource struct {
	Auth *Auth

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

const tokenSkew = 60 * time.Second

// Get returns a cached token or fetches a new one.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.RLock()
	if ts.token != "" && time.Until(ts.expiresAt) > tokenSkew {
		tok := ts.token
		ts.mu.RUnlock()
		return tok, nil
	}
	ts.mu.RUnlock()

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && time.Until(ts.expiresAt) > tokenSkew {
		return ts.token, nil
	}
	res, err := ts.Auth.AppToken(ctx)
	if err != nil {
		return "", err
	}
	ts.token = res.AccessToken
	ts.expiresAt = ComputeExpiry(res.ExpiresIn)
	return ts.token, nil
}

// Invalidate drops the cached token so the next Get fetches a new one.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token = ""
	ts.expiresAt = time.Time{}
}
