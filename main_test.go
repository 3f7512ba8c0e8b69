package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/queuebot/config"
	"github.com/onnwee/queuebot/db"
	"github.com/onnwee/queuebot/testutil"
	"github.com/onnwee/queuebot/twitchapi"
)

func chatConfig() *config.Config {
	return &config.Config{
		TwitchBotUsername:  "queuebot",
		TwitchOAuthToken:   "oauth:stale",
		TwitchRefreshToken: "r1",
	}
}

func TestResolveChatTokenRefreshesExpiredEnvToken(t *testing.T) {
	ctx := context.Background()
	srv := testutil.NewMockTwitchServer(t)
	srv.MockStatus("/oauth2/validate", http.StatusUnauthorized)
	srv.MockTokenResponse("fresh", "r2", 3600)

	tokens := db.NewTokenStore(testutil.SetupTestDB(t), nil)
	auth := &twitchapi.Auth{ClientID: "cid", ClientSecret: "secret", BaseURL: srv.URL}

	tok, err := resolveChatToken(ctx, chatConfig(), tokens, auth)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, 1, srv.Hits("/oauth2/token"))

	stored, err := tokens.Get(ctx, tokenProvider)
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.AccessToken)
	assert.Equal(t, "r2", stored.RefreshToken)
	assert.True(t, stored.Expiry.After(time.Now().Add(30*time.Minute)))
}

func TestResolveChatTokenFailsWhenRefreshFails(t *testing.T) {
	ctx := context.Background()
	srv := testutil.NewMockTwitchServer(t)
	srv.MockStatus("/oauth2/validate", http.StatusUnauthorized)
	srv.MockStatus("/oauth2/token", http.StatusBadRequest)

	tokens := db.NewTokenStore(testutil.SetupTestDB(t), nil)
	auth := &twitchapi.Auth{ClientID: "cid", ClientSecret: "secret", BaseURL: srv.URL}

	_, err := resolveChatToken(ctx, chatConfig(), tokens, auth)
	require.Error(t, err)

	_, err = tokens.Get(ctx, tokenProvider)
	assert.ErrorIs(t, err, db.ErrNoToken)
}

func TestResolveChatTokenPrefersStoredToken(t *testing.T) {
	ctx := context.Background()
	srv := testutil.NewMockTwitchServer(t)

	tokens := db.NewTokenStore(testutil.SetupTestDB(t), nil)
	require.NoError(t, tokens.Upsert(ctx, db.OAuthToken{
		Provider:     tokenProvider,
		AccessToken:  "stored",
		RefreshToken: "r0",
		Expiry:       time.Now().Add(time.Hour),
	}))
	auth := &twitchapi.Auth{ClientID: "cid", ClientSecret: "secret", BaseURL: srv.URL}

	tok, err := resolveChatToken(ctx, chatConfig(), tokens, auth)
	require.NoError(t, err)
	assert.Equal(t, "stored", tok)
	assert.Zero(t, srv.Hits("/oauth2/validate"))
}
