package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/queuebot/db"
	"github.com/onnwee/queuebot/testutil"
)

func newRefresher(t *testing.T, fn RefreshFunc) (*Refresher, *db.TokenStore, time.Time) {
	t.Helper()
	store := db.NewTokenStore(testutil.SetupTestDB(t), nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return &Refresher{
		Store:    store,
		Provider: "twitch",
		Window:   15 * time.Minute,
		Refresh:  fn,
		now:      func() time.Time { return now },
	}, store, now
}

func seed(t *testing.T, store *db.TokenStore, tok db.OAuthToken) {
	t.Helper()
	tok.Provider = "twitch"
	require.NoError(t, store.Upsert(context.Background(), tok))
}

func TestCheckOnceRefreshesInsideWindow(t *testing.T) {
	ctx := context.Background()
	var gotRefresh string
	var now time.Time
	r, store, now := newRefresher(t, func(_ context.Context, rt string) (db.OAuthToken, error) {
		gotRefresh = rt
		return db.OAuthToken{AccessToken: "new-access", Expiry: now.Add(4 * time.Hour)}, nil
	})
	var delivered db.OAuthToken
	r.OnRefresh = func(tok db.OAuthToken) { delivered = tok }
	seed(t, store, db.OAuthToken{AccessToken: "old", RefreshToken: "rt", Expiry: now.Add(5 * time.Minute), Scope: "chat:read"})

	ok, err := r.CheckOnce(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "rt", gotRefresh)
	assert.Equal(t, "new-access", delivered.AccessToken)

	tok, err := store.Get(ctx, "twitch")
	require.NoError(t, err)
	assert.Equal(t, "new-access", tok.AccessToken)
	assert.Equal(t, "rt", tok.RefreshToken, "empty refresh token in the grant keeps the old one")
	assert.Equal(t, "chat:read", tok.Scope)
	assert.WithinDuration(t, now.Add(4*time.Hour), tok.Expiry, time.Second)
}

func TestCheckOnceSkips(t *testing.T) {
	ctx := context.Background()
	calls := 0
	fn := func(context.Context, string) (db.OAuthToken, error) {
		calls++
		return db.OAuthToken{AccessToken: "x"}, nil
	}

	t.Run("no row", func(t *testing.T) {
		r, _, _ := newRefresher(t, fn)
		ok, err := r.CheckOnce(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("outside window", func(t *testing.T) {
		r, store, now := newRefresher(t, fn)
		seed(t, store, db.OAuthToken{AccessToken: "a", RefreshToken: "rt", Expiry: now.Add(time.Hour)})
		ok, err := r.CheckOnce(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no refresh token", func(t *testing.T) {
		r, store, now := newRefresher(t, fn)
		seed(t, store, db.OAuthToken{AccessToken: "a", Expiry: now.Add(time.Minute)})
		ok, err := r.CheckOnce(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown expiry", func(t *testing.T) {
		r, store, _ := newRefresher(t, fn)
		seed(t, store, db.OAuthToken{AccessToken: "a", RefreshToken: "rt"})
		ok, err := r.CheckOnce(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	assert.Zero(t, calls)
}

func TestCheckOnceKeepsTokenOnFailure(t *testing.T) {
	ctx := context.Background()
	r, store, now := newRefresher(t, func(context.Context, string) (db.OAuthToken, error) {
		return db.OAuthToken{}, errors.New("twitch down")
	})
	r.OnRefresh = func(db.OAuthToken) { t.Fatal("OnRefresh called after a failed refresh") }
	seed(t, store, db.OAuthToken{AccessToken: "old", RefreshToken: "rt", Expiry: now.Add(time.Minute)})

	ok, err := r.CheckOnce(ctx)
	assert.ErrorContains(t, err, "twitch down")
	assert.False(t, ok)

	tok, err := store.Get(ctx, "twitch")
	require.NoError(t, err)
	assert.Equal(t, "old", tok.AccessToken)
}

func TestRunStopsOnCancel(t *testing.T) {
	r, _, _ := newRefresher(t, func(context.Context, string) (db.OAuthToken, error) {
		return db.OAuthToken{}, nil
	})
	r.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
