// Package oauth keeps a provider's stored user token fresh. A refresher
// wakes on a jittered interval and renews the token once its remaining
// lifetime drops inside a configured window.
package oauth

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/onnwee/queuebot/db"
	"github.com/onnwee/queuebot/telemetry"
)

// TokenStore is the persistence the refresher needs. *db.TokenStore
// satisfies it.
type TokenStore interface {
	Get(ctx context.Context, provider string) (*db.OAuthToken, error)
	Upsert(ctx context.Context, tok db.OAuthToken) error
}

// RefreshFunc performs the provider specific refresh grant. Empty fields in
// the result keep their stored values.
type RefreshFunc func(ctx context.Context, refreshToken string) (db.OAuthToken, error)

// Refresher renews one provider's token.
type Refresher struct {
	Store    TokenStore
	Provider string
	// Interval is how often to check; Window is how close to expiry a token
	// must be before it is refreshed.
	Interval time.Duration
	Window   time.Duration
	Refresh  RefreshFunc
	// OnRefresh, when set, receives every newly stored token.
	OnRefresh func(db.OAuthToken)

	now func() time.Time
}

// StartRefresher launches a goroutine running r until ctx is cancelled.
func StartRefresher(ctx context.Context, r *Refresher) {
	go r.Run(ctx)
}

// Run checks the token on a jittered schedule until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	// Randomize initial delay to spread load across instances.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	if !sleep(ctx, time.Duration(rand.Int63n(int64(interval/2)+1))) {
		return
	}
	for {
		if _, err := r.CheckOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("token refresh failed", slog.String("provider", r.Provider), slog.Any("err", err), slog.String("component", "oauth"))
		}
		// ±20% of interval
		jitterRange := int64(interval / 5)
		//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
		next := interval + time.Duration(rand.Int63n(jitterRange*2+1)-jitterRange)
		if !sleep(ctx, next) {
			return
		}
	}
}

// CheckOnce refreshes the token if it expires within the window and reports
// whether it did. Missing rows, tokens without a refresh token and tokens
// with an unknown expiry are left alone.
func (r *Refresher) CheckOnce(ctx context.Context) (bool, error) {
	window := r.Window
	if window <= 0 {
		window = 15 * time.Minute
	}
	now := time.Now
	if r.now != nil {
		now = r.now
	}

	cur, err := r.Store.Get(ctx, r.Provider)
	if errors.Is(err, db.ErrNoToken) {
		return false, nil
	}
	if err != nil {
		telemetry.ObserveTokenRefresh(r.Provider, "error")
		return false, err
	}
	if cur.RefreshToken == "" || cur.Expiry.IsZero() || cur.Expiry.Sub(now()) > window {
		return false, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
	next, err := r.Refresh(ctx2, cur.RefreshToken)
	cancel()
	if err != nil {
		telemetry.ObserveTokenRefresh(r.Provider, "error")
		return false, err
	}

	next.Provider = r.Provider
	if next.RefreshToken == "" {
		next.RefreshToken = cur.RefreshToken
	}
	if next.Scope == "" {
		next.Scope = cur.Scope
	}
	next.Scope = strings.TrimSpace(next.Scope)
	if err := r.Store.Upsert(ctx, next); err != nil {
		telemetry.ObserveTokenRefresh(r.Provider, "error")
		return false, err
	}
	telemetry.ObserveTokenRefresh(r.Provider, "ok")
	slog.Info("token refreshed",
		slog.String("provider", r.Provider),
		slog.Time("expires_at", next.Expiry),
		slog.String("component", "oauth"))
	if r.OnRefresh != nil {
		r.OnRefresh(next)
	}
	return true, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
