package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/queuebot/crypto"
)

// ErrNoToken is returned by TokenStore.Get when no row exists for a provider.
var ErrNoToken = errors.New("oauth token not found")

// Encryption versions stored in oauth_tokens.encryption_version.
const (
	tokenPlaintext = 0
	tokenAESGCM    = 1
)

// OAuthToken is one provider's credential set.
type OAuthToken struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	// Expiry is zero when the provider did not report one.
	Expiry    time.Time
	Scope     string
	UpdatedAt time.Time
}

// TokenStore reads and writes oauth_tokens. With an Encryptor the token
// columns are sealed with AES-GCM; without one they are stored as plaintext.
type TokenStore struct {
	db  *sql.DB
	enc crypto.Encryptor
}

// NewTokenStore returns a store over db. enc may be nil.
func NewTokenStore(db *sql.DB, enc crypto.Encryptor) *TokenStore {
	if enc == nil {
		slog.Warn("ENCRYPTION_KEY not set, OAuth tokens will be stored in plaintext", slog.String("component", "db_encryption"))
	}
	return &TokenStore{db: db, enc: enc}
}

// Upsert stores tok, replacing any earlier row for the same provider.
func (s *TokenStore) Upsert(ctx context.Context, tok OAuthToken) error {
	version, keyID := tokenPlaintext, ""
	access, refresh := tok.AccessToken, tok.RefreshToken
	if s.enc != nil {
		version, keyID = tokenAESGCM, s.enc.KeyID()
		var err error
		if access, err = crypto.EncryptString(s.enc, access); err != nil {
			return fmt.Errorf("encrypt access token: %w", err)
		}
		if refresh, err = crypto.EncryptString(s.enc, refresh); err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
	}
	var expiry sql.NullTime
	if !tok.Expiry.IsZero() {
		expiry = sql.NullTime{Time: tok.Expiry.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oauth_tokens(provider, access_token, refresh_token, expires_at, scope, encryption_version, encryption_key_id, updated_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		 ON CONFLICT(provider) DO UPDATE SET
		   access_token = EXCLUDED.access_token,
		   refresh_token = EXCLUDED.refresh_token,
		   expires_at = EXCLUDED.expires_at,
		   scope = EXCLUDED.scope,
		   encryption_version = EXCLUDED.encryption_version,
		   encryption_key_id = EXCLUDED.encryption_key_id,
		   updated_at = CURRENT_TIMESTAMP`,
		tok.Provider, access, refresh, expiry, tok.Scope, version, keyID)
	if err != nil {
		return fmt.Errorf("upsert oauth token: %w", err)
	}
	return nil
}

// Get returns the decrypted token for provider or ErrNoToken.
func (s *TokenStore) Get(ctx context.Context, provider string) (*OAuthToken, error) {
	var (
		tok     = OAuthToken{Provider: provider}
		expiry  sql.NullTime
		version int
		keyID   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, scope, encryption_version, encryption_key_id, updated_at
		 FROM oauth_tokens WHERE provider = $1`, provider).
		Scan(&tok.AccessToken, &tok.RefreshToken, &expiry, &tok.Scope, &version, &keyID, &tok.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("get oauth token: %w", err)
	}
	if expiry.Valid {
		tok.Expiry = expiry.Time
	}

	switch version {
	case tokenPlaintext:
	case tokenAESGCM:
		if s.enc == nil {
			return nil, fmt.Errorf("token for %s is encrypted but ENCRYPTION_KEY is not configured", provider)
		}
		if keyID != "" && keyID != s.enc.KeyID() {
			return nil, fmt.Errorf("token for %s was sealed with key %s, configured key is %s", provider, keyID, s.enc.KeyID())
		}
		if tok.AccessToken, err = crypto.DecryptString(s.enc, tok.AccessToken); err != nil {
			return nil, fmt.Errorf("decrypt access token: %w", err)
		}
		if tok.RefreshToken, err = crypto.DecryptString(s.enc, tok.RefreshToken); err != nil {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown encryption version %d for %s", version, provider)
	}
	return &tok, nil
}

// CountPlaintext reports how many rows are stored without encryption.
func (s *TokenStore) CountPlaintext(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM oauth_tokens WHERE encryption_version = $1`, tokenPlaintext).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count plaintext tokens: %w", err)
	}
	return n, nil
}

// Reseal rewrites every plaintext row with the store's encryptor and reports
// how many rows changed.
func (s *TokenStore) Reseal(ctx context.Context) (int, error) {
	if s.enc == nil {
		return 0, errors.New("reseal requires an encryption key")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider FROM oauth_tokens WHERE encryption_version = $1`, tokenPlaintext)
	if err != nil {
		return 0, fmt.Errorf("list plaintext tokens: %w", err)
	}
	var providers []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for i, p := range providers {
		tok, err := s.Get(ctx, p)
		if err != nil {
			return i, err
		}
		if err := s.Upsert(ctx, *tok); err != nil {
			return i, err
		}
		slog.Info("resealed oauth token", slog.String("provider", p), slog.String("component", "db_encryption"))
	}
	return len(providers), nil
}
