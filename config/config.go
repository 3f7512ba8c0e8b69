// Package config loads environment variables into a typed Config used across
// the bot. Defaults let it run locally with only chat credentials; use
// ValidateChatReady before connecting to Twitch.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Database drivers accepted in DB_DRIVER.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	// Twitch
	TwitchBotUsername string `env:"TWITCH_BOT_USERNAME"`
	TwitchOAuthToken  string `env:"TWITCH_OAUTH_TOKEN"`
	// TwitchRefreshToken seeds the stored token so it can be renewed.
	TwitchRefreshToken string `env:"TWITCH_REFRESH_TOKEN"`
	TwitchClientID     string `env:"TWITCH_CLIENT_ID"`
	TwitchClientSecret string `env:"TWITCH_CLIENT_SECRET"`
	// TwitchChannel is the bot's home channel, where registration commands run.
	TwitchChannel   string        `env:"TWITCH_CHANNEL"`
	TwitchChannelID string        `env:"TWITCH_CHANNEL_ID"`
	TwitchOwnerID   string        `env:"TWITCH_OWNER_ID"`
	JoinDelay       time.Duration `env:"TWITCH_JOIN_DELAY" envDefault:"1s"`

	// Database
	DBDriver      string `env:"DB_DRIVER" envDefault:"pgx"`
	DBDsn         string `env:"DB_DSN"`
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	// Token refresh
	TokenRefreshInterval time.Duration `env:"TOKEN_REFRESH_INTERVAL" envDefault:"5m"`
	TokenRefreshWindow   time.Duration `env:"TOKEN_REFRESH_WINDOW" envDefault:"15m"`

	// HTTP
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	AdminToken    string `env:"ADMIN_TOKEN"`
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// Observability
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"text"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads the environment and applies defaults. Missing Twitch
// credentials are not an error here.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch cfg.DBDriver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	case "postgres":
		cfg.DBDriver = DriverPostgres
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: want pgx, sqlite or memory", cfg.DBDriver)
	}
	cfg.TwitchChannel = strings.ToLower(strings.TrimPrefix(cfg.TwitchChannel, "#"))
	if cfg.TwitchChannel == "" {
		cfg.TwitchChannel = strings.ToLower(cfg.TwitchBotUsername)
	}
	return &cfg, nil
}

// ValidateChatReady checks the fields needed to log in to chat.
func (c *Config) ValidateChatReady() error {
	var missing []string
	if c.TwitchBotUsername == "" {
		missing = append(missing, "TWITCH_BOT_USERNAME")
	}
	if c.TwitchOAuthToken == "" {
		missing = append(missing, "TWITCH_OAUTH_TOKEN")
	}
	if c.TwitchChannel == "" {
		missing = append(missing, "TWITCH_CHANNEL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing twitch env: require %s", strings.Join(missing, ", "))
	}
	return nil
}

// HelixEnabled reports whether app credentials for Helix lookups and token
// refresh are configured.
func (c *Config) HelixEnabled() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != ""
}

// AdminAuthEnabled reports whether the admin HTTP routes are protected.
func (c *Config) AdminAuthEnabled() bool {
	return c.AdminToken != "" || (c.AdminUsername != "" && c.AdminPassword != "")
}

// ErrPartialAdminAuth is returned by ValidateAdminAuth when only one of the
// basic auth fields is set.
var ErrPartialAdminAuth = errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")

// ValidateAdminAuth rejects a half configured basic auth pair.
func (c *Config) ValidateAdminAuth() error {
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return ErrPartialAdminAuth
	}
	return nil
}
