// Command queuebot runs the Twitch chat queue bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Opens the queue store (postgres, sqlite or in memory) and migrates it.
//   - Connects to Twitch chat, joins every registered channel and answers
//     queue commands.
//   - Keeps the bot's OAuth token fresh when app credentials are configured.
//   - Exposes /healthz, /readyz, /metrics and admin queue views over HTTP.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/queuebot/chat"
	"github.com/onnwee/queuebot/commands"
	"github.com/onnwee/queuebot/config"
	"github.com/onnwee/queuebot/crypto"
	"github.com/onnwee/queuebot/db"
	"github.com/onnwee/queuebot/oauth"
	"github.com/onnwee/queuebot/queue"
	"github.com/onnwee/queuebot/server"
	"github.com/onnwee/queuebot/telemetry"
	"github.com/onnwee/queuebot/twitchapi"
)

const (
	serviceName    = "queuebot"
	serviceVersion = "1.0.0"
	tokenProvider  = "twitch"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()
	setupLogging(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("queuebot exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func setupLogging(level, format string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", level))
	}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := cfg.ValidateChatReady(); err != nil {
		return err
	}
	if err := cfg.ValidateAdminAuth(); err != nil {
		return err
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing(serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("tracing initialization failed: %w", err)
	}
	defer shutdownTracing()

	store, database, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if database != nil {
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
	}

	var (
		auth   *twitchapi.Auth
		users  commands.UserResolver
		tokens *db.TokenStore
	)
	if cfg.HelixEnabled() {
		auth = &twitchapi.Auth{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}
		users = &twitchapi.HelixClient{Tokens: &twitchapi.TokenSource{Auth: auth}, ClientID: cfg.TwitchClientID}
	} else {
		slog.Info("twitch app credentials not set: !manualjoin needs an explicit id and token refresh is disabled")
	}
	if database != nil {
		var enc crypto.Encryptor
		if cfg.EncryptionKey != "" {
			aes, err := crypto.NewAESEncryptor(cfg.EncryptionKey)
			if err != nil {
				return fmt.Errorf("encryption init failed: %w", err)
			}
			enc = aes
		}
		tokens = db.NewTokenStore(database, enc)
	}
	chatToken, err := resolveChatToken(ctx, cfg, tokens, auth)
	if err != nil {
		return err
	}

	svc := queue.NewService(store)
	bot := chat.NewBot(cfg.TwitchBotUsername, chatToken, cfg.TwitchChannel)
	reg := commands.NewRegistrar(svc, bot, users, cfg.TwitchOwnerID)
	reg.JoinDelay = cfg.JoinDelay
	router := commands.NewRouter(bot, svc, reg, cfg.TwitchChannelID)

	if tokens != nil && auth != nil {
		oauth.StartRefresher(ctx, &oauth.Refresher{
			Store:    tokens,
			Provider: tokenProvider,
			Interval: cfg.TokenRefreshInterval,
			Window:   cfg.TokenRefreshWindow,
			Refresh: func(rctx context.Context, refreshToken string) (db.OAuthToken, error) {
				res, err := auth.RefreshToken(rctx, refreshToken)
				if err != nil {
					return db.OAuthToken{}, err
				}
				return db.OAuthToken{
					AccessToken:  res.AccessToken,
					RefreshToken: res.RefreshToken,
					Expiry:       twitchapi.ComputeExpiry(res.ExpiresIn),
					Scope:        strings.Join(res.Scope, " "),
				}, nil
			},
			OnRefresh: func(tok db.OAuthToken) { bot.SetToken(tok.AccessToken) },
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx, router) })
	g.Go(func() error {
		return server.Start(gctx, server.Options{
			Addr:          cfg.HTTPAddr,
			Service:       svc,
			DB:            database,
			ChatConnected: bot.Connected,
			Auth: server.AuthConfig{
				Username: cfg.AdminUsername,
				Password: cfg.AdminPassword,
				Token:    cfg.AdminToken,
			},
			RateLimit: server.DefaultRateLimit,
		})
	})
	g.Go(func() error {
		err := reg.JoinAll(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			slog.Error("failed to join registered channels", slog.Any("err", err), slog.String("component", "registrar"))
		}
		return nil
	})

	slog.Info("queuebot started",
		slog.String("bot", cfg.TwitchBotUsername),
		slog.String("home_channel", cfg.TwitchChannel),
		slog.String("db_driver", cfg.DBDriver))
	return g.Wait()
}

// openStore returns the queue store for cfg.DBDriver. The *sql.DB is nil
// for the in-memory store.
func openStore(ctx context.Context, cfg *config.Config) (queue.Store, *sql.DB, error) {
	if cfg.DBDriver == config.DriverMemory {
		slog.Warn("DB_DRIVER=memory: queues are lost on restart", slog.String("component", "db"))
		return queue.NewMemoryStore(), nil, nil
	}
	database, err := db.Connect(cfg.DBDriver, cfg.DBDsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to reach db: %w", err)
	}

	// Versioned migrations first; the embedded idempotent schema is the
	// fallback for databases created before schema_migrations existed.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database, cfg.DBDriver); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded schema",
			slog.Any("err", err), slog.String("component", "db_migrate"))
		if err := db.Migrate(ctx, database, cfg.DBDriver); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to migrate db (both versioned and embedded schema failed): %w", err)
		}
	}
	return db.NewQueueStore(database), database, nil
}

// resolveChatToken picks the token the bot logs in with. A stored token wins
// over TWITCH_OAUTH_TOKEN because the refresher keeps it current; otherwise
// the environment token is stored so it can be refreshed later.
func resolveChatToken(ctx context.Context, cfg *config.Config, tokens *db.TokenStore, auth *twitchapi.Auth) (string, error) {
	if tokens == nil {
		return cfg.TwitchOAuthToken, nil
	}
	stored, err := tokens.Get(ctx, tokenProvider)
	switch {
	case err == nil && stored.AccessToken != "":
		slog.Info("using stored twitch token", slog.Time("expires_at", stored.Expiry), slog.String("component", "oauth"))
		return stored.AccessToken, nil
	case err != nil && !errors.Is(err, db.ErrNoToken):
		return "", fmt.Errorf("load stored twitch token: %w", err)
	}

	seed := db.OAuthToken{
		Provider:     tokenProvider,
		AccessToken:  strings.TrimPrefix(cfg.TwitchOAuthToken, "oauth:"),
		RefreshToken: cfg.TwitchRefreshToken,
	}
	if auth != nil {
		vctx, cancel := context.WithTimeout(ctx, 8*time.Second)
		v, err := auth.Validate(vctx, seed.AccessToken)
		cancel()
		switch {
		case err == nil:
			seed.Expiry = twitchapi.ComputeExpiry(v.ExpiresIn)
			seed.Scope = strings.Join(v.Scopes, " ")
			if !strings.EqualFold(v.Login, cfg.TwitchBotUsername) {
				slog.Warn("TWITCH_OAUTH_TOKEN belongs to a different user",
					slog.String("token_login", v.Login), slog.String("bot", cfg.TwitchBotUsername))
			}
		case errors.Is(err, twitchapi.ErrInvalidToken) && seed.RefreshToken != "":
			// Chat login would fail with it, so renew before connecting.
			rctx, cancel := context.WithTimeout(ctx, 8*time.Second)
			res, err := auth.RefreshToken(rctx, seed.RefreshToken)
			cancel()
			if err != nil {
				return "", fmt.Errorf("TWITCH_OAUTH_TOKEN expired and refresh failed: %w", err)
			}
			slog.Info("TWITCH_OAUTH_TOKEN expired, refreshed before login", slog.String("component", "oauth"))
			seed.AccessToken = res.AccessToken
			if res.RefreshToken != "" {
				seed.RefreshToken = res.RefreshToken
			}
			seed.Expiry = twitchapi.ComputeExpiry(res.ExpiresIn)
			seed.Scope = strings.Join(res.Scope, " ")
		default:
			slog.Warn("twitch token validation failed", slog.Any("err", err), slog.String("component", "oauth"))
		}
	}
	if err := tokens.Upsert(ctx, seed); err != nil {
		return "", fmt.Errorf("store twitch token: %w", err)
	}
	return seed.AccessToken, nil
}
