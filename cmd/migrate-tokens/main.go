// Command migrate-tokens encrypts OAuth tokens that were stored before
// ENCRYPTION_KEY was configured.
//
// Usage:
//
//	migrate-tokens [--dry-run]
//
// It reads DB_DRIVER, DB_DSN and ENCRYPTION_KEY like the bot does.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/queuebot/config"
	"github.com/onnwee/queuebot/crypto"
	"github.com/onnwee/queuebot/db"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report how many tokens would be encrypted without changing them")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, *dryRun); err != nil {
		slog.Error("token migration failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DBDriver == config.DriverMemory {
		return fmt.Errorf("DB_DRIVER=memory has no stored tokens")
	}
	if cfg.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	enc, err := crypto.NewAESEncryptor(cfg.EncryptionKey)
	if err != nil {
		return err
	}
	database, err := db.Connect(cfg.DBDriver, cfg.DBDsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	store := db.NewTokenStore(database, enc)
	if dryRun {
		n, err := store.CountPlaintext(ctx)
		if err != nil {
			return err
		}
		slog.Info("dry run", slog.Int("plaintext_tokens", n), slog.String("key_id", enc.KeyID()))
		return nil
	}
	n, err := store.Reseal(ctx)
	if err != nil {
		return err
	}
	slog.Info("token migration complete", slog.Int("encrypted", n), slog.String("key_id", enc.KeyID()))
	return nil
}
