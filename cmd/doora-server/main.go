// Command doora-server wires the doora engine to its real infrastructure:
// Redis for account storage, S3-compatible object storage for avatars, and
// SMTP for transactional mail. Configuration comes from the environment,
// optionally seeded from a .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	doora "github.com/doora-app/doora"
	"github.com/doora-app/doora/httpapi"
	"github.com/doora-app/doora/mail"
	"github.com/doora-app/doora/upload"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using process environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := configFromEnv()
	if err != nil {
		return err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer client.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	uploader, err := upload.NewS3Uploader(ctx, upload.Config{
		Region:        envOr("S3_REGION", "us-east-1"),
		Bucket:        os.Getenv("S3_BUCKET"),
		AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		SecretKey:     os.Getenv("S3_SECRET_KEY"),
		Endpoint:      os.Getenv("S3_ENDPOINT"),
		PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
	})
	if err != nil {
		return fmt.Errorf("s3 uploader: %w", err)
	}

	smtpPort, err := strconv.Atoi(envOr("SMTP_PORT", "587"))
	if err != nil {
		return fmt.Errorf("SMTP_PORT: %w", err)
	}
	mailer, err := mail.NewSMTPSender(mail.Config{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     smtpPort,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	})
	if err != nil {
		return fmt.Errorf("smtp sender: %w", err)
	}

	engine, err := doora.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUploader(uploader).
		WithMailer(mailer).
		WithAuditSink(doora.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	production := envOr("APP_ENV", "development") == "production"
	api, err := httpapi.NewServer(engine, httpapi.Config{
		CookieSecure:     production,
		CookieDomain:     os.Getenv("COOKIE_DOMAIN"),
		AccessCookieTTL:  cfg.JWT.AccessTTL,
		RefreshCookieTTL: cfg.JWT.RefreshTTL,
	}, logger)
	if err != nil {
		return err
	}

	addr := envOr("ADDR", ":8080")
	server := &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func configFromEnv() (doora.Config, error) {
	cfg := doora.DefaultConfig()

	accessSecret := os.Getenv("ACCESS_TOKEN_SECRET_KEY")
	refreshSecret := os.Getenv("REFRESH_TOKEN_SECRET_KEY")
	if accessSecret == "" || refreshSecret == "" {
		return cfg, errors.New("ACCESS_TOKEN_SECRET_KEY and REFRESH_TOKEN_SECRET_KEY are required")
	}
	cfg.JWT.AccessSecret = []byte(accessSecret)
	cfg.JWT.RefreshSecret = []byte(refreshSecret)

	var err error
	if cfg.JWT.AccessTTL, err = envDuration("ACCESS_TOKEN_TTL", cfg.JWT.AccessTTL); err != nil {
		return cfg, err
	}
	if cfg.JWT.RefreshTTL, err = envDuration("REFRESH_TOKEN_TTL", cfg.JWT.RefreshTTL); err != nil {
		return cfg, err
	}

	cfg.Token.VerifyBaseURL = os.Getenv("VERIFY_BASE_URL")
	cfg.Token.ResetBaseURL = os.Getenv("RESET_BASE_URL")
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		cfg.Store.RedisPrefix = prefix
	}

	cfg.Audit.Enabled = envOr("AUDIT_ENABLED", "true") == "true"
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
