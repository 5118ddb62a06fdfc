// Package main wires the daily subreddit digest service together: a queue
// consumer that triggers digest runs, and an HTTP server for subscriptions.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/run"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	_ "modernc.org/sqlite"

	"reddit-newsletter/config"
	"reddit-newsletter/email"
	"reddit-newsletter/job"
	"reddit-newsletter/queue"
	"reddit-newsletter/reddit"
	"reddit-newsletter/server"
	"reddit-newsletter/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	dbx, err := sqlx.Open("sqlite", cfg.Database)
	if err != nil {
		logger.Error("Failed to open database", "path", cfg.Database, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbx.Close(); err != nil {
			logger.Warn("Failed to close database", "error", err)
		}
	}()

	st, err := store.New(dbx)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}

	provider, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize email provider", "provider", cfg.EmailProvider, "error", err)
		os.Exit(1)
	}

	sender := email.New(provider, logger, cfg.FromAddress)
	fetcher := reddit.New(logger)
	runner := job.New(st, fetcher, sender, st, logger, job.Config{
		MaxConcurrentUsers: cfg.MaxConcurrentUsers,
		FetchTimeout:       cfg.FetchTimeout,
		SendEmpty:          cfg.SendEmpty,
		DedupDeliveries:    cfg.DedupDeliveries,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.New(st, runner, logger).Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Minute, // The manual trigger runs a full batch
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group

	g.Add(func() error {
		<-ctx.Done()
		return ctx.Err()
	}, func(error) {
		cancel()
	})

	g.Add(func() error {
		logger.Info("Starting HTTP server", "port", cfg.Port)
		return httpServer.ListenAndServe()
	}, func(error) {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown failed", "error", err)
		}
	})

	if len(cfg.KafkaBrokers) > 0 {
		consumer := queue.New(queue.NewReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup), runner, logger)
		g.Add(func() error {
			return consumer.Consume(ctx)
		}, func(error) {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Warn("Failed to close queue consumer", "error", err)
			}
		})
		logger.Info("Queue consumer enabled", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroup)
	} else {
		logger.Info("KAFKA_BROKERS not set, queue consumer disabled")
	}

	if err := g.Run(); err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, http.ErrServerClosed) {
		logger.Error("Service exited", "error", err)
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}

// buildProvider selects the email provider from configuration.
func buildProvider(ctx context.Context, cfg config.Config, logger *slog.Logger) (email.Provider, error) {
	switch cfg.EmailProvider {
	case "brevo":
		if cfg.BrevoAPIKey == "" {
			return nil, errors.New("BREVO_API_KEY required for brevo provider")
		}
		return email.NewBrevoProvider(cfg.BrevoAPIKey, cfg.FromAddress, cfg.FromName, logger), nil
	case "gmail":
		var opts []option.ClientOption
		if cfg.CredentialsJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		}
		svc, err := gmail.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("initialize Gmail service: %w", err)
		}
		return email.NewGmailProvider(svc, logger), nil
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, errors.New("SMTP_HOST required for smtp provider")
		}
		return email.NewSMTPProvider(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.FromAddress, logger), nil
	case "mock":
		return email.NewMockProvider(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
	}
}
