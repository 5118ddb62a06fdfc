// Package config loads process configuration from the environment once at
// startup. Components receive the resulting value through their constructors
// and never read the environment themselves.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all environment-supplied settings.
type Config struct {
	// Trigger queue. An empty broker list disables the consumer entirely.
	KafkaBrokers []string `env:"KAFKA_BROKERS"`
	KafkaTopic   string   `env:"KAFKA_TOPIC, default=newsletter-trigger"`
	KafkaGroup   string   `env:"KAFKA_GROUP, default=newsletter"`

	// User store.
	Database string `env:"DATABASE, default=./newsletter.db"`

	// Email delivery.
	EmailProvider   string `env:"EMAIL_PROVIDER, default=mock"`
	BrevoAPIKey     string `env:"BREVO_API_KEY"`
	CredentialsJSON string `env:"GOOGLE_CREDENTIALS_JSON"`
	SMTPHost        string `env:"SMTP_HOST"`
	SMTPPort        int    `env:"SMTP_PORT, default=587"`
	SMTPUser        string `env:"SMTP_USER"`
	SMTPPassword    string `env:"SMTP_PASSWORD"`
	FromAddress     string `env:"FROM_ADDRESS, default=newsletter@localhost"`
	FromName        string `env:"FROM_NAME, default=Reddit Newsletter"`

	// HTTP server.
	Port string `env:"PORT, default=8080"`

	// Digest job tuning.
	MaxConcurrentUsers int           `env:"MAX_CONCURRENT_USERS, default=4"`
	FetchTimeout       time.Duration `env:"FETCH_TIMEOUT, default=30s"`
	SendEmpty          bool          `env:"SEND_EMPTY, default=false"`
	DedupDeliveries    bool          `env:"DEDUP_DELIVERIES, default=true"`
}

// Load populates a Config from the process environment.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	return cfg, nil
}
