// Package email renders digests and sends them via multiple providers.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"reddit-newsletter/pkg/newsletter"
)

// Subject is fixed so daily digests thread together in mail clients.
const subject = "Your favorite subreddits"

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends an email with the given parameters.
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Sender delivers digest emails using a pluggable provider.
type Sender struct {
	provider Provider
	logger   *slog.Logger
	fromAddr string
}

// New creates a new digest sender with the given provider.
func New(provider Provider, logger *slog.Logger, fromAddr string) *Sender {
	return &Sender{
		provider: provider,
		logger:   logger,
		fromAddr: fromAddr,
	}
}

// SendDigest renders and delivers one user's digest. It never propagates a
// failure; the outcome carries the error so the orchestrator can decide
// per-user handling without unwinding the whole run.
func (s *Sender) SendDigest(ctx context.Context, d newsletter.Digest) newsletter.Outcome {
	body := RenderDigest(d)

	s.logger.Info("Sending digest email",
		"to", d.User.Email,
		"topic_count", len(d.Topics),
		"subject", subject)

	if err := s.provider.Send(ctx, d.User.Email, subject, body); err != nil {
		s.logger.Warn("Digest delivery failed", "to", d.User.Email, "error", err)
		return newsletter.Outcome{Err: fmt.Errorf("send digest to %s: %w", d.User.Email, err)}
	}

	return newsletter.Outcome{Sent: true}
}
