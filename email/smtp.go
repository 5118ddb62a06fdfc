package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"
)

// SMTPProvider sends emails through a plain SMTP relay.
type SMTPProvider struct {
	dialer   *gomail.Dialer
	fromAddr string
	logger   *slog.Logger
}

// NewSMTPProvider creates an SMTP email provider.
func NewSMTPProvider(host string, port int, user, password, fromAddr string, logger *slog.Logger) *SMTPProvider {
	return &SMTPProvider{
		dialer:   gomail.NewDialer(host, port, user, password),
		fromAddr: fromAddr,
		logger:   logger,
	}
}

// Send sends an email over SMTP.
func (p *SMTPProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	// gomail carries no context; honor cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", p.fromAddr)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	p.logger.Info("SMTP send starting", "to", to)

	startTime := time.Now()
	if err := p.dialer.DialAndSend(msg); err != nil {
		p.logger.Warn("SMTP send failed",
			"to", to,
			"duration_ms", time.Since(startTime).Milliseconds(),
			"error", err)
		return fmt.Errorf("smtp send: %w", err)
	}

	p.logger.Info("SMTP send completed",
		"to", to,
		"duration_ms", time.Since(startTime).Milliseconds())

	return nil
}
