package email

import (
	"context"
	"log/slog"
)

// MockProvider logs digests instead of sending them. It is the default
// provider so a fresh checkout can run a full digest cycle with no email
// credentials configured.
type MockProvider struct {
	logger *slog.Logger
}

// NewMockProvider creates a log-only provider.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{logger: logger}
}

// Send records the digest that would have gone out.
func (m *MockProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.logger.Info("Mock digest delivery",
		"to", to,
		"subject", subject,
		"body_length", len(htmlBody))
	return nil
}
