// Package email handles sending notification emails via multiple providers.
package email

import (
	"context"
	"log/slog"

	"edforum-notifier/pkg/notifier"
)

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends an email with the given parameters.
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Sender sends notification emails using a pluggable provider.
type Sender struct {
	provider Provider
	logger   *slog.Logger
	toAddr   string // Recipient for every notification
	fromAddr string // From address for emails
}

// New creates a new email sender with the given provider.
func New(provider Provider, logger *slog.Logger, toAddr, fromAddr string) *Sender {
	return &Sender{
		provider: provider,
		logger:   logger,
		toAddr:   toAddr,
		fromAddr: fromAddr,
	}
}

// SendNotification sends one email about a newly discovered posting.
func (s *Sender) SendNotification(ctx context.Context, event *notifier.Event) error {
	subject := notificationSubject(event)
	body := formatNotificationBody(event)

	s.logger.Info("Sending notification email",
		"to", s.toAddr,
		"from", s.fromAddr,
		"subject", subject,
		"term", event.Term,
		"link", event.Posting.Link)

	return s.provider.Send(ctx, s.toAddr, subject, body)
}
