package services

import (
	"context"
	"log/slog"
)

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes outgoing mail to the structured log instead of sending
// it. Delivery is handled by the mail relay that tails the log stream.
type LogMailer struct {
	from string
}

func NewLogMailer(from string) *LogMailer {
	return &LogMailer{from: from}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	slog.InfoContext(ctx, "outgoing mail", "from", m.from, "to", to, "subject", subject, "body", body)
	return nil
}
