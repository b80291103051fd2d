package service

import (
	"context"
	"log/slog"
)

// Mailer delivers system mail. Transport is an external concern; the module
// ships only the slog-backed implementation below.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes mail to the log instead of sending it. Development only:
// the body contains the passcode.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "outgoing mail", "to", to, "subject", subject, "body", body)
	return nil
}
