// Package notify delivers ticket notifications to the assigned team.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Email is a multipart message with HTML and plain-text bodies.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Notifier interface {
	Send(ctx context.Context, email Email) error
}

// LogNotifier records notifications in the log instead of sending them. It
// is used when no SMTP server is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, email Email) error {
	n.logger.Info("Notification not sent, SMTP disabled",
		zap.String("to", email.To),
		zap.String("subject", email.Subject))
	return nil
}
