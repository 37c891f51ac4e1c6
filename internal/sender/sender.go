// Package sender delivers operator notifications.
package sender

import (
	"context"
	"log/slog"
)

// Notification is a titled list of lines.
type Notification struct {
	Subject string
	Lines   []string
}

// Empty reports whether there is nothing worth sending.
func (n Notification) Empty() bool {
	return n.Subject == "" && len(n.Lines) == 0
}

// Sender delivers a notification to some destination.
// Implementations treat an empty notification as a no-op.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the service log. It is used when no
// Telegram chat is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, n Notification) error {
	if n.Empty() {
		return nil
	}
	s.logger.InfoContext(ctx, "notification", "subject", n.Subject, "lines", n.Lines)
	return nil
}
