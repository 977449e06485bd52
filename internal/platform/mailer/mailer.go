package mailer

import (
	"context"

	"github.com/rs/zerolog"
)

// Sender delivers a plain-text notification to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes notifications to the log instead of delivering them.
// Used with MAIL_TRANSPORT=log in development.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("Mail delivery skipped (log transport)")
	return nil
}
