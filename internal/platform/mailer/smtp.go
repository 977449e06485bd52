package mailer

import (
	"context"

	"github.com/samber/oops"
	"github.com/wneessen/go-mail"

	"social_auth/internal/platform/config"
)

// SMTPSender delivers mail synchronously over SMTP.
type SMTPSender struct {
	from   string
	client *mail.Client
}

func NewSMTPSender(cfg *config.Config) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, oops.In("mailer").With("host", cfg.SMTPHost).Wrapf(err, "create smtp client")
	}
	return &SMTPSender{from: cfg.MailFrom, client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return oops.In("mailer").Code("invalid_sender").With("from", s.from).Wrap(err)
	}
	if err := msg.To(to); err != nil {
		return oops.In("mailer").Code("invalid_recipient").Wrap(err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return oops.In("mailer").Code("smtp_send_failed").Wrapf(err, "deliver mail")
	}
	return nil
}
