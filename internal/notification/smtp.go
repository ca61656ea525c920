package notification

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"campusid/internal/platform/config"
)

const (
	confirmationSubject = "Identity Created"
	confirmationBody    = `Hello,

Your university identity has been successfully created.

Your ID: %s

If you did not request this identity, please contact administration.

University Identity Management System
`
)

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTP emails the new member their identifier.
type SMTP struct {
	from   string
	sender mailSender
}

// NewSMTP builds an authenticated client. Port 465 uses implicit TLS, any
// other port requires STARTTLS.
func NewSMTP(cfg config.SMTPConfig) (*SMTP, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.Password),
	}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTP{from: cfg.SenderAddress(), sender: client}, nil
}

func (s *SMTP) NotifyIdentityCreated(ctx context.Context, email, identityID string) error {
	msg, err := confirmationMessage(s.from, email, identityID)
	if err != nil {
		return err
	}
	if err := s.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send confirmation to %s: %w", email, err)
	}
	return nil
}

func confirmationMessage(from, to, identityID string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("confirmation sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("confirmation recipient %q: %w", to, err)
	}
	msg.Subject(confirmationSubject)
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(confirmationBody, identityID))
	return msg, nil
}
