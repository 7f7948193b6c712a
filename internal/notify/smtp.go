package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/dom/healthguide/internal/logger"
	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends OTP mail through an authenticated SMTP relay.
type SMTPSender struct {
	client *mail.Client
	from   string
	log    *logger.Logger
}

func NewSMTPSender(cfg SMTPConfig, log *logger.Logger) (*SMTPSender, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPSender{client: client, from: from, log: log}, nil
}

func (s *SMTPSender) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	body, err := renderOTP(code, ttl)
	if err != nil {
		return fmt.Errorf("render otp mail: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(otpSubject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		s.log.Error("notify.SMTPSender: send failed", "to", to, "err", err)
		return fmt.Errorf("send otp mail: %w", err)
	}

	s.log.Info("notify.SMTPSender: otp mail sent", "to", to)
	return nil
}
