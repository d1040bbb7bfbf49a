package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/obex-alerts/pkg/logger"
)

type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string
}

// SMTPService sends one message per connection. Port 465 is implicit TLS.
type SMTPService struct {
	config SMTPConfig
	dialer *gomail.Dialer
	logger *logger.Logger
}

func NewSMTPService(config SMTPConfig, logger *logger.Logger) *SMTPService {
	var d *gomail.Dialer
	if config.Username == "" {
		d = &gomail.Dialer{Host: config.Host, Port: config.Port}
	} else {
		d = gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	}
	d.SSL = config.Port == 465

	return &SMTPService{config: config, dialer: d, logger: logger}
}

func (s *SMTPService) message(to, subject, content string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.config.FromAddress, s.config.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)
	return m
}

func (s *SMTPService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	if to == "" {
		return fmt.Errorf("no recipient email address")
	}

	m := s.message(to, subject, content)

	// gomail has no context support; the send keeps running in the
	// background if ctx expires first.
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		s.logger.Debug("Email sent via SMTP", "to", to, "subject", subject)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to send email: %w", ctx.Err())
	}
}
