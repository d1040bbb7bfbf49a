package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/jwalitptl/obex-alerts/pkg/logger"
)

// ResendService sends mail through the Resend API.
type ResendService struct {
	client *resend.Client
	from   string
	logger *logger.Logger
}

func NewResendService(apiKey, from string, logger *logger.Logger) *ResendService {
	return &ResendService{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger,
	}
}

func (s *ResendService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	if to == "" {
		return fmt.Errorf("no recipient email address")
	}

	result, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Text:    content,
	})
	if err != nil {
		return fmt.Errorf("failed to send email via resend: %w", err)
	}

	s.logger.Debug("Email sent via Resend", "to", to, "email_id", result.Id)
	return nil
}
