package email

import (
	"context"
	"fmt"

	"github.com/jwalitptl/obex-alerts/config"
	"github.com/jwalitptl/obex-alerts/pkg/logger"
)

// Service delivers a plain-text message to one address.
type Service interface {
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

// NewService picks the provider named by cfg.Provider.
func NewService(cfg config.EmailConfig, log *logger.Logger) (Service, error) {
	switch cfg.Provider {
	case "", "smtp":
		return NewSMTPService(SMTPConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUser,
			Password:    cfg.SMTPPassword,
			FromName:    cfg.FromName,
			FromAddress: fromAddress(cfg),
		}, log), nil
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("resend provider requires an api key")
		}
		return NewResendService(cfg.ResendAPIKey, formatFrom(cfg.FromName, fromAddress(cfg)), log), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

func fromAddress(cfg config.EmailConfig) string {
	if cfg.FromAddress != "" {
		return cfg.FromAddress
	}
	return cfg.SMTPUser
}

func formatFrom(name, address string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}
