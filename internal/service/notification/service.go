package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jwalitptl/obex-alerts/internal/email"
	"github.com/jwalitptl/obex-alerts/internal/model"
	"github.com/jwalitptl/obex-alerts/internal/repository"
	"github.com/jwalitptl/obex-alerts/internal/sms"
	"github.com/jwalitptl/obex-alerts/pkg/logger"
	"github.com/jwalitptl/obex-alerts/pkg/metrics"
)

const (
	DefaultSubject = "New Obex Security Alert Received"
	defaultTimeout = 10 * time.Second

	channelEmail = "email"
	channelSMS   = "sms"

	statusSent    = "sent"
	statusFailed  = "failed"
	statusSkipped = "skipped"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, alert *model.Alert)
}

type Config struct {
	Subject string
	// Timeout bounds each channel's delivery attempt.
	Timeout time.Duration
}

type service struct {
	users    repository.UserRepository
	smsSvc   sms.Sender
	emailSvc email.Service
	config   Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewService builds the offline notifier. A nil smsSvc or emailSvc
// disables that channel.
func NewService(users repository.UserRepository, smsSvc sms.Sender, emailSvc email.Service, config Config, logger *logger.Logger, metrics *metrics.Metrics) Dispatcher {
	if config.Subject == "" {
		config.Subject = DefaultSubject
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &service{
		users:    users,
		smsSvc:   smsSvc,
		emailSvc: emailSvc,
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

// Dispatch makes one SMS attempt and one email attempt for the alert's
// owner. Failures are logged and counted, never returned.
func (s *service) Dispatch(ctx context.Context, alert *model.Alert) {
	contact, err := s.users.GetContact(ctx, alert.UserID)
	if err != nil {
		s.logger.Warn("Cannot resolve alert owner, skipping notifications",
			"alert_id", alert.ID.String(),
			"user_id", alert.UserID.String(),
			"error", err.Error())
		return
	}

	body := FormatMessage(alert)

	var wg sync.WaitGroup
	wg.Add(2)
	go s.deliver(ctx, &wg, channelSMS, alert, func(ctx context.Context) (bool, error) {
		phone := contact.Phone()
		if s.smsSvc == nil || phone == "" {
			return false, nil
		}
		return true, s.smsSvc.Send(ctx, phone, body)
	})
	go s.deliver(ctx, &wg, channelEmail, alert, func(ctx context.Context) (bool, error) {
		if s.emailSvc == nil || contact.Email == "" {
			return false, nil
		}
		return true, s.emailSvc.SendCustom(ctx, contact.Email, s.config.Subject, body)
	})
	wg.Wait()
}

// deliver runs one channel in isolation. send reports whether it attempted
// delivery at all.
func (s *service) deliver(ctx context.Context, wg *sync.WaitGroup, channel string, alert *model.Alert, send func(context.Context) (bool, error)) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Errorf("%v", r), "Notification channel panicked",
				"channel", channel,
				"alert_id", alert.ID.String(),
				"stack", string(debug.Stack()))
			s.observe(channel, statusFailed, 0)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	attempted, err := send(ctx)
	switch {
	case !attempted:
		s.logger.Debug("Notification channel skipped", "channel", channel, "alert_id", alert.ID.String())
		s.observe(channel, statusSkipped, 0)
	case err != nil:
		s.logger.Error(err, "Notification failed", "channel", channel, "alert_id", alert.ID.String())
		s.observe(channel, statusFailed, time.Since(start))
	default:
		s.logger.Info("Notification sent", "channel", channel, "alert_id", alert.ID.String())
		s.observe(channel, statusSent, time.Since(start))
	}
}

func (s *service) observe(channel, status string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.Notifications.WithLabelValues(channel, status).Inc()
	if elapsed > 0 {
		s.metrics.NotificationDuration.WithLabelValues(channel).Observe(elapsed.Seconds())
	}
}

// FormatMessage renders the plain-text summary shared by SMS and email.
func FormatMessage(alert *model.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alert Type: %s\n", alert.AlertType)
	fmt.Fprintf(&b, "User ID: %s\n", alert.UserID)
	fmt.Fprintf(&b, "Device ID: %s\n", alert.DeviceID)
	fmt.Fprintf(&b, "Timestamp: %s\n", alert.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Location: (%s, %s)\n", formatCoord(alert.LocationLat), formatCoord(alert.LocationLon))
	fmt.Fprintf(&b, "Payload: %s\n", formatPayload(alert.Payload))
	return b.String()
}

func formatCoord(v *float64) string {
	if v == nil {
		return "None"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatPayload(p model.JSONMap) string {
	if p == nil {
		return "None"
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "None"
	}
	return string(raw)
}
