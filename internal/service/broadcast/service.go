package broadcast

import (
	"context"
	"encoding/json"

	"github.com/jwalitptl/obex-alerts/internal/model"
	"github.com/jwalitptl/obex-alerts/pkg/logger"
	"github.com/jwalitptl/obex-alerts/pkg/metrics"
)

// Sender is the registry surface the broadcaster needs.
type Sender interface {
	Send(userID string, msg []byte) bool
}

type Broadcaster interface {
	Deliver(ctx context.Context, alert *model.Alert) bool
}

type Service struct {
	registry Sender
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(registry Sender, logger *logger.Logger, metrics *metrics.Metrics) *Service {
	return &Service{
		registry: registry,
		logger:   logger,
		metrics:  metrics,
	}
}

// Deliver pushes a new_alert envelope to the owner's live channel, if any.
// It reports whether the envelope was written. There is no retry.
func (s *Service) Deliver(ctx context.Context, alert *model.Alert) bool {
	msg, err := json.Marshal(model.AlertEnvelope{
		Type:  model.EnvelopeNewAlert,
		Alert: alert,
	})
	if err != nil {
		s.logger.Error(err, "Failed to encode alert envelope", "alert_id", alert.ID.String())
		s.observe("error")
		return false
	}

	userID := alert.UserID.String()
	if !s.registry.Send(userID, msg) {
		s.logger.Debug("No live channel for alert owner", "alert_id", alert.ID.String(), "user_id", userID)
		s.observe("miss")
		return false
	}

	s.logger.Info("Alert broadcast", "alert_id", alert.ID.String(), "user_id", userID)
	s.observe("delivered")
	return true
}

func (s *Service) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.Broadcasts.WithLabelValues(outcome).Inc()
	}
}
