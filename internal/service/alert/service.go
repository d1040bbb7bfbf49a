package alert

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/obex-alerts/internal/model"
	"github.com/jwalitptl/obex-alerts/internal/repository"
	"github.com/jwalitptl/obex-alerts/internal/service/broadcast"
	"github.com/jwalitptl/obex-alerts/internal/service/notification"
	"github.com/jwalitptl/obex-alerts/pkg/errors"
	"github.com/jwalitptl/obex-alerts/pkg/logger"
	"github.com/jwalitptl/obex-alerts/pkg/metrics"
	"github.com/jwalitptl/obex-alerts/pkg/validator"
	"github.com/jwalitptl/obex-alerts/pkg/worker"
)

type AlertServicer interface {
	Ingest(ctx context.Context, req *model.CreateAlertRequest, source model.Source) (*model.Alert, error)
	List(ctx context.Context, userID uuid.UUID) ([]*model.Alert, error)
}

// Submitter queues background work without blocking.
type Submitter interface {
	Submit(task worker.Task) bool
}

type Service struct {
	repo        repository.AlertRepository
	broadcaster broadcast.Broadcaster
	notifier    notification.Dispatcher
	tasks       Submitter
	validator   validator.Validator
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewService(
	repo repository.AlertRepository,
	broadcaster broadcast.Broadcaster,
	notifier notification.Dispatcher,
	tasks Submitter,
	validator validator.Validator,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		repo:        repo,
		broadcaster: broadcaster,
		notifier:    notifier,
		tasks:       tasks,
		validator:   validator,
		logger:      logger,
		metrics:     metrics,
	}
}

// Ingest stores the alert, pushes it to the owner's live channel and queues
// offline notification. Only validation and persistence failures are
// returned; fanout and notification outcomes are logged.
func (s *Service) Ingest(ctx context.Context, req *model.CreateAlertRequest, source model.Source) (*model.Alert, error) {
	if req == nil {
		s.reject("validation")
		return nil, errors.Validation("empty alert", nil)
	}
	if err := s.validator.Validate(req); err != nil {
		s.reject("validation")
		return nil, errors.Validation(err.Error(), err)
	}
	if req.UserID == uuid.Nil {
		s.reject("validation")
		return nil, errors.Validation("UserID is required", nil)
	}

	alert := req.ToAlert()
	if err := s.repo.Create(ctx, alert); err != nil {
		s.logger.Error(err, "Failed to persist alert",
			"source", string(source),
			"user_id", req.UserID.String(),
			"device_id", req.DeviceID)
		s.reject("persistence")
		return nil, errors.Persistence(err)
	}

	if s.metrics != nil {
		s.metrics.AlertsIngested.WithLabelValues(string(source)).Inc()
	}
	s.logger.Info("Alert saved",
		"alert_id", alert.ID.String(),
		"alert_type", string(alert.AlertType),
		"source", string(source))

	s.broadcaster.Deliver(ctx, alert)

	if !s.tasks.Submit(func(ctx context.Context) {
		s.notifier.Dispatch(ctx, alert)
	}) {
		s.logger.Warn("Notification queue full, dropping offline notification", "alert_id", alert.ID.String())
	}

	return alert, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*model.Alert, error) {
	alerts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

func (s *Service) reject(reason string) {
	if s.metrics != nil {
		s.metrics.AlertsRejected.WithLabelValues(reason).Inc()
	}
}
