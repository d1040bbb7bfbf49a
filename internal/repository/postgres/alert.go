package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/obex-alerts/internal/model"
	"github.com/jwalitptl/obex-alerts/internal/repository"
)

type alertRepository struct {
	BaseRepository
}

func NewAlertRepository(base BaseRepository) repository.AlertRepository {
	return &alertRepository{base}
}

// Create assigns a fresh id and inserts the alert. On failure the alert's id
// is reset so callers never observe an id that was not stored.
func (r *alertRepository) Create(ctx context.Context, alert *model.Alert) (err error) {
	start := time.Now()
	defer func() { r.observe("alert_create", start, err) }()

	query := `
		INSERT INTO alerts (
			id, user_id, device_id, timestamp, alert_type,
			location_lat, location_lon, payload
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`
	alert.ID = uuid.New()

	_, err = r.db.ExecContext(ctx, query,
		alert.ID,
		alert.UserID,
		alert.DeviceID,
		alert.Timestamp,
		string(alert.AlertType),
		alert.LocationLat,
		alert.LocationLon,
		alert.Payload,
	)
	if err != nil {
		alert.ID = uuid.Nil
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *alertRepository) ListByUser(ctx context.Context, userID uuid.UUID) (alerts []*model.Alert, err error) {
	start := time.Now()
	defer func() { r.observe("alert_list", start, err) }()

	query := `
		SELECT
			id, user_id, device_id, timestamp, alert_type,
			location_lat, location_lon, payload
		FROM alerts
		WHERE user_id = $1
		ORDER BY timestamp DESC
	`
	alerts = []*model.Alert{}
	if err = r.db.SelectContext(ctx, &alerts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}
