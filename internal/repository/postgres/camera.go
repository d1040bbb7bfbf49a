package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/obex-alerts/internal/model"
	"github.com/jwalitptl/obex-alerts/internal/repository"
)

type cameraRepository struct {
	BaseRepository
}

func NewCameraRepository(base BaseRepository) repository.CameraRepository {
	return &cameraRepository{base}
}

func (r *cameraRepository) Create(ctx context.Context, camera *model.Camera) (err error) {
	start := time.Now()
	defer func() { r.observe("camera_create", start, err) }()

	query := `
		INSERT INTO cameras (
			id, user_id, camera_name, ip_address, username,
			password, port, path, rtsp_url, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`
	camera.ID = uuid.New()
	if camera.CreatedAt.IsZero() {
		camera.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, query,
		camera.ID,
		camera.UserID,
		camera.Name,
		camera.IPAddress,
		camera.Username,
		camera.Password,
		camera.Port,
		camera.Path,
		camera.RTSPURL,
		camera.CreatedAt,
	)
	if err != nil {
		camera.ID = uuid.Nil
		return fmt.Errorf("failed to create camera: %w", err)
	}
	return nil
}

func (r *cameraRepository) ListByUser(ctx context.Context, userID uuid.UUID) (cameras []*model.Camera, err error) {
	start := time.Now()
	defer func() { r.observe("camera_list", start, err) }()

	// password is nullable in rows written by older clients
	query := `
		SELECT
			id, user_id, camera_name, ip_address, username,
			COALESCE(password, '') AS password, port, path, rtsp_url, created_at
		FROM cameras
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	cameras = []*model.Camera{}
	if err = r.db.SelectContext(ctx, &cameras, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}
	return cameras, nil
}
