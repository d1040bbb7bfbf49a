package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/obex-alerts/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// All repository interfaces in one file
type (
	// AlertRepository is the durable alert store. Create assigns the id.
	AlertRepository interface {
		Create(ctx context.Context, alert *model.Alert) error
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Alert, error)
	}

	// UserRepository resolves notification contact details.
	UserRepository interface {
		GetContact(ctx context.Context, userID uuid.UUID) (*model.UserContact, error)
	}

	// CameraRepository stores registered edge devices. Create assigns the id.
	CameraRepository interface {
		Create(ctx context.Context, camera *model.Camera) error
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Camera, error)
	}
)
