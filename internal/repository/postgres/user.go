package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/obex-alerts/internal/model"
	"github.com/jwalitptl/obex-alerts/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) GetContact(ctx context.Context, userID uuid.UUID) (contact *model.UserContact, err error) {
	start := time.Now()
	defer func() { r.observe("user_contact", start, err) }()

	query := `
		SELECT id, username, email, phone_number
		FROM users
		WHERE id = $1
	`

	var c model.UserContact
	if err = r.db.GetContext(ctx, &c, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user contact: %w", err)
	}
	return &c, nil
}
