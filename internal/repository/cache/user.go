package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/obex-alerts/internal/model"
	"github.com/jwalitptl/obex-alerts/internal/repository"
)

// UserRepository caches successful contact lookups for a short TTL so a
// burst of alerts for one user does not hit the user store every time.
type UserRepository struct {
	next  repository.UserRepository
	cache *gocache.Cache
}

// NewUserRepository wraps next. A ttl <= 0 disables caching and returns next.
func NewUserRepository(next repository.UserRepository, ttl time.Duration) repository.UserRepository {
	if ttl <= 0 {
		return next
	}
	return &UserRepository{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (r *UserRepository) GetContact(ctx context.Context, userID uuid.UUID) (*model.UserContact, error) {
	key := userID.String()
	if v, ok := r.cache.Get(key); ok {
		c := *v.(*model.UserContact)
		return &c, nil
	}

	contact, err := r.next.GetContact(ctx, userID)
	if err != nil {
		return nil, err
	}

	stored := *contact
	r.cache.SetDefault(key, &stored)
	return contact, nil
}
