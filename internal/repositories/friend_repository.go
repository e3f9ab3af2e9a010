package repositories

import (
	"context"

	"github.com/vmail/backend/internal/models"
)

// FriendRepository defines data access for recipients.
type FriendRepository interface {
	Create(ctx context.Context, friend models.Friend) error
	FindByAccessCode(ctx context.Context, code string) (models.Friend, error)
	FindByID(ctx context.Context, id string) (models.Friend, error)
}
