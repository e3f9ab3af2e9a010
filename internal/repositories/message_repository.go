package repositories

import (
	"context"

	"github.com/vmail/backend/internal/models"
)

// MessageRepository exposes data access for video messages.
type MessageRepository interface {
	Create(ctx context.Context, message models.Message) error
	Find(ctx context.Context, messageID string) (models.Message, error)
	ListForRecipient(ctx context.Context, recipientID string) ([]models.Message, error)
	MarkViewed(ctx context.Context, messageID string) error
}
