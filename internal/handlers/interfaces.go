package handlers

import (
	"context"

	"github.com/vmail/backend/internal/models"
	"github.com/vmail/backend/internal/storage"
)

// Inbox captures the backend operations the HTTP surface exposes.
type Inbox interface {
	AuthenticateByCode(ctx context.Context, code string) (*models.Session, error)
	Friend(ctx context.Context, id string) (models.Friend, error)
	ListMessages(ctx context.Context, recipientID string) ([]models.Message, error)
	Message(ctx context.Context, recipientID, messageID string) (models.Message, error)
	MarkViewedFor(ctx context.Context, recipientID, messageID string) error
	MintPlaybackURL(ctx context.Context, ref string, opts storage.PlaybackOptions) (string, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
