package inbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmail/backend/internal/logging"
	"github.com/vmail/backend/internal/models"
	"github.com/vmail/backend/internal/repositories"
	"github.com/vmail/backend/internal/storage"
)

var (
	// ErrForbidden indicates a message does not belong to the acting recipient.
	ErrForbidden = errors.New("message belongs to another recipient")
)

// PlaybackMinter issues time-limited URLs for stored videos.
type PlaybackMinter interface {
	PlaybackURL(ctx context.Context, ref string, opts storage.PlaybackOptions) (string, error)
}

// Options tune a Service.
type Options struct {
	// EnforceOwnership makes MarkViewedFor reject messages addressed to someone else.
	EnforceOwnership bool
	Metrics          *Metrics
}

// Service implements the backend operations the inbox relies on.
type Service struct {
	friends  repositories.FriendRepository
	messages repositories.MessageRepository
	minter   PlaybackMinter
	opts     Options
}

// NewService wires the repositories and the playback minter together.
func NewService(friends repositories.FriendRepository, messages repositories.MessageRepository, minter PlaybackMinter, opts Options) *Service {
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Service{
		friends:  friends,
		messages: messages,
		minter:   minter,
		opts:     opts,
	}
}

// AuthenticateByCode resolves an access code to a session. A code that matches
// nobody yields a nil session and a nil error.
func (s *Service) AuthenticateByCode(ctx context.Context, code string) (*models.Session, error) {
	ctx, op := logging.StartOperation(ctx, "authenticate_by_code")

	friend, err := s.friends.FindByAccessCode(ctx, code)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		s.opts.Metrics.Logins.WithLabelValues("unmatched").Inc()
		op.End(nil)
		return nil, nil
	case err != nil:
		s.opts.Metrics.Logins.WithLabelValues("error").Inc()
		err = fmt.Errorf("authenticate by code: %w", err)
		op.End(err)
		return nil, err
	}

	s.opts.Metrics.Logins.WithLabelValues("matched").Inc()
	op.End(nil)
	return &models.Session{ID: friend.ID, Name: friend.Name}, nil
}

// Friend loads the recipient record for a session, including the verse.
func (s *Service) Friend(ctx context.Context, id string) (models.Friend, error) {
	return s.friends.FindByID(ctx, id)
}

// ListMessages returns every message addressed to recipientID in insertion order.
func (s *Service) ListMessages(ctx context.Context, recipientID string) ([]models.Message, error) {
	ctx, op := logging.StartOperation(ctx, "list_messages")

	messages, err := s.messages.ListForRecipient(ctx, recipientID)
	if err != nil {
		err = fmt.Errorf("list messages for %s: %w", recipientID, err)
		op.End(err)
		return nil, err
	}

	op.End(nil)
	return messages, nil
}

// MarkViewed flips the viewed flag of messageID. Marking an already viewed
// message succeeds.
func (s *Service) MarkViewed(ctx context.Context, messageID string) error {
	ctx, op := logging.StartOperation(ctx, "mark_viewed")

	if err := s.messages.MarkViewed(ctx, messageID); err != nil {
		err = fmt.Errorf("mark message %s viewed: %w", messageID, err)
		op.End(err)
		return err
	}

	s.opts.Metrics.Views.Inc()
	op.End(nil)
	return nil
}

// MarkViewedFor marks messageID viewed on behalf of recipientID. Without
// ownership enforcement it behaves exactly like MarkViewed.
func (s *Service) MarkViewedFor(ctx context.Context, recipientID, messageID string) error {
	if !s.opts.EnforceOwnership {
		return s.MarkViewed(ctx, messageID)
	}

	message, err := s.messages.Find(ctx, messageID)
	if err != nil {
		return fmt.Errorf("mark message %s viewed: %w", messageID, err)
	}
	if message.RecipientID != recipientID {
		logging.FromContext(ctx).Warn("rejected view of foreign message",
			"message_id", messageID, "recipient_id", recipientID)
		return ErrForbidden
	}
	return s.MarkViewed(ctx, messageID)
}

// Message loads one message from recipientID's inbox. A message addressed to
// anyone else reads as repositories.ErrNotFound regardless of EnforceOwnership,
// since resolving it would hand out another friend's video.
func (s *Service) Message(ctx context.Context, recipientID, messageID string) (models.Message, error) {
	message, err := s.messages.Find(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if message.RecipientID != recipientID {
		logging.FromContext(ctx).Warn("rejected load of foreign message",
			"message_id", messageID, "recipient_id", recipientID)
		return models.Message{}, repositories.ErrNotFound
	}
	return message, nil
}

// MintPlaybackURL asks the store for a fresh URL. storage.ErrUnresolvable is
// passed through so callers can offer a retry.
func (s *Service) MintPlaybackURL(ctx context.Context, ref string, opts storage.PlaybackOptions) (string, error) {
	ctx, op := logging.StartOperation(ctx, "mint_playback_url")

	mode := "stream"
	if opts.Download {
		mode = "download"
	}

	url, err := s.minter.PlaybackURL(ctx, ref, opts)
	if err != nil {
		result := "error"
		if errors.Is(err, storage.ErrUnresolvable) {
			result = "unresolvable"
		}
		s.opts.Metrics.Playbacks.WithLabelValues(mode, result).Inc()
		op.End(err)
		return "", err
	}

	s.opts.Metrics.Playbacks.WithLabelValues(mode, "ok").Inc()
	op.End(nil)
	return url, nil
}
