package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vmail/backend/internal/db"
	"github.com/vmail/backend/internal/models"
)

// PostgresFriendRepository provides PostgreSQL-backed persistence for friends.
type PostgresFriendRepository struct {
	pool db.Pool
}

// NewPostgresFriendRepository constructs a friend repository backed by PostgreSQL.
func NewPostgresFriendRepository(pool db.Pool) *PostgresFriendRepository {
	return &PostgresFriendRepository{pool: pool}
}

// Create persists a new friend. A reused access code is reported as ErrConflict.
func (r *PostgresFriendRepository) Create(ctx context.Context, friend models.Friend) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var verseText, verseRef sql.NullString
	if friend.Verse != nil {
		verseText = sql.NullString{String: friend.Verse.Text, Valid: true}
		verseRef = sql.NullString{String: friend.Verse.Reference, Valid: true}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO friends (id, name, access_code, verse_text, verse_reference)
        VALUES ($1, $2, $3, $4, $5)
    `, friend.ID, friend.Name, friend.AccessCode, verseText, verseRef)
	if err != nil {
		return writeError("insert friend", err)
	}

	return nil
}

// FindByAccessCode looks a friend up by exact access code.
func (r *PostgresFriendRepository) FindByAccessCode(ctx context.Context, code string) (models.Friend, error) {
	return r.findOne(ctx, "access_code", code)
}

// FindByID loads a friend by identifier.
func (r *PostgresFriendRepository) FindByID(ctx context.Context, id string) (models.Friend, error) {
	return r.findOne(ctx, "id", id)
}

func (r *PostgresFriendRepository) findOne(ctx context.Context, column, value string) (models.Friend, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Friend{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	// column is one of two package constants, never caller input.
	row := conn.QueryRow(ctx, `
        SELECT id, name, access_code, verse_text, verse_reference
        FROM friends
        WHERE `+column+` = $1
    `, value)

	var (
		friend    models.Friend
		verseText sql.NullString
		verseRef  sql.NullString
	)
	if err := row.Scan(&friend.ID, &friend.Name, &friend.AccessCode, &verseText, &verseRef); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Friend{}, ErrNotFound
		}
		return models.Friend{}, fmt.Errorf("select friend by %s: %w", column, err)
	}

	if verseText.Valid {
		friend.Verse = &models.Verse{Text: verseText.String, Reference: verseRef.String}
	}

	return friend, nil
}

// PostgresMessageRepository provides PostgreSQL-backed persistence for messages.
type PostgresMessageRepository struct {
	pool db.Pool
}

// NewPostgresMessageRepository constructs a message repository backed by PostgreSQL.
func NewPostgresMessageRepository(pool db.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

// Create stores a new message. An unknown recipient is reported as ErrNotFound.
func (r *PostgresMessageRepository) Create(ctx context.Context, message models.Message) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	createdAt := message.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO messages (id, recipient_id, storage_ref, title, viewed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, message.ID, message.RecipientID, message.StorageRef, message.Title, message.Viewed, createdAt)
	if err != nil {
		return writeError("insert message", err)
	}

	return nil
}

// Find loads a single message by id.
func (r *PostgresMessageRepository) Find(ctx context.Context, messageID string) (models.Message, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Message{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, recipient_id, storage_ref, title, viewed, created_at
        FROM messages
        WHERE id = $1
    `, messageID)

	var m models.Message
	if err := row.Scan(&m.ID, &m.RecipientID, &m.StorageRef, &m.Title, &m.Viewed, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("select message: %w", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

// ListForRecipient returns every message addressed to recipientID in insertion order.
func (r *PostgresMessageRepository) ListForRecipient(ctx context.Context, recipientID string) ([]models.Message, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, recipient_id, storage_ref, title, viewed, created_at
        FROM messages
        WHERE recipient_id = $1
        ORDER BY created_at, id
    `, recipientID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.RecipientID, &m.StorageRef, &m.Title, &m.Viewed, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// MarkViewed sets the viewed flag. Repeating it on a viewed message succeeds.
func (r *PostgresMessageRepository) MarkViewed(ctx context.Context, messageID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE messages
        SET viewed = TRUE
        WHERE id = $1
    `, messageID)
	if err != nil {
		return fmt.Errorf("update message viewed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

var _ FriendRepository = (*PostgresFriendRepository)(nil)
var _ MessageRepository = (*PostgresMessageRepository)(nil)
