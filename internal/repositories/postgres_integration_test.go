package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmail/backend/internal/db"
	"github.com/vmail/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresFriendRepository_CreateAndFindByAccessCode(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresFriendRepository(testPool)

	alice := models.Friend{
		ID:         uuid.NewString(),
		Name:       "Alice",
		AccessCode: "ABC123",
		Verse:      &models.Verse{Text: "Be strong and courageous.", Reference: "Joshua 1:9"},
	}
	if err := repo.Create(ctx, alice); err != nil {
		t.Fatalf("create friend: %v", err)
	}

	bob := models.Friend{ID: uuid.NewString(), Name: "Bob", AccessCode: "XYZ789"}
	if err := repo.Create(ctx, bob); err != nil {
		t.Fatalf("create second friend: %v", err)
	}

	dup := models.Friend{ID: uuid.NewString(), Name: "Mallory", AccessCode: alice.AccessCode}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate access code, got %v", err)
	}

	found, err := repo.FindByAccessCode(ctx, "ABC123")
	if err != nil {
		t.Fatalf("find by access code: %v", err)
	}
	if found.ID != alice.ID || found.Name != "Alice" {
		t.Fatalf("unexpected friend fetched: %+v", found)
	}
	if found.Verse == nil || found.Verse.Reference != "Joshua 1:9" {
		t.Fatalf("expected verse to round trip, got %+v", found.Verse)
	}

	found, err = repo.FindByAccessCode(ctx, "XYZ789")
	if err != nil {
		t.Fatalf("find second friend: %v", err)
	}
	if found.Verse != nil {
		t.Fatalf("expected no verse for bob, got %+v", found.Verse)
	}

	byID, err := repo.FindByID(ctx, bob.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Name != "Bob" {
		t.Fatalf("expected bob by id, got %+v", byID)
	}
	if _, err := repo.FindByID(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}

	for _, code := range []string{"ZZZZZZ", "abc123", " ABC123", ""} {
		if _, err := repo.FindByAccessCode(ctx, code); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %q, got %v", code, err)
		}
	}
}

func TestPostgresMessageRepository_ListForRecipient(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	alice := createTestFriend(t, "Alice", "ABC123")
	bob := createTestFriend(t, "Bob", "XYZ789")

	repo := NewPostgresMessageRepository(testPool)
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

	first := models.Message{ID: uuid.NewString(), RecipientID: alice.ID, StorageRef: "videos/first.mp4", Title: "Happy Birthday", CreatedAt: base}
	second := models.Message{ID: uuid.NewString(), RecipientID: alice.ID, StorageRef: "videos/second.mp4", Title: "Good Luck", CreatedAt: base.Add(time.Minute)}
	other := models.Message{ID: uuid.NewString(), RecipientID: bob.ID, StorageRef: "videos/bob.mp4", Title: "For Bob", CreatedAt: base.Add(30 * time.Second)}

	for _, m := range []models.Message{first, other, second} {
		if err := repo.Create(ctx, m); err != nil {
			t.Fatalf("create message %s: %v", m.Title, err)
		}
	}

	orphan := models.Message{ID: uuid.NewString(), RecipientID: uuid.NewString(), StorageRef: "videos/x.mp4", Title: "Nobody"}
	if err := repo.Create(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown recipient, got %v", err)
	}

	inbox, err := repo.ListForRecipient(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(inbox) != 2 {
		t.Fatalf("expected 2 messages for alice, got %d", len(inbox))
	}
	if inbox[0].ID != first.ID || inbox[1].ID != second.ID {
		t.Fatalf("unexpected inbox order: %+v", inbox)
	}
	for _, m := range inbox {
		if m.RecipientID != alice.ID {
			t.Fatalf("unexpected message for recipient %s in alice's inbox", m.RecipientID)
		}
		if m.Viewed {
			t.Fatalf("expected new message to default to unviewed: %+v", m)
		}
	}

	empty, err := repo.ListForRecipient(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("list for unknown recipient: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no messages, got %d", len(empty))
	}
}

func TestPostgresMessageRepository_MarkViewedIdempotent(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	alice := createTestFriend(t, "Alice", "ABC123")
	repo := NewPostgresMessageRepository(testPool)

	msg := models.Message{ID: uuid.NewString(), RecipientID: alice.ID, StorageRef: "videos/a.mp4", Title: "Hello"}
	if err := repo.Create(ctx, msg); err != nil {
		t.Fatalf("create message: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := repo.MarkViewed(ctx, msg.ID); err != nil {
			t.Fatalf("mark viewed attempt %d: %v", i+1, err)
		}
	}

	found, err := repo.Find(ctx, msg.ID)
	if err != nil {
		t.Fatalf("find message: %v", err)
	}
	if !found.Viewed {
		t.Fatal("expected message to be viewed")
	}

	if err := repo.MarkViewed(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound marking unknown message, got %v", err)
	}
	if _, err := repo.Find(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound finding unknown message, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	scripts, err := db.UpScripts()
	if err != nil {
		return err
	}
	for i, script := range scripts {
		if _, err := pool.Exec(ctx, script); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE messages, friends CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestFriend(t *testing.T, name, code string) models.Friend {
	t.Helper()
	friend := models.Friend{ID: uuid.NewString(), Name: name, AccessCode: code}
	if err := NewPostgresFriendRepository(testPool).Create(context.Background(), friend); err != nil {
		t.Fatalf("create test friend: %v", err)
	}
	return friend
}
