package session

import "github.com/vmail/backend/internal/models"

// Storage keys for the persisted session pair.
const (
	FriendIDKey   = "vmail:friendId"
	FriendNameKey = "vmail:friendName"
)

// KV is an application-namespaced persistent key/value store on the client side.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// Store persists the friend session pair. A Store without a KV silently does
// nothing, which is how non-browser contexts without storage behave.
type Store struct {
	kv KV
}

// NewStore returns a Store backed by kv. kv may be nil.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Read returns the persisted session only when both fields are present.
func (s *Store) Read() (models.Session, bool) {
	if s == nil || s.kv == nil {
		return models.Session{}, false
	}
	id, okID := s.kv.Get(FriendIDKey)
	name, okName := s.kv.Get(FriendNameKey)
	if !okID || !okName || id == "" || name == "" {
		return models.Session{}, false
	}
	return models.Session{ID: id, Name: name}, true
}

// Write unconditionally overwrites both fields.
func (s *Store) Write(id, name string) error {
	if s == nil || s.kv == nil {
		return nil
	}
	if err := s.kv.Set(FriendIDKey, id); err != nil {
		return err
	}
	return s.kv.Set(FriendNameKey, name)
}

// Clear removes both fields. Clearing an absent session is a no-op.
func (s *Store) Clear() error {
	if s == nil || s.kv == nil {
		return nil
	}
	if err := s.kv.Delete(FriendIDKey); err != nil {
		return err
	}
	return s.kv.Delete(FriendNameKey)
}
