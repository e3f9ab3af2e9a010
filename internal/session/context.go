package session

import (
	"context"
	"strings"
	"sync"

	"github.com/vmail/backend/internal/models"
)

// Logical routes of the application.
const (
	EntryRoute     = "/"
	LoginRoute     = "/login"
	DashboardRoute = "/dashboard"
)

// Context holds the in-memory session and keeps it synchronised with the Store.
// All writes to the persisted session go through Login and Logout.
type Context struct {
	store    *Store
	navigate func(path string)

	once    sync.Once
	mu      sync.RWMutex
	loading bool
	session *models.Session
}

// NewContext returns a Context that is still loading. navigate is invoked for
// logout and guard redirects; it may be nil.
func NewContext(store *Store, navigate func(path string)) *Context {
	if navigate == nil {
		navigate = func(string) {}
	}
	return &Context{
		store:    store,
		navigate: navigate,
		loading:  true,
	}
}

// Hydrate reads the Store once and ends the loading phase. Later calls do nothing.
func (c *Context) Hydrate() {
	c.once.Do(func() {
		s, ok := c.store.Read()

		c.mu.Lock()
		defer c.mu.Unlock()
		if ok {
			c.session = &s
		}
		c.loading = false
	})
}

// Loading reports whether hydration has not finished. Session values observed while
// loading are not authoritative.
func (c *Context) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Session returns the current session, if any.
func (c *Context) Session() (models.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return models.Session{}, false
	}
	return *c.session, true
}

// Login writes the session through to the Store, then makes it current. On a
// storage failure the in-memory session is left untouched.
func (c *Context) Login(id, name string) error {
	if err := c.store.Write(id, name); err != nil {
		return err
	}
	c.mu.Lock()
	c.session = &models.Session{ID: id, Name: name}
	c.mu.Unlock()
	return nil
}

// Logout clears both copies of the session and navigates to the entry route.
func (c *Context) Logout() error {
	err := c.store.Clear()
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.navigate(EntryRoute)
	return err
}

// Guard redirects to the entry route when path is protected and there is no
// session. It reports whether a redirect was issued. Before hydration completes
// it never redirects.
func (c *Context) Guard(path string) bool {
	if c.Loading() || !IsProtected(path) {
		return false
	}
	if _, ok := c.Session(); ok {
		return false
	}
	c.navigate(EntryRoute)
	return true
}

// Dispatch picks where the entry route sends the visitor.
func (c *Context) Dispatch() string {
	if _, ok := c.Session(); ok {
		return DashboardRoute
	}
	return LoginRoute
}

// IsProtected reports whether path lies under the dashboard area.
func IsProtected(path string) bool {
	return path == DashboardRoute || strings.HasPrefix(path, DashboardRoute+"/")
}

type ctxKey struct{}

// WithContext attaches an auth Context to ctx.
func WithContext(ctx context.Context, auth *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, auth)
}

// Lookup returns the auth Context stored on ctx, if present.
func Lookup(ctx context.Context) (*Context, bool) {
	auth, ok := ctx.Value(ctxKey{}).(*Context)
	return auth, ok && auth != nil
}

// FromContext returns the auth Context stored on ctx. It panics when none was
// provided; that is a wiring bug, not a runtime condition.
func FromContext(ctx context.Context) *Context {
	auth, ok := Lookup(ctx)
	if !ok {
		panic("session: FromContext used outside of an auth provider")
	}
	return auth
}
