package client

import (
	"context"
	"strings"
	"sync"

	"github.com/vmail/backend/internal/models"
)

// InvalidCodeMessage is shown once the current attempt resolved to no match.
const InvalidCodeMessage = "Invalid access code. Please try again."

// LoginState is the lifecycle of the current login attempt.
type LoginState int

const (
	LoginIdle LoginState = iota
	LoginPending
	LoginResolved
)

// Authenticator looks an access code up.
type Authenticator interface {
	AuthenticateByCode(ctx context.Context, code string) (*models.Session, error)
}

// Attempt identifies one submission. Only the result for the latest attempt is
// applied.
type Attempt struct {
	Token uint64
	Code  string
}

// LoginForm tracks access-code submissions. Each submission gets a new token and
// responses for older tokens are discarded, so a slow lookup for a previous code
// can never show or clear an error for the current one.
type LoginForm struct {
	auth      Authenticator
	onSuccess func(models.Session) error

	mu      sync.Mutex
	token   uint64
	code    string
	state   LoginState
	matched *models.Session
	err     error
}

// NewLoginForm returns an idle form. onSuccess runs for a matching code of the
// current attempt, typically to persist the session.
func NewLoginForm(auth Authenticator, onSuccess func(models.Session) error) *LoginForm {
	if onSuccess == nil {
		onSuccess = func(models.Session) error { return nil }
	}
	return &LoginForm{auth: auth, onSuccess: onSuccess}
}

// Begin starts a new attempt for the trimmed code. Blank input is ignored and
// reports false.
func (f *LoginForm) Begin(code string) (Attempt, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Attempt{}, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.token++
	f.code = code
	f.state = LoginPending
	f.matched = nil
	f.err = nil
	return Attempt{Token: f.token, Code: code}, true
}

// Resolve applies a lookup outcome. It reports false and changes nothing when
// the attempt has been superseded.
func (f *LoginForm) Resolve(attempt Attempt, friend *models.Session, lookupErr error) bool {
	f.mu.Lock()
	if attempt.Token != f.token || f.state != LoginPending {
		f.mu.Unlock()
		return false
	}
	f.state = LoginResolved
	f.matched = friend
	f.err = lookupErr
	f.mu.Unlock()

	if friend != nil && lookupErr == nil {
		if err := f.onSuccess(*friend); err != nil {
			f.mu.Lock()
			if attempt.Token == f.token {
				f.err = err
			}
			f.mu.Unlock()
		}
	}
	return true
}

// Submit runs a full attempt: Begin, the lookup, then Resolve. It returns the
// matched session, or nil when the code matched nobody or was blank.
func (f *LoginForm) Submit(ctx context.Context, code string) (*models.Session, error) {
	attempt, ok := f.Begin(code)
	if !ok {
		return nil, nil
	}

	friend, err := f.auth.AuthenticateByCode(ctx, attempt.Code)
	if !f.Resolve(attempt, friend, err) {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.matched, nil
}

// Retry resets the form to its idle state.
func (f *LoginForm) Retry() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token++
	f.code = ""
	f.state = LoginIdle
	f.matched = nil
	f.err = nil
}

// State reports the current attempt's lifecycle.
func (f *LoginForm) State() LoginState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Pending reports whether a lookup for the current attempt is outstanding.
func (f *LoginForm) Pending() bool {
	return f.State() == LoginPending
}

// Code returns the code of the current attempt.
func (f *LoginForm) Code() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code
}

// Error returns InvalidCodeMessage when the current attempt resolved to no
// match, and "" otherwise.
func (f *LoginForm) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == LoginResolved && f.matched == nil && f.err == nil {
		return InvalidCodeMessage
	}
	return ""
}

// Err returns the backend or persistence failure of the current attempt.
func (f *LoginForm) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
