package client

import (
	"context"
	"errors"
	"sync"

	"github.com/vmail/backend/internal/models"
)

// LoadFailedMessage is shown when a playback URL could not be minted.
const LoadFailedMessage = "Failed to load video. Please try again."

// ErrPlayerClosed is returned by Retry when no message is open.
var ErrPlayerClosed = errors.New("player is closed")

// PlayerState is the lifecycle of the video player.
type PlayerState int

const (
	PlayerClosed PlayerState = iota
	PlayerLoading
	PlayerReady
	PlayerFailed
)

// Minter obtains playback URLs.
type Minter interface {
	MintPlaybackURL(ctx context.Context, ref string, download bool, title string) (string, error)
}

// Player opens one message at a time. URLs are never cached: every Open and
// Retry mints again.
type Player struct {
	minter    Minter
	onStarted func(ctx context.Context, message models.Message)

	mu      sync.Mutex
	seq     uint64
	state   PlayerState
	message models.Message
	url     string
	err     error
	started bool
}

// NewPlayer returns a closed player. onStarted fires on the first Played call
// after each Open.
func NewPlayer(minter Minter, onStarted func(ctx context.Context, message models.Message)) *Player {
	if onStarted == nil {
		onStarted = func(context.Context, models.Message) {}
	}
	return &Player{minter: minter, onStarted: onStarted}
}

// Open shows message and mints its playback URL.
func (p *Player) Open(ctx context.Context, message models.Message) error {
	p.mu.Lock()
	p.seq++
	p.message = message
	p.started = false
	p.mu.Unlock()

	return p.load(ctx)
}

// Retry re-mints the URL for the open message.
func (p *Player) Retry(ctx context.Context) error {
	p.mu.Lock()
	closed := p.state == PlayerClosed
	p.mu.Unlock()
	if closed {
		return ErrPlayerClosed
	}
	return p.load(ctx)
}

func (p *Player) load(ctx context.Context) error {
	p.mu.Lock()
	seq := p.seq
	message := p.message
	p.state = PlayerLoading
	p.url = ""
	p.err = nil
	p.mu.Unlock()

	url, err := p.minter.MintPlaybackURL(ctx, message.StorageRef, false, message.Title)

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.seq {
		// Closed or reopened while minting.
		return err
	}
	if err != nil {
		p.state = PlayerFailed
		p.err = err
		return err
	}
	p.state = PlayerReady
	p.url = url
	return nil
}

// Played records that playback began. The first call per Open notifies
// onStarted and reports true.
func (p *Player) Played(ctx context.Context) bool {
	p.mu.Lock()
	if p.state != PlayerReady || p.started {
		p.mu.Unlock()
		return false
	}
	p.started = true
	message := p.message
	p.mu.Unlock()

	p.onStarted(ctx, message)
	return true
}

// Close hides the player and forgets the minted URL.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.state = PlayerClosed
	p.message = models.Message{}
	p.url = ""
	p.err = nil
	p.started = false
}

// State reports the player lifecycle.
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// URL returns the minted URL while the player is ready.
func (p *Player) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Message returns the open message.
func (p *Player) Message() models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message
}

// ErrorMessage returns LoadFailedMessage while the player is in its failed state.
func (p *Player) ErrorMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PlayerFailed {
		return LoadFailedMessage
	}
	return ""
}
