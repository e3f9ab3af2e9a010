package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vmail/backend/internal/models"
)

var (
	// ErrUnresolvable indicates the server could not resolve a storage reference.
	ErrUnresolvable = errors.New("video could not be found")
)

// StatusError is returned for unexpected HTTP responses.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server responded %d", e.Status)
	}
	return fmt.Sprintf("server responded %d: %s", e.Status, e.Message)
}

// API talks to the VMail JSON API.
type API struct {
	baseURL string
	http    *http.Client
}

// New returns an API client rooted at baseURL.
func New(baseURL string, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &API{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// AuthenticateByCode exchanges an access code for a session. An unknown code
// yields a nil session.
func (a *API) AuthenticateByCode(ctx context.Context, code string) (*models.Session, error) {
	var resp struct {
		Friend *models.Session `json:"friend"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/v1/auth/code", map[string]string{"code": code}, &resp); err != nil {
		return nil, fmt.Errorf("authenticate by code: %w", err)
	}
	return resp.Friend, nil
}

// ListMessages returns the recipient's messages in insertion order.
func (a *API) ListMessages(ctx context.Context, recipientID string) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	path := "/api/v1/recipients/" + url.PathEscape(recipientID) + "/messages"
	if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return resp.Messages, nil
}

// MarkViewed flags a message as viewed on behalf of recipientID.
func (a *API) MarkViewed(ctx context.Context, recipientID, messageID string) error {
	path := "/api/v1/messages/" + url.PathEscape(messageID) + "/viewed"
	if err := a.do(ctx, http.MethodPost, path, map[string]string{"recipientId": recipientID}, nil); err != nil {
		return fmt.Errorf("mark viewed: %w", err)
	}
	return nil
}

// MintPlaybackURL obtains a fresh, time-limited URL for ref. A download URL
// suggests the message title as file name.
func (a *API) MintPlaybackURL(ctx context.Context, ref string, download bool, title string) (string, error) {
	body := map[string]any{"storageRef": ref, "download": download, "title": title}
	var resp struct {
		URL string `json:"url"`
	}
	err := a.do(ctx, http.MethodPost, "/api/v1/playback-urls", body, &resp)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
		return "", ErrUnresolvable
	}
	if err != nil {
		return "", fmt.Errorf("mint playback url: %w", err)
	}
	return resp.URL, nil
}

// Fetch streams the object behind a minted URL into w.
func (a *API) Fetch(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build download request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{Status: resp.StatusCode}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download video: %w", err)
	}
	return n, nil
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &StatusError{Status: resp.StatusCode, Message: payload.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
