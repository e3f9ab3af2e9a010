package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vmail/backend/internal/inbox"
	"github.com/vmail/backend/internal/logging"
	"github.com/vmail/backend/internal/models"
	"github.com/vmail/backend/internal/repositories"
	"github.com/vmail/backend/internal/storage"
)

// APIHandler implements the JSON API consumed by the CLI client.
type APIHandler struct {
	Inbox Inbox
}

type authenticateRequest struct {
	Code string `json:"code"`
}

type authenticateResponse struct {
	Friend *models.Session `json:"friend"`
}

type messagesResponse struct {
	Messages []models.Message `json:"messages"`
	Unviewed int              `json:"unviewed"`
}

type markViewedRequest struct {
	RecipientID string `json:"recipientId"`
}

type playbackRequest struct {
	StorageRef string `json:"storageRef"`
	Download   bool   `json:"download"`
	Title      string `json:"title"`
}

type playbackResponse struct {
	URL string `json:"url"`
}

// Authenticate handles POST /api/v1/auth/code. An unknown code is a normal
// result: the response carries a null friend.
func (h APIHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req authenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid authenticate payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		respondError(ctx, w, http.StatusBadRequest, "code is required")
		return
	}

	friend, err := h.Inbox.AuthenticateByCode(ctx, req.Code)
	if err != nil {
		logger.Error("authenticate by code failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to verify access code")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authenticateResponse{Friend: friend})
}

// ListMessages handles GET /api/v1/recipients/{recipientID}/messages.
func (h APIHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recipientID := chi.URLParam(r, "recipientID")

	messages, err := h.Inbox.ListMessages(ctx, recipientID)
	if err != nil {
		logging.FromContext(ctx).Error("list messages failed", "recipientId", recipientID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	respondJSON(ctx, w, http.StatusOK, messagesResponse{Messages: messages, Unviewed: models.Unviewed(messages)})
}

// MarkViewed handles POST /api/v1/messages/{messageID}/viewed. The body is
// optional and only matters when ownership checks are enabled.
func (h APIHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messageID := chi.URLParam(r, "messageID")

	var req markViewedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.Inbox.MarkViewedFor(ctx, req.RecipientID, messageID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "message not found")
	case errors.Is(err, inbox.ErrForbidden):
		respondError(ctx, w, http.StatusForbidden, "message belongs to another recipient")
	default:
		logging.FromContext(ctx).Error("mark viewed failed", "messageId", messageID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to mark message viewed")
	}
}

// MintPlaybackURL handles POST /api/v1/playback-urls.
func (h APIHandler) MintPlaybackURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req playbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.StorageRef) == "" {
		respondError(ctx, w, http.StatusBadRequest, "storageRef is required")
		return
	}

	opts := storage.PlaybackOptions{Download: req.Download}
	if req.Download && req.Title != "" {
		opts.Filename = models.DownloadName(req.Title)
	}

	url, err := h.Inbox.MintPlaybackURL(ctx, req.StorageRef, opts)
	switch {
	case err == nil:
		respondJSON(ctx, w, http.StatusOK, playbackResponse{URL: url})
	case errors.Is(err, storage.ErrUnresolvable):
		respondError(ctx, w, http.StatusNotFound, "video could not be found")
	default:
		logging.FromContext(ctx).Error("mint playback url failed", "storageRef", req.StorageRef, "error", err)
		respondError(ctx, w, http.StatusBadGateway, "failed to load video")
	}
}
