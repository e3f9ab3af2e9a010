package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vmail/backend/internal/inbox"
	"github.com/vmail/backend/internal/logging"
	"github.com/vmail/backend/internal/models"
	"github.com/vmail/backend/internal/repositories"
	"github.com/vmail/backend/internal/session"
	"github.com/vmail/backend/internal/storage"
)

// InvalidCodeMessage is shown when an access code matches nobody.
const InvalidCodeMessage = "Invalid access code. Please try again."

// PageHandler serves the server-rendered browser pages. Every handler expects
// the session middleware to have placed an auth Context on the request.
type PageHandler struct {
	Inbox Inbox
}

// Home handles GET / by dispatching to the login form or the dashboard.
func (h PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	auth := session.FromContext(r.Context())
	http.Redirect(w, r, auth.Dispatch(), http.StatusFound)
}

// LoginForm handles GET /login.
func (h PageHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	auth := session.FromContext(r.Context())
	if _, ok := auth.Session(); ok {
		http.Redirect(w, r, session.DashboardRoute, http.StatusFound)
		return
	}
	renderPage(r.Context(), w, http.StatusOK, "login", loginPage{})
}

// Login handles POST /login.
func (h PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	auth := session.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		renderPage(ctx, w, http.StatusBadRequest, "login", loginPage{Error: "Please enter your access code."})
		return
	}

	code := strings.TrimSpace(r.PostFormValue("code"))
	if code == "" {
		renderPage(ctx, w, http.StatusBadRequest, "login", loginPage{Error: "Please enter your access code."})
		return
	}

	friend, err := h.Inbox.AuthenticateByCode(ctx, code)
	if err != nil {
		logger.Error("authenticate by code failed", "error", err)
		renderPage(ctx, w, http.StatusInternalServerError, "login", loginPage{Code: code, Error: "We could not verify your code right now. Please try again."})
		return
	}
	if friend == nil {
		renderPage(ctx, w, http.StatusUnauthorized, "login", loginPage{Code: code, Error: InvalidCodeMessage})
		return
	}

	if err := auth.Login(friend.ID, friend.Name); err != nil {
		logger.Error("persist session failed", "friendId", friend.ID, "error", err)
		renderError(ctx, w, http.StatusInternalServerError, false, "Sign in failed", "Your session could not be saved. Please try again.")
		return
	}

	logger.Info("friend signed in", "friendId", friend.ID)
	http.Redirect(w, r, session.DashboardRoute, http.StatusSeeOther)
}

// Logout handles POST /logout.
func (h PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth := session.FromContext(r.Context())
	if err := auth.Logout(); err != nil {
		logging.FromContext(r.Context()).Warn("clear session failed", "error", err)
	}
	http.Redirect(w, r, session.EntryRoute, http.StatusSeeOther)
}

// Dashboard handles GET /dashboard.
func (h PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	current, ok := currentSession(w, r)
	if !ok {
		return
	}

	messages, err := h.Inbox.ListMessages(ctx, current.ID)
	if err != nil {
		logger.Error("load dashboard messages failed", "friendId", current.ID, "error", err)
		renderError(ctx, w, http.StatusInternalServerError, true, "Something went wrong", "Your messages could not be loaded. Please try again.")
		return
	}

	page := dashboardPage{
		SignedIn: true,
		Name:     current.Name,
		Messages: messages,
		Unviewed: models.Unviewed(messages),
	}

	// The verse is decoration; a failed lookup must not hide the inbox.
	if friend, err := h.Inbox.Friend(ctx, current.ID); err == nil {
		page.Verse = friend.Verse
	} else {
		logger.Warn("load friend verse failed", "friendId", current.ID, "error", err)
	}

	renderPage(ctx, w, http.StatusOK, "dashboard", page)
}

// Watch handles GET /dashboard/messages/{messageID}. Every visit mints a fresh
// playback URL, so reloading the page is the retry.
func (h PageHandler) Watch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	message, ok := h.loadMessage(w, r)
	if !ok {
		return
	}

	page := playerPage{SignedIn: true, Message: message}
	url, err := h.Inbox.MintPlaybackURL(ctx, message.StorageRef, storage.PlaybackOptions{})
	if err != nil {
		logging.FromContext(ctx).Warn("failed to load video", "messageId", message.ID, "error", err)
		page.Failed = true
	} else {
		page.URL = url
	}

	renderPage(ctx, w, http.StatusOK, "player", page)
}

// Download handles GET /dashboard/messages/{messageID}/download by redirecting
// to an attachment URL named after the message title.
func (h PageHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	message, ok := h.loadMessage(w, r)
	if !ok {
		return
	}

	url, err := h.Inbox.MintPlaybackURL(ctx, message.StorageRef, storage.PlaybackOptions{
		Download: true,
		Filename: models.DownloadName(message.Title),
	})
	if err != nil {
		logging.FromContext(ctx).Warn("download failed", "messageId", message.ID, "error", err)
		renderPage(ctx, w, http.StatusOK, "player", playerPage{SignedIn: true, Message: message, Failed: true})
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// Viewed handles POST /dashboard/messages/{messageID}/viewed, sent by the player
// on first play. The player ignores the outcome.
func (h PageHandler) Viewed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current, ok := currentSession(w, r)
	if !ok {
		return
	}
	messageID := chi.URLParam(r, "messageID")

	err := h.Inbox.MarkViewedFor(ctx, current.ID, messageID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "message not found")
	case errors.Is(err, inbox.ErrForbidden):
		respondError(ctx, w, http.StatusForbidden, "message belongs to another recipient")
	default:
		logging.FromContext(ctx).Warn("failed to mark as viewed", "messageId", messageID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to mark message viewed")
	}
}

func (h PageHandler) loadMessage(w http.ResponseWriter, r *http.Request) (models.Message, bool) {
	ctx := r.Context()
	current, ok := currentSession(w, r)
	if !ok {
		return models.Message{}, false
	}
	messageID := chi.URLParam(r, "messageID")

	message, err := h.Inbox.Message(ctx, current.ID, messageID)
	switch {
	case err == nil:
		return message, true
	case errors.Is(err, repositories.ErrNotFound):
		renderError(ctx, w, http.StatusNotFound, true, "Message not found", "This video message is not in your inbox.")
	default:
		logging.FromContext(ctx).Error("load message failed", "messageId", messageID, "error", err)
		renderError(ctx, w, http.StatusInternalServerError, true, "Something went wrong", "This video message could not be loaded. Please try again.")
	}
	return models.Message{}, false
}

// currentSession returns the signed-in friend. The session middleware already
// redirects anonymous visitors away from protected pages, so a miss here means
// the route was registered outside the protected area.
func currentSession(w http.ResponseWriter, r *http.Request) (models.Session, bool) {
	current, ok := session.FromContext(r.Context()).Session()
	if !ok {
		http.Redirect(w, r, session.EntryRoute, http.StatusFound)
	}
	return current, ok
}
