package handlers

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/vmail/backend/internal/logging"
	"github.com/vmail/backend/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = mustParsePages("login", "dashboard", "player", "error")

func mustParsePages(names ...string) map[string]*template.Template {
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		tmpl, err := template.New(name).ParseFS(templateFS, "templates/layout.html", fmt.Sprintf("templates/%s.html", name))
		if err != nil {
			panic(fmt.Sprintf("parse %s template: %v", name, err))
		}
		pages[name] = tmpl
	}
	return pages
}

type loginPage struct {
	SignedIn bool
	Code     string
	Error    string
}

type dashboardPage struct {
	SignedIn bool
	Name     string
	Verse    *models.Verse
	Messages []models.Message
	Unviewed int
}

type playerPage struct {
	SignedIn bool
	Message  models.Message
	URL      string
	Failed   bool
}

type errorPage struct {
	SignedIn bool
	Title    string
	Detail   string
}

func renderPage(ctx context.Context, w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := pageTemplates[name]
	if !ok {
		logging.FromContext(ctx).Error("unknown page template", "template", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		logging.FromContext(ctx).Error("render page", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func renderError(ctx context.Context, w http.ResponseWriter, status int, signedIn bool, title, detail string) {
	renderPage(ctx, w, status, "error", errorPage{SignedIn: signedIn, Title: title, Detail: detail})
}
