package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vmail/backend/internal/config"
	"github.com/vmail/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Logger       *slog.Logger
	Inbox        Inbox
	Database     Pinger
	Session      config.SessionConfig
	LoginLimiter middleware.RateLimiter
	Metrics      *middleware.HTTPMetrics
	Gatherer     prometheus.Gatherer
}

// NewRouter builds the complete HTTP surface with its middleware chain.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	RegisterRoutes(r, deps)
	return r
}

// RegisterRoutes wires HTTP handlers into the provided router.
func RegisterRoutes(r chi.Router, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	api := APIHandler{Inbox: deps.Inbox}
	pages := PageHandler{Inbox: deps.Inbox}
	throttle := middleware.Throttle(deps.LoginLimiter)

	r.Get("/healthz", health.Handle)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(throttle).Post("/auth/code", api.Authenticate)
		r.Get("/recipients/{recipientID}/messages", api.ListMessages)
		r.Post("/messages/{messageID}/viewed", api.MarkViewed)
		r.Post("/playback-urls", api.MintPlaybackURL)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(deps.Session))

		r.Get("/", pages.Home)
		r.Get("/login", pages.LoginForm)
		r.With(throttle).Post("/login", pages.Login)
		r.Post("/logout", pages.Logout)

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/", pages.Dashboard)
			r.Get("/messages/{messageID}", pages.Watch)
			r.Get("/messages/{messageID}/download", pages.Download)
			r.Post("/messages/{messageID}/viewed", pages.Viewed)
		})
	})
}
