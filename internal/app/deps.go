package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vmail/backend/internal/config"
	"github.com/vmail/backend/internal/db"
	"github.com/vmail/backend/internal/handlers"
	"github.com/vmail/backend/internal/inbox"
	"github.com/vmail/backend/internal/middleware"
	"github.com/vmail/backend/internal/repositories"
	"github.com/vmail/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, registry *prometheus.Registry) (handlers.Dependencies, error) {
	store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	service := inbox.NewService(
		repositories.NewPostgresFriendRepository(pool),
		repositories.NewPostgresMessageRepository(pool),
		store,
		inbox.Options{
			EnforceOwnership: cfg.EnforceOwnership,
			Metrics:          inbox.NewMetrics(registry),
		},
	)

	deps := handlers.Dependencies{
		Inbox:    service,
		Session:  cfg.Session,
		Metrics:  middleware.NewHTTPMetrics(registry),
		Gatherer: registry,
	}
	if pinger, ok := pool.(handlers.Pinger); ok {
		deps.Database = pinger
	}
	if rl := cfg.LoginRateLimit; rl.Requests > 0 {
		deps.LoginLimiter = middleware.NewIPRateLimiter(rl.Requests, rl.Window, rl.Burst, 10*rl.Window)
	}
	return deps, nil
}
