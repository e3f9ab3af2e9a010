package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vmail/backend/internal/db"
	"github.com/vmail/backend/internal/handlers"
	"github.com/vmail/backend/internal/httpserver"
	"github.com/vmail/backend/internal/logging"
)

func (c *cli) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(cmd.Context(), logger)

			pool, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			deps, err := buildDependencies(ctx, pool, cfg, registry)
			if err != nil {
				return err
			}
			deps.Logger = logger

			srv := httpserver.New(cfg.AppPort, handlers.NewRouter(deps), logger)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().Int("port", 0, "port to listen on")
	c.bind(cmd.Flags(), "port", "port")
	return cmd
}
