package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmail/backend/internal/db"
)

func (c *cli) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, revert or inspect the database schema",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.load()
			if err != nil {
				return err
			}

			direction := "up"
			if len(args) > 0 {
				direction = args[0]
			}

			status, err := db.Migrate(cfg.DatabaseURL, direction)
			if err != nil {
				return err
			}

			dirty := ""
			if status.Dirty {
				dirty = " (dirty)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d%s\n", status.Version, dirty)
			return nil
		},
	}
}
