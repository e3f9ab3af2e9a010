package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spf13/cobra"

	"github.com/vmail/backend/internal/db"
	"github.com/vmail/backend/internal/logging"
)

const (
	seedMaxRetries  = 3
	seedBaseBackoff = 100 * time.Millisecond
	seedMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// execer is the part of a pgx connection a seed needs.
type execer interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

func (c *cli) seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <name>",
		Short: "Apply a SQL seed file (e.g. dev) from the seeds directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(cmd.Context(), logger)

			seedDir := cfg.SeedDir
			if !filepath.IsAbs(seedDir) {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("determine working directory: %w", err)
				}
				seedDir = filepath.Join(wd, seedDir)
			}

			seedName := seedFileName(args[0])
			contents, err := os.ReadFile(filepath.Join(seedDir, seedName))
			if err != nil {
				return fmt.Errorf("read seed %s: %w", seedName, err)
			}

			pool, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			conn, err := pool.Acquire(ctx)
			if err != nil {
				return fmt.Errorf("acquire connection: %w", err)
			}
			defer conn.Release()

			if err := applySeedWithRetry(ctx, conn, seedName, string(contents)); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "applied seed %s\n", seedName)
			return nil
		},
	}
}

func seedFileName(name string) string {
	if strings.HasSuffix(name, ".sql") {
		return name
	}
	return fmt.Sprintf("%s_seed.sql", name)
}

func applySeedWithRetry(ctx context.Context, conn execer, name, contents string) error {
	logger := logging.FromContext(ctx)

	var attempt int
	for attempt = 0; attempt < seedMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * seedBaseBackoff
			if backoff > seedMaxBackoff {
				backoff = seedMaxBackoff
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("begin seed transaction for %s: %w", name, err)
		}

		if _, err := tx.Exec(ctx, contents); err != nil {
			_ = tx.Rollback(ctx)
			if shouldRetry(err) && attempt < seedMaxRetries-1 {
				logger.Warn("transient error applying seed", "seed", name, "attempt", attempt+1, "error", err)
				continue
			}
			return fmt.Errorf("apply seed %s: %w", name, err)
		}

		if err := tx.Commit(ctx); err != nil {
			_ = tx.Rollback(ctx)
			if shouldRetry(err) && attempt < seedMaxRetries-1 {
				logger.Warn("transient error committing seed", "seed", name, "attempt", attempt+1, "error", err)
				continue
			}
			return fmt.Errorf("commit seed %s: %w", name, err)
		}

		return nil
	}

	return fmt.Errorf("apply seed %s: exceeded max retries (%d)", name, attempt)
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := retryablePgErrorCodes[pgErr.Code]; ok {
			return true
		}
	}

	return errors.Is(err, pgx.ErrTxClosed)
}
