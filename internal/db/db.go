package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pool abstracts the pgx connection pool to make testing easier.
type Pool interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

// Connect initialises a PostgreSQL connection pool using the provided database URL.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return pool, nil
}

// MigrationStatus reports the schema version after a migrate command.
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// Migrate applies (direction "up") or reverts one step of (direction "down") the
// embedded migrations. "status" only reports the current version.
func Migrate(databaseURL, direction string) (MigrationStatus, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("open embedded migrations: %w", err)
	}

	target, err := migrateURL(databaseURL)
	if err != nil {
		return MigrationStatus{}, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, target)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("initialise migrations: %w", err)
	}
	defer m.Close()

	switch direction {
	case "up", "":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "status":
	default:
		return MigrationStatus{}, fmt.Errorf("unknown migrate command %q", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationStatus{}, fmt.Errorf("migrate %s: %w", direction, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, fmt.Errorf("read migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty}, nil
}

// UpScripts returns the embedded forward migrations in apply order. Integration
// tests execute them directly against the test server.
func UpScripts() ([]string, error) {
	names, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	scripts := make([]string, 0, len(names))
	for _, name := range names {
		contents, err := migrationsFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		scripts = append(scripts, string(contents))
	}
	return scripts, nil
}

// migrateURL rewrites postgres:// URLs to the pgx5:// scheme the migrate driver registers.
func migrateURL(databaseURL string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql", "pgx5":
		u.Scheme = "pgx5"
	default:
		return "", fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}
	return u.String(), nil
}
