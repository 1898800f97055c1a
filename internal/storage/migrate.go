package storage

import (
	"context"
	"embed"

	"github.com/mindgrid/psyconsult/libs/db"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to date on startup.
func Migrate(ctx context.Context, pool *db.Pool) error {
	return db.Migrate(ctx, pool, migrationsFS, "migrations")
}
