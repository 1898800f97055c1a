package db

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate applies all pending goose migrations from the given filesystem
// (typically an embed.FS with *.sql files at dir).
func Migrate(ctx context.Context, pool *Pool, fsys fs.FS, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(fsys)

	sqlDB := stdlib.OpenDBFromPool(pool.Pool)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
