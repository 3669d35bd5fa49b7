package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/floroz/commerce/migrations"
)

// Migrate runs a goose command (up, down, status, ...) against dsn.
// Migrations come from dir when set, otherwise from the embedded set.
func Migrate(ctx context.Context, dsn, dir, command string, args ...string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sql db for migrations: %w", err)
	}
	defer db.Close()

	return MigrateDB(ctx, db, migrationsFS(dir), command, args...)
}

// MigrateDB runs a goose command on an open database using migrations from fsys
func MigrateDB(ctx context.Context, db *sql.DB, fsys fs.FS, command string, args ...string) error {
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, db, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}
