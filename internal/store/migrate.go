package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return s.MigrateFS(ctx, migrationFiles, "migrations")
}

// MigrateFS runs all .sql files in dir of fsys in order
func (s *Store) MigrateFS(ctx context.Context, fsys fs.FS, dir string) error {
	// 1. Create migrations table if not exists to track applied migrations
	_, err := s.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	// 2. Read migration files
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // 001, 002, ...

	// 3. Apply new migrations
	for _, name := range names {
		if isApplied(ctx, s.DB, name) {
			slog.DebugContext(ctx, "Skipping already applied migration", "file", name)
			continue
		}

		slog.InfoContext(ctx, "Applying migration", "file", name)
		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			// A column added by hand before the migration existed is fine.
			if !strings.Contains(err.Error(), "duplicate column name") {
				return fmt.Errorf("failed to execute migration %s: %w", name, err)
			}
			slog.WarnContext(ctx, "Column likely already exists, marking as applied", "file", name)
		} else if err := tx.Commit(); err != nil {
			return err
		}

		if _, err := s.DB.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
	}

	return nil
}

func isApplied(ctx context.Context, db *sql.DB, version string) bool {
	var exists int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, version).Scan(&exists)
	return err == nil
}
