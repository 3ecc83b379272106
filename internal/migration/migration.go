package migration

import (
	"context"

	"metastats/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createComparisonRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create comparison_runs table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createComparisonRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS comparison_runs (
			id UUID PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			attribute TEXT NOT NULL,
			params JSONB,
			fingerprint VARCHAR(64) NOT NULL,
			table_hash VARCHAR(64) NOT NULL,
			seed BIGINT NOT NULL DEFAULT 0,
			tested_count INTEGER NOT NULL DEFAULT 0,
			significant_count INTEGER NOT NULL DEFAULT 0,
			result JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_comparison_runs_fingerprint
			ON comparison_runs (fingerprint, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_comparison_runs_created
			ON comparison_runs (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_comparison_runs_kind
			ON comparison_runs (kind)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
