package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// runMigrations runs all Bun migrations
func (b *BunDB) runMigrations(ctx context.Context) error {
	// Create a simple migrations tracking table
	var createSQL string
	if isPostgresDialect(b.db) {
		createSQL = `
		CREATE TABLE IF NOT EXISTS bun_schema_migrations (
			id SERIAL PRIMARY KEY,
			version TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	} else {
		createSQL = `
		CREATE TABLE IF NOT EXISTS bun_schema_migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	}
	_, err := b.db.ExecContext(ctx, createSQL)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Check which migrations have been applied
	type AppliedMigration struct {
		bun.BaseModel `bun:"table:bun_schema_migrations"`
		Version       string `bun:"version"`
	}
	var applied []AppliedMigration
	err = b.db.NewSelect().
		Model(&applied).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to check applied migrations: %w", err)
	}

	appliedMap := make(map[string]bool)
	for _, m := range applied {
		appliedMap[m.Version] = true
	}

	// Run migrations in order
	migrations := []struct {
		version string
		name    string
		up      func(context.Context, *bun.DB) error
	}{
		{"001", "initial_schema", init001CreateConversionsTable},
		{"002", "create_jobs_table", init002CreateJobsTable},
	}

	for _, m := range migrations {
		if appliedMap[m.version] {
			continue
		}

		Logger.Info("Running migration", "version", m.version, "name", m.name)
		if err := m.up(ctx, b.db); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.version, err)
		}

		// Mark as applied
		_, err = b.db.NewInsert().
			Model(&AppliedMigration{Version: m.version}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark migration %s as applied: %w", m.version, err)
		}
	}

	Logger.Info("All migrations completed successfully")
	return nil
}

// isPostgresDialect detects PostgreSQL by checking dialect features
func isPostgresDialect(db *bun.DB) bool {
	_, isPostgres := db.Dialect().(interface{ SupportsReturning() bool })
	return isPostgres
}

// Migration 001: Create initial schema (conversions and server_config tables)
func init001CreateConversionsTable(ctx context.Context, db *bun.DB) error {
	Logger.Info("Running migration 001: Create initial schema")

	var createConversionsSQL string
	if isPostgresDialect(db) {
		createConversionsSQL = `
			CREATE TABLE IF NOT EXISTS conversions (
				id TEXT PRIMARY KEY,
				source TEXT NOT NULL,
				pages INTEGER NOT NULL DEFAULT 0,
				resolution INTEGER NOT NULL DEFAULT 144,
				format TEXT NOT NULL DEFAULT 'jpg',
				output_dir TEXT NOT NULL,
				outputs TEXT,
				duration_ms BIGINT DEFAULT 0,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
		`
	} else {
		createConversionsSQL = `
			CREATE TABLE IF NOT EXISTS conversions (
				id TEXT PRIMARY KEY,
				source TEXT NOT NULL,
				pages INTEGER NOT NULL DEFAULT 0,
				resolution INTEGER NOT NULL DEFAULT 144,
				format TEXT NOT NULL DEFAULT 'jpg',
				output_dir TEXT NOT NULL,
				outputs TEXT,
				duration_ms INTEGER DEFAULT 0,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
		`
	}
	if _, err := db.ExecContext(ctx, createConversionsSQL); err != nil {
		return fmt.Errorf("failed to create conversions table: %w", err)
	}

	createIndexSQL := `CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions (created_at)`
	if _, err := db.ExecContext(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("failed to create conversions index: %w", err)
	}

	createConfigSQL := `
		CREATE TABLE IF NOT EXISTS server_config (
			id INTEGER PRIMARY KEY,
			listen_addr_ip TEXT DEFAULT '',
			listen_addr_port TEXT NOT NULL DEFAULT '8000',
			ingress_path TEXT NOT NULL DEFAULT '',
			ingress_interval INTEGER NOT NULL DEFAULT 10,
			ingress_delete BOOLEAN NOT NULL DEFAULT TRUE,
			output_path TEXT NOT NULL DEFAULT '',
			default_resolution INTEGER NOT NULL DEFAULT 144,
			default_format TEXT NOT NULL DEFAULT 'jpg',
			render_engine TEXT NOT NULL DEFAULT 'pdfium',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.ExecContext(ctx, createConfigSQL); err != nil {
		return fmt.Errorf("failed to create server_config table: %w", err)
	}

	return nil
}

// Migration 002: Create jobs table
func init002CreateJobsTable(ctx context.Context, db *bun.DB) error {
	Logger.Info("Running migration 002: Create jobs table")

	createJobsSQL := `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			status TEXT DEFAULT 'pending',
			progress INTEGER DEFAULT 0,
			current_step TEXT DEFAULT '',
			total_steps INTEGER DEFAULT 0,
			message TEXT DEFAULT '',
			error TEXT,
			result TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			started_at TIMESTAMP,
			completed_at TIMESTAMP
		)
	`
	if _, err := db.ExecContext(ctx, createJobsSQL); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}

	createIndexSQL := `CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`
	if _, err := db.ExecContext(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("failed to create jobs index: %w", err)
	}

	return nil
}
