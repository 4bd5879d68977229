package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the schema. Every statement is idempotent so it runs on
// each open.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS templates (
			user_id TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			reward INTEGER NOT NULL DEFAULT 0,
			recurrence TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			start_day TEXT,
			end_day TEXT,
			created_at DATETIME NOT NULL,
			modified_ns INTEGER NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (user_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS instances (
			user_id TEXT NOT NULL,
			template_id TEXT NOT NULL,
			day TEXT NOT NULL,
			name TEXT NOT NULL,
			reward INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			completed_at DATETIME,
			late INTEGER NOT NULL DEFAULT 0,
			modified_ns INTEGER NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (user_id, template_id, day)
		);`,
		`CREATE TABLE IF NOT EXISTS ledgers (
			user_id TEXT PRIMARY KEY,
			base_xp INTEGER NOT NULL DEFAULT 0,
			today_xp INTEGER NOT NULL DEFAULT 0,
			tomorrow_xp INTEGER NOT NULL DEFAULT 0,
			last_rollover_day TEXT,
			coins INTEGER NOT NULL DEFAULT 0,
			diamonds INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			highest_level INTEGER NOT NULL DEFAULT 1,
			last_seen_ns INTEGER NOT NULL DEFAULT 0,
			modified_ns INTEGER NOT NULL,
			version INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS streaks (
			user_id TEXT NOT NULL,
			template_id TEXT NOT NULL,
			current_streak INTEGER NOT NULL DEFAULT 0,
			best_streak INTEGER NOT NULL DEFAULT 0,
			total_completions INTEGER NOT NULL DEFAULT 0,
			last_completed_day TEXT,
			current_start_day TEXT,
			as_of TEXT,
			template_modified_ns INTEGER NOT NULL DEFAULT 0,
			calculated_ns INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, template_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_instances_user_day ON instances(user_id, day);`,
		`CREATE INDEX IF NOT EXISTS idx_instances_user_status ON instances(user_id, status);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
