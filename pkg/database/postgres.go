package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/eventhub-api/pkg/config"
)

// schema holds the tables backing the PostgreSQL event store.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		requested_by TEXT NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ NOT NULL,
		document JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_status_start ON events (status, start_date)`,
	`CREATE INDEX IF NOT EXISTS idx_events_requested_by ON events (requested_by, status)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_single_pending ON events (requested_by) WHERE status = 'PENDING'`,
	`CREATE TABLE IF NOT EXISTS xp_data (
		uid TEXT PRIMARY KEY,
		total_calculated_xp INTEGER NOT NULL DEFAULT 0,
		xp_developer INTEGER NOT NULL DEFAULT 0,
		xp_presenter INTEGER NOT NULL DEFAULT 0,
		xp_designer INTEGER NOT NULL DEFAULT 0,
		xp_organizer INTEGER NOT NULL DEFAULT 0,
		xp_problem_solver INTEGER NOT NULL DEFAULT 0,
		xp_best_performer INTEGER NOT NULL DEFAULT 0,
		xp_participation INTEGER NOT NULL DEFAULT 0,
		count_wins INTEGER NOT NULL DEFAULT 0,
		last_updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// DSN renders the lib/pq connection string.
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
}

// NewPostgres opens the pool for the event store and verifies connectivity.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the events and xp_data tables when missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
