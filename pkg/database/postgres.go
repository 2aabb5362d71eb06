package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/sma-admin-console/pkg/config"
)

// NewPostgres returns the audit database handle.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// AuditSchema creates the change-set audit table when missing.
const AuditSchema = `CREATE TABLE IF NOT EXISTS changeset_audits (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL,
	entity      TEXT NOT NULL,
	record_id   TEXT NOT NULL,
	changes     JSONB NOT NULL,
	draft       JSONB NOT NULL,
	request_id  TEXT NOT NULL DEFAULT '',
	saved_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_changeset_audits_record ON changeset_audits (entity, record_id, saved_at DESC);`

// Migrate applies the console schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, AuditSchema); err != nil {
		return fmt.Errorf("apply audit schema: %w", err)
	}
	return nil
}
