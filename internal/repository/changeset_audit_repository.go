package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-admin-console/internal/models"
)

// ChangeSetAuditRepository persists saved change sets.
type ChangeSetAuditRepository struct {
	db *sqlx.DB
}

// NewChangeSetAuditRepository constructs the repository.
func NewChangeSetAuditRepository(db *sqlx.DB) *ChangeSetAuditRepository {
	return &ChangeSetAuditRepository{db: db}
}

// Create inserts an audit row.
func (r *ChangeSetAuditRepository) Create(ctx context.Context, audit *models.ChangeSetAudit) error {
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.SavedAt.IsZero() {
		audit.SavedAt = time.Now().UTC()
	}
	if len(audit.Changes) == 0 {
		audit.Changes = []byte("[]")
	}
	if len(audit.Draft) == 0 {
		audit.Draft = []byte("{}")
	}
	const query = `INSERT INTO changeset_audits
	(id, session_id, entity, record_id, changes, draft, request_id, saved_at)
	VALUES (:id, :session_id, :entity, :record_id, :changes, :draft, :request_id, :saved_at)`
	if _, err := r.db.NamedExecContext(ctx, query, audit); err != nil {
		return fmt.Errorf("create changeset audit: %w", err)
	}
	return nil
}

// ListByRecord returns the save history of one record, newest first.
func (r *ChangeSetAuditRepository) ListByRecord(ctx context.Context, filter models.AuditFilter) ([]models.ChangeSetAudit, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT id, session_id, entity, record_id, changes, draft, request_id, saved_at
	FROM changeset_audits WHERE entity = $1 AND record_id = $2
	ORDER BY saved_at DESC LIMIT %d OFFSET %d`, limit, offset)

	audits := make([]models.ChangeSetAudit, 0)
	if err := r.db.SelectContext(ctx, &audits, query, filter.Entity, filter.RecordID); err != nil {
		return nil, fmt.Errorf("list changeset audits: %w", err)
	}
	return audits, nil
}
