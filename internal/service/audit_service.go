package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-admin-console/internal/entity"
	"github.com/noah-isme/sma-admin-console/internal/models"
	"github.com/noah-isme/sma-admin-console/pkg/events"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
)

type changeSetAuditRepository interface {
	Create(ctx context.Context, audit *models.ChangeSetAudit) error
	ListByRecord(ctx context.Context, filter models.AuditFilter) ([]models.ChangeSetAudit, error)
}

// AuditService persists confirmed change sets and serves record history.
type AuditService struct {
	repo     changeSetAuditRepository
	registry *entity.Registry
	logger   *zap.Logger
}

// NewAuditService constructs the service. A nil repo disables auditing.
func NewAuditService(repo changeSetAuditRepository, registry *entity.Registry, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, registry: registry, logger: logger}
}

// Enabled reports whether audit rows are written.
func (s *AuditService) Enabled() bool {
	return s != nil && s.repo != nil
}

// HandleRecordSaved is the record.saved subscriber.
func (s *AuditService) HandleRecordSaved(ctx context.Context, event events.Event) error {
	if !s.Enabled() {
		return nil
	}
	var saved SavedChangeSet
	switch payload := event.Payload.(type) {
	case SavedChangeSet:
		saved = payload
	case *SavedChangeSet:
		if payload == nil {
			return fmt.Errorf("record.saved event %s has no payload", event.ID)
		}
		saved = *payload
	default:
		return fmt.Errorf("record.saved event %s has unexpected payload %T", event.ID, event.Payload)
	}

	changes, err := json.Marshal(saved.Changes)
	if err != nil {
		return fmt.Errorf("encode changes: %w", err)
	}
	draft, err := json.Marshal(saved.Draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	audit := &models.ChangeSetAudit{
		SessionID: saved.SessionID,
		Entity:    event.Entity,
		RecordID:  event.RecordID,
		Changes:   changes,
		Draft:     draft,
		RequestID: event.RequestID,
		SavedAt:   saved.SavedAt,
	}
	if err := s.repo.Create(ctx, audit); err != nil {
		return err
	}
	s.logger.Debug("change set audited",
		zap.String("audit_id", audit.ID),
		zap.String("entity", audit.Entity),
		zap.String("record_id", audit.RecordID),
	)
	return nil
}

// History lists the audited saves of one record, newest first.
func (s *AuditService) History(ctx context.Context, entityName, recordID string, limit, offset int) ([]models.ChangeSetAudit, error) {
	if !s.Enabled() {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "change set auditing is disabled")
	}
	desc, err := s.registry.Lookup(entityName)
	if err != nil {
		return nil, err
	}
	audits, err := s.repo.ListByRecord(ctx, models.AuditFilter{Entity: desc.Name, RecordID: recordID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to load audit history")
	}
	return audits, nil
}
