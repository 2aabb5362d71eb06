package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admin-console/internal/changeset"
	"github.com/noah-isme/sma-admin-console/internal/entity"
	"github.com/noah-isme/sma-admin-console/internal/models"
	"github.com/noah-isme/sma-admin-console/pkg/events"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
	"github.com/noah-isme/sma-admin-console/pkg/middleware/requestid"
)

// SessionStore persists edit sessions between requests.
type SessionStore interface {
	Save(ctx context.Context, session models.EditSession) error
	Get(ctx context.Context, id string) (*models.EditSession, error)
	Delete(ctx context.Context, id string) error
	Lock(ctx context.Context, id string, ttl time.Duration) (func(), error)
}

// RecordBackend is the school REST backend.
type RecordBackend interface {
	FetchAll(ctx context.Context, path string) ([]models.Record, error)
	Get(ctx context.Context, path, id string) (models.Record, error)
	Create(ctx context.Context, path string, fields models.Fields) (models.Record, error)
	Update(ctx context.Context, path, id string, fields models.Fields) error
	Delete(ctx context.Context, path, id string) error
}

// EventPublisher publishes record events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// FileResolver turns an upload id into the stored file reference.
type FileResolver interface {
	Resolve(ctx context.Context, fileID string) (models.FileRef, error)
}

// SavedChangeSet is the payload of record.saved events.
type SavedChangeSet struct {
	SessionID string
	Changes   []models.FieldChange
	Draft     models.Fields
	SavedAt   time.Time
}

// SessionServiceConfig tunes session behaviour.
type SessionServiceConfig struct {
	LockTTL                time.Duration
	SaveTimeout            time.Duration
	ClearFeeStatusWhenPaid bool
}

// SessionService hosts the edit-confirm-save sessions behind the HTTP API.
type SessionService struct {
	registry *entity.Registry
	backend  RecordBackend
	store    SessionStore
	files    FileResolver
	events   EventPublisher
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      SessionServiceConfig
	now      func() time.Time

	// ids of sessions with a save running on this instance
	saving sync.Map
}

// SessionServiceOption customises the service.
type SessionServiceOption func(*SessionService)

// WithSessionEvents publishes record.saved after successful saves.
func WithSessionEvents(publisher EventPublisher) SessionServiceOption {
	return func(s *SessionService) {
		s.events = publisher
	}
}

// WithSessionFiles enables file-valued fields.
func WithSessionFiles(files FileResolver) SessionServiceOption {
	return func(s *SessionService) {
		s.files = files
	}
}

// WithSessionCache drops the entity's cached list once a save succeeds.
func WithSessionCache(cache *CacheService) SessionServiceOption {
	return func(s *SessionService) {
		s.cache = cache
	}
}

// WithSessionMetrics records stage transitions and save outcomes.
func WithSessionMetrics(metrics *MetricsService) SessionServiceOption {
	return func(s *SessionService) {
		s.metrics = metrics
	}
}

// WithSessionClock overrides the time source.
func WithSessionClock(now func() time.Time) SessionServiceOption {
	return func(s *SessionService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionService constructs the service.
func NewSessionService(registry *entity.Registry, backend RecordBackend, store SessionStore, cfg SessionServiceConfig, logger *zap.Logger, opts ...SessionServiceOption) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	svc := &SessionService{
		registry: registry,
		backend:  backend,
		store:    store,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *SessionService) editorOptions() []changeset.Option {
	return []changeset.Option{changeset.WithSaveTimeout(s.cfg.SaveTimeout), changeset.WithClock(s.now)}
}

// Open fetches the authoritative record and starts a session on it.
func (s *SessionService) Open(ctx context.Context, entityName, recordID string) (*models.SessionView, error) {
	if strings.TrimSpace(recordID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recordId is required")
	}
	desc, err := s.registry.Lookup(entityName)
	if err != nil {
		return nil, err
	}
	rec, err := s.backend.Get(ctx, desc.Path, recordID)
	if err != nil {
		return nil, err
	}
	typed, err := desc.Decode(rec)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrBackend, err, "")
	}

	ed := changeset.Open(uuid.NewString(), desc.Name, typed, s.editorOptions()...)
	if err := s.store.Save(ctx, ed.Session()); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to store session")
	}
	s.metrics.ObserveStage(desc.Name, string(models.StageEditing))
	s.logger.Debug("edit session opened",
		zap.String("session_id", ed.Session().ID),
		zap.String("entity", desc.Name),
		zap.String("record_id", recordID),
	)
	view := ed.View()
	return &view, nil
}

// View renders a stored session.
func (s *SessionService) View(ctx context.Context, id string) (*models.SessionView, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := changeset.Restore(*session, s.editorOptions()...).View()
	return &view, nil
}

// SetText assigns a text value to a draft field.
func (s *SessionService) SetText(ctx context.Context, id, key, value string) (*models.SessionView, error) {
	return s.mutate(ctx, id, func(ed *changeset.Editor) error {
		if err := checkEditable(ed, key); err != nil {
			return err
		}
		ed.SetField(key, models.Text(value))
		return nil
	})
}

// SetFile assigns a previously uploaded file to a file-valued draft field.
func (s *SessionService) SetFile(ctx context.Context, id, key, fileID string) (*models.SessionView, error) {
	if s.files == nil {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "file uploads are not configured")
	}
	ref, err := s.files.Resolve(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(ed *changeset.Editor) error {
		if err := checkEditable(ed, key); err != nil {
			return err
		}
		if !ed.IsFileField(key) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("field %s does not accept files", key))
		}
		ed.SetField(key, models.File(ref))
		return nil
	})
}

func checkEditable(ed *changeset.Editor, key string) error {
	if ed.Stage() != models.StageEditing {
		return appErrors.Clone(appErrors.ErrInvalidStage, "fields can only be changed while editing")
	}
	if !ed.HasField(key) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown field: %s", key))
	}
	return nil
}

// Submit computes the change list and moves to review.
func (s *SessionService) Submit(ctx context.Context, id string) (*models.SessionView, error) {
	return s.mutate(ctx, id, stageStep((*changeset.Editor).Submit, "submit is only allowed while editing"))
}

// ConfirmChanges accepts the change list. With no changes the session stays put.
func (s *SessionService) ConfirmChanges(ctx context.Context, id string) (*models.SessionView, error) {
	return s.mutate(ctx, id, func(ed *changeset.Editor) error {
		if ed.Stage() == models.StageReviewingChanges && !ed.CanConfirm() {
			return appErrors.Clone(appErrors.ErrInvalidStage, "there are no changes to confirm")
		}
		return stageStep((*changeset.Editor).ConfirmChanges, "changes can only be confirmed while reviewing them")(ed)
	})
}

// Back steps to the previous stage.
func (s *SessionService) Back(ctx context.Context, id string) (*models.SessionView, error) {
	return s.mutate(ctx, id, stageStep((*changeset.Editor).Back, "nothing to go back to"))
}

// BackToEdit returns to Editing from either review stage.
func (s *SessionService) BackToEdit(ctx context.Context, id string) (*models.SessionView, error) {
	return s.mutate(ctx, id, stageStep((*changeset.Editor).BackToEdit, "nothing to go back to"))
}

func stageStep(step func(*changeset.Editor) bool, message string) func(*changeset.Editor) error {
	return func(ed *changeset.Editor) error {
		if !step(ed) {
			return appErrors.Clone(appErrors.ErrInvalidStage, message)
		}
		return nil
	}
}

// mutate serialises one change to a stored session under the session lock.
func (s *SessionService) mutate(ctx context.Context, id string, apply func(*changeset.Editor) error) (*models.SessionView, error) {
	release, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ed := changeset.Restore(*session, s.editorOptions()...)
	before := ed.Stage()
	if err := apply(ed); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, ed.Session()); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to store session")
	}
	if after := ed.Stage(); after != before {
		s.metrics.ObserveStage(session.Entity, string(after))
	}
	view := ed.View()
	return &view, nil
}

// ConfirmSave persists the confirmed draft through the backend. A second
// call while one is pending is rejected with SAVE_IN_PROGRESS.
func (s *SessionService) ConfirmSave(ctx context.Context, id string) (*models.SessionView, error) {
	release, err := s.store.Lock(ctx, id, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, appErrors.ErrSessionBusy) {
			return nil, appErrors.ErrSaveInProgress
		}
		return nil, err
	}
	defer release()
	s.saving.Store(id, struct{}{})
	defer s.saving.Delete(id)

	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	desc, err := s.registry.Lookup(session.Entity)
	if err != nil {
		return nil, err
	}
	ed := changeset.Restore(*session, s.editorOptions()...)

	start := time.Now()
	saveErr := ed.ConfirmSave(ctx, func(ctx context.Context, draft models.Fields, recordID string) error {
		return s.backend.Update(ctx, desc.Path, recordID, s.normalize(desc.Name, draft))
	})
	if storeErr := s.store.Save(ctx, ed.Session()); storeErr != nil {
		s.logger.Error("failed to store session after save", zap.String("session_id", id), zap.Error(storeErr))
	}

	if saveErr != nil {
		if ed.Stage() == models.StageReviewingAll {
			s.metrics.ObserveSave(desc.Name, "failed", time.Since(start))
			s.logger.Warn("save failed",
				zap.String("session_id", id),
				zap.String("entity", desc.Name),
				zap.String("record_id", session.RecordID),
				zap.Error(saveErr),
			)
		}
		return nil, saveErr
	}
	s.metrics.ObserveSave(desc.Name, "saved", time.Since(start))
	s.metrics.ObserveStage(desc.Name, string(models.StageSaved))
	_ = s.cache.Invalidate(ctx, desc.Name)

	saved := ed.Session()
	s.publish(ctx, events.Event{
		Topic:     events.TopicRecordSaved,
		Entity:    desc.Name,
		RecordID:  saved.RecordID,
		RequestID: requestid.FromContext(ctx),
		Payload: SavedChangeSet{
			SessionID: saved.ID,
			Changes:   saved.Changes,
			Draft:     saved.Draft,
			SavedAt:   derefTime(saved.SavedAt),
		},
	})
	view := ed.View()
	return &view, nil
}

// Cancel discards the session. A session with a save in flight cannot be
// cancelled.
func (s *SessionService) Cancel(ctx context.Context, id string) error {
	release, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// lock claims the session for a non-save request. A held lock is reported as
// SAVE_IN_PROGRESS only when this instance is saving the session.
func (s *SessionService) lock(ctx context.Context, id string) (func(), error) {
	release, err := s.store.Lock(ctx, id, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, appErrors.ErrSessionBusy) {
			if _, saving := s.saving.Load(id); saving {
				return nil, appErrors.ErrSaveInProgress
			}
		}
		return nil, err
	}
	return release, nil
}

func (s *SessionService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("topic", event.Topic), zap.String("record_id", event.RecordID), zap.Error(err))
		return
	}
	s.metrics.ObserveEvent(event.Topic)
}

// normalize applies opt-in business rules to the outgoing draft. The stored
// draft is left untouched.
func (s *SessionService) normalize(entityName string, draft models.Fields) models.Fields {
	if entityName == "fee" && s.cfg.ClearFeeStatusWhenPaid {
		return ClearFeeStatusWhenPaid(draft)
	}
	return draft
}

// ClearFeeStatusWhenPaid blanks the payment status once the paid amount
// reaches the fee.
func ClearFeeStatusWhenPaid(draft models.Fields) models.Fields {
	amount, errAmount := strconv.ParseFloat(strings.TrimSpace(draft.Get("amount").Text), 64)
	fee, errFee := strconv.ParseFloat(strings.TrimSpace(draft.Get("feeAmount").Text), 64)
	if errAmount != nil || errFee != nil || amount < fee {
		return draft
	}
	out := draft.Clone()
	out["status"] = models.Text("")
	return out
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
