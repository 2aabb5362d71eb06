// Package changeset implements the edit confirmation workflow shared by every
// console edit form: a draft is diffed against the original record, the
// reviewer confirms the changed fields, then the complete record, and only then
// is the draft handed to a persistence function.
package changeset

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/sma-admin-console/internal/models"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
)

// SaveFunc persists a confirmed draft for the given record id. Any returned
// error is treated as a failed save.
type SaveFunc func(ctx context.Context, draft models.Fields, recordID string) error

// Option configures an Editor.
type Option func(*Editor)

// WithSaveTimeout bounds every save call. Zero waits indefinitely.
func WithSaveTimeout(d time.Duration) Option {
	return func(e *Editor) {
		if d > 0 {
			e.saveTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Editor) {
		if now != nil {
			e.now = now
		}
	}
}

// Editor drives one edit session through Editing, ReviewingChanges,
// ReviewingAll and Saved. It is safe for concurrent use.
type Editor struct {
	mu          sync.Mutex
	session     models.EditSession
	saveTimeout time.Duration
	now         func() time.Time
}

// Open starts a session in the Editing stage with a draft copied from the
// entity's fields.
func Open(sessionID, entityName string, entity models.Entity, opts ...Option) *Editor {
	e := newEditor(opts)
	record := entity.Fields()
	if record == nil {
		record = models.Fields{}
	}
	var fileFields []string
	if ff, ok := entity.(models.FileFielder); ok {
		fileFields = append(fileFields, ff.FileFields()...)
	}
	now := e.now()
	e.session = models.EditSession{
		ID:         sessionID,
		Entity:     entityName,
		RecordID:   entity.RecordID(),
		Record:     record.Clone(),
		Draft:      record.Clone(),
		FileFields: fileFields,
		Changes:    []models.FieldChange{},
		Stage:      models.StageEditing,
		OpenedAt:   now,
		UpdatedAt:  now,
	}
	return e
}

// Restore rebuilds an editor from a stored session.
func Restore(session models.EditSession, opts ...Option) *Editor {
	e := newEditor(opts)
	e.session = cloneSession(session)
	if e.session.Stage == "" {
		e.session.Stage = models.StageEditing
	}
	return e
}

func newEditor(opts []Option) *Editor {
	e := &Editor{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Session returns a copy of the current session state.
func (e *Editor) Session() models.EditSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSession(e.session)
}

// Stage returns the current stage.
func (e *Editor) Stage() models.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Stage
}

// Draft returns a copy of the draft.
func (e *Editor) Draft() models.Fields {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Draft.Clone()
}

// Changes returns the change list frozen by the last Submit.
func (e *Editor) Changes() []models.FieldChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.FieldChange(nil), e.session.Changes...)
}

// HasField reports whether key is one of the record's known fields.
func (e *Editor) HasField(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.session.Record[key]
	return ok
}

// IsFileField reports whether key holds a file.
func (e *Editor) IsFileField(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isFileField(key)
}

func (e *Editor) isFileField(key string) bool {
	for _, f := range e.session.FileFields {
		if f == key {
			return true
		}
	}
	return false
}

// SetField updates one draft field. It is a no-op outside Editing, for
// unknown keys, and for files assigned to non-file fields.
func (e *Editor) SetField(key string, value models.Value) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Stage != models.StageEditing {
		return false
	}
	if _, ok := e.session.Record[key]; !ok {
		return false
	}
	if value.IsFile() && !e.isFileField(key) {
		return false
	}
	if value.File != nil {
		ref := *value.File
		value.File = &ref
	}
	e.session.Draft[key] = value
	e.touch()
	return true
}

// Submit freezes a freshly computed change list and moves to ReviewingChanges.
func (e *Editor) Submit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Stage != models.StageEditing {
		return false
	}
	e.session.Changes = Diff(e.session.Draft, e.session.Record)
	e.session.Stage = models.StageReviewingChanges
	e.session.LastError = ""
	e.touch()
	return true
}

// CanConfirm reports whether ConfirmChanges would advance the session.
func (e *Editor) CanConfirm() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canConfirm()
}

func (e *Editor) canConfirm() bool {
	return e.session.Stage == models.StageReviewingChanges && len(e.session.Changes) > 0
}

// ConfirmChanges accepts the change list and moves to ReviewingAll. An empty
// change list leaves the stage untouched.
func (e *Editor) ConfirmChanges() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.canConfirm() {
		return false
	}
	e.session.Stage = models.StageReviewingAll
	e.touch()
	return true
}

// Back steps to the previous stage, leaving the draft as it is.
func (e *Editor) Back() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Saving {
		return false
	}
	switch e.session.Stage {
	case models.StageReviewingChanges:
		e.session.Stage = models.StageEditing
	case models.StageReviewingAll:
		e.session.Stage = models.StageReviewingChanges
	default:
		return false
	}
	e.session.LastError = ""
	e.touch()
	return true
}

// BackToEdit returns straight to Editing from either review stage.
func (e *Editor) BackToEdit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Saving {
		return false
	}
	switch e.session.Stage {
	case models.StageReviewingChanges, models.StageReviewingAll:
		e.session.Stage = models.StageEditing
		e.session.LastError = ""
		e.touch()
		return true
	default:
		return false
	}
}

// ConfirmSave hands the draft to save. On success the session becomes Saved;
// on failure it stays in ReviewingAll with a user-visible error so the user can
// retry or back out. Only one save may be pending at a time.
func (e *Editor) ConfirmSave(ctx context.Context, save SaveFunc) error {
	e.mu.Lock()
	if e.session.Stage != models.StageReviewingAll {
		e.mu.Unlock()
		return appErrors.Clone(appErrors.ErrInvalidStage, "changes must be confirmed before saving")
	}
	if e.session.Saving {
		e.mu.Unlock()
		return appErrors.ErrSaveInProgress
	}
	e.session.Saving = true
	e.session.LastError = ""
	draft := e.session.Draft.Clone()
	recordID := e.session.RecordID
	e.mu.Unlock()

	if e.saveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.saveTimeout)
		defer cancel()
	}
	err := save(ctx, draft, recordID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Saving = false
	e.touch()
	if err != nil {
		e.session.LastError = appErrors.ErrSaveFailed.Message
		return appErrors.WrapAs(appErrors.ErrSaveFailed, err, "")
	}
	savedAt := e.now()
	e.session.Stage = models.StageSaved
	e.session.SavedAt = &savedAt
	return nil
}

// View renders the session for its current stage.
func (e *Editor) View() models.SessionView {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	view := models.SessionView{
		ID:         s.ID,
		Entity:     s.Entity,
		RecordID:   s.RecordID,
		Stage:      s.Stage,
		Changes:    []models.FieldChangeView{},
		CanConfirm: e.canConfirm(),
		CanSave:    s.Stage == models.StageReviewingAll && !s.Saving,
		Saving:     s.Saving,
		Error:      s.LastError,
		UpdatedAt:  s.UpdatedAt,
	}
	switch s.Stage {
	case models.StageEditing:
		view.Fields = RenderFields(s.Draft, s.FileFields)
	case models.StageReviewingChanges:
		view.Changes = RenderChanges(s.Changes, s.FileFields)
	case models.StageReviewingAll, models.StageSaved:
		view.Changes = RenderChanges(s.Changes, s.FileFields)
		view.Fields = RenderFields(s.Draft, s.FileFields)
	}
	return view
}

func (e *Editor) touch() {
	e.session.UpdatedAt = e.now()
}

func cloneSession(s models.EditSession) models.EditSession {
	out := s
	out.Record = s.Record.Clone()
	out.Draft = s.Draft.Clone()
	out.FileFields = append([]string(nil), s.FileFields...)
	out.Changes = append([]models.FieldChange{}, s.Changes...)
	if s.SavedAt != nil {
		t := *s.SavedAt
		out.SavedAt = &t
	}
	return out
}
