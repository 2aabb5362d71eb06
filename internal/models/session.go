package models

import "time"

// Stage is the position of an edit session in the confirmation wizard.
type Stage string

const (
	StageEditing          Stage = "EDITING"
	StageReviewingChanges Stage = "REVIEWING_CHANGES"
	StageReviewingAll     Stage = "REVIEWING_ALL"
	StageSaved            Stage = "SAVED"
)

// Review placeholders for file-valued fields.
const (
	CurrentFilePlaceholder = "Current Photo"
	NewFilePlaceholder     = "New Photo"
)

// FieldChange is a single before/after pair surfaced during review.
type FieldChange struct {
	Key      string `json:"key"`
	OldValue Value  `json:"oldValue"`
	NewValue Value  `json:"newValue"`
}

// EditSession is the persisted state of one edit-then-confirm-then-save interaction.
type EditSession struct {
	ID         string        `json:"id"`
	Entity     string        `json:"entity"`
	RecordID   string        `json:"recordId"`
	Record     Fields        `json:"record"`
	Draft      Fields        `json:"draft"`
	FileFields []string      `json:"fileFields,omitempty"`
	Changes    []FieldChange `json:"changes"`
	Stage      Stage         `json:"stage"`
	Saving     bool          `json:"saving"`
	LastError  string        `json:"lastError,omitempty"`
	OpenedAt   time.Time     `json:"openedAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
	SavedAt    *time.Time    `json:"savedAt,omitempty"`
}

// FieldView is one rendered draft field.
type FieldView struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	File  bool   `json:"file,omitempty"`
}

// FieldChangeView is one rendered change.
type FieldChangeView struct {
	Key      string `json:"key"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
}

// SessionView is what the console renders for the current stage.
type SessionView struct {
	ID         string            `json:"id"`
	Entity     string            `json:"entity"`
	RecordID   string            `json:"recordId"`
	Stage      Stage             `json:"stage"`
	Fields     []FieldView       `json:"fields,omitempty"`
	Changes    []FieldChangeView `json:"changes"`
	CanConfirm bool              `json:"canConfirm"`
	CanSave    bool              `json:"canSave"`
	Saving     bool              `json:"saving"`
	Error      string            `json:"error,omitempty"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}
