package models

import (
	"encoding/json"
	"time"
)

// ChangeSetAudit records one confirmed and persisted change set.
type ChangeSetAudit struct {
	ID        string          `db:"id" json:"id"`
	SessionID string          `db:"session_id" json:"sessionId"`
	Entity    string          `db:"entity" json:"entity"`
	RecordID  string          `db:"record_id" json:"recordId"`
	Changes   json.RawMessage `db:"changes" json:"changes"`
	Draft     json.RawMessage `db:"draft" json:"draft"`
	RequestID string          `db:"request_id" json:"requestId,omitempty"`
	SavedAt   time.Time       `db:"saved_at" json:"savedAt"`
}

// AuditFilter constrains audit history queries.
type AuditFilter struct {
	Entity   string
	RecordID string
	Limit    int
	Offset   int
}
