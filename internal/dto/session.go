package dto

// OpenSessionRequest starts an edit session on one record.
type OpenSessionRequest struct {
	Entity   string `json:"entity" binding:"required"`
	RecordID string `json:"recordId" binding:"required"`
}

// SetFieldRequest assigns either a text value or a previously uploaded file.
type SetFieldRequest struct {
	Value  *string `json:"value"`
	FileID string  `json:"fileId"`
}
