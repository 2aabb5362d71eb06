package dto

import "github.com/noah-isme/sma-admin-console/internal/models"

// CreateRecordRequest carries the fields of a new record.
type CreateRecordRequest struct {
	Fields map[string]interface{} `json:"fields" binding:"required"`
}

// ToFields converts decoded JSON scalars into field values.
func (r CreateRecordRequest) ToFields() models.Fields {
	return models.FieldsFromMap(r.Fields)
}

// RecordList is the list view payload.
type RecordList struct {
	Entity  models.EntityInfo `json:"entity"`
	Records []models.Row      `json:"records"`
}
