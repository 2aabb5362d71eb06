package models

// Column describes one list-view column.
type Column struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

// EntityInfo is the public description of a registered entity.
type EntityInfo struct {
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Columns    []Column `json:"columns"`
	Fields     []string `json:"fields"`
	FileFields []string `json:"fileFields,omitempty"`
}

// ListQuery captures list-view filtering, sorting, and paging.
type ListQuery struct {
	Search   string
	Filters  map[string]string
	Sort     string
	Order    string
	Page     int
	PageSize int
}

// Row is one projected list-view row.
type Row struct {
	ID     string            `json:"id"`
	Values map[string]string `json:"values"`
}

// Pagination represents paging metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
