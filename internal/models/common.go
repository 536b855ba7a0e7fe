package models

// Pagination carries list metadata for collection endpoints.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NewPagination normalises page inputs the same way repositories do.
func NewPagination(page, pageSize, total int) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
