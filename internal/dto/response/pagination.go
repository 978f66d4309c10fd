package response

import "hostel-booking/internal/dto/request"

type PaginatedResponse[T any] struct {
	Data       []T            `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

type PaginationMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// NewPaginatedResponse describes one page of total rows. An empty page is
// encoded as [] rather than null.
func NewPaginatedResponse[T any](data []T, page request.PaginatedRequest, total int64) *PaginatedResponse[T] {
	if data == nil {
		data = []T{}
	}

	perPage := page.Limit()
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	current := page.Page
	if current < 1 {
		current = 1
	}

	return &PaginatedResponse[T]{
		Data: data,
		Pagination: PaginationMeta{
			Total:      total,
			Page:       current,
			PerPage:    perPage,
			TotalPages: totalPages,
			HasNext:    current < totalPages,
		},
	}
}
