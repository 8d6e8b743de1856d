package utils

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is one page of a list endpoint.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

// PageParams are normalized pagination inputs.
type PageParams struct {
	Page     int
	PageSize int
}

func NewPageParams(page, size int) PageParams {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return PageParams{Page: page, PageSize: size}
}

func (p PageParams) Offset() int { return (p.Page - 1) * p.PageSize }

func NewPage[T any](items []T, total int64, p PageParams) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	return Page[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize, TotalPages: pages}
}
