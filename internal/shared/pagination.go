package shared

import (
	"fmt"
	"strings"
)

// Sort orders accepted by list endpoints.
const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

// Page size bounds for list endpoints.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// PageRequest carries pagination and sorting parameters for list endpoints.
// Sort must come from the endpoint's fixed sort-field set.
type PageRequest struct {
	Page  int
	Size  int
	Sort  string
	Order string
}

// Normalize clamps page and size, validates the sort field against the
// allowed set (mapping it to its storage column) and the sort order.
func (p PageRequest) Normalize(allowedSorts map[string]string, defaultSort string) (PageRequest, string, error) {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Sort == "" {
		p.Sort = defaultSort
	}
	column, ok := allowedSorts[strings.ToUpper(strings.TrimSpace(p.Sort))]
	if !ok {
		return PageRequest{}, "", fmt.Errorf("unknown sort field %q", p.Sort)
	}
	switch strings.ToUpper(strings.TrimSpace(p.Order)) {
	case "", OrderAsc:
		p.Order = OrderAsc
	case OrderDesc:
		p.Order = OrderDesc
	default:
		return PageRequest{}, "", fmt.Errorf("unknown sort order %q", p.Order)
	}
	return p, column, nil
}

// Offset returns the row offset for the normalized request.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Size
}

// PagingInfo describes the window returned by a paged listing.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// NewPagingInfo computes paging metadata for a window fetched with size+1 rows.
func NewPagingInfo(page, size int, hasNext bool) PagingInfo {
	info := PagingInfo{Page: page, PageSize: size, HasNext: hasNext}
	if page > 1 {
		info.PrevPage = page - 1
	}
	if hasNext {
		info.NextPage = page + 1
	}
	return info
}
