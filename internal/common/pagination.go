package common

import (
	"net/http"
	"strconv"
)

const maxPerPage = 200

// Pagination is the "pagination" object of list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPagination fills in TotalPages from total.
func NewPagination(page, perPage int, total int64) Pagination {
	p := Pagination{Page: page, PerPage: perPage, TotalItems: int(total)}
	if perPage > 0 {
		p.TotalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return p
}

// ParsePagination reads ?page= and ?limit= (per_page is accepted too).
// Missing or non-positive values fall back to page 1 and defaultPerPage;
// limit is capped at 200.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	q := r.URL.Query()
	page = positive(q.Get("page"), 1)
	limit := q.Get("limit")
	if limit == "" {
		limit = q.Get("per_page")
	}
	perPage = min(positive(limit, defaultPerPage), maxPerPage)
	return page, perPage
}

func positive(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// Offset is the number of rows to skip for the given page.
func Offset(page, perPage int) int {
	return max(page-1, 0) * perPage
}
