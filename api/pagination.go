package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// PaginationMeta accompanies every paginated list response.
type PaginationMeta struct {
	TotalCount int  `json:"totalCount"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"hasMore"`
}

// parsePagination reads the limit and offset query parameters. Missing,
// non-numeric and non-positive values fall back to the defaults; limit is
// capped at maxPageLimit.
func parsePagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()

	limit = defaultPageLimit
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = min(n, maxPageLimit)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		offset = n
	}
	return limit, offset
}

// paginate returns the requested window of items. An offset past the end
// yields an empty, non-nil page.
func paginate[T any](items []T, limit, offset int) ([]T, PaginationMeta) {
	total := len(items)
	start := min(offset, total)
	end := min(start+limit, total)
	page := make([]T, 0, end-start)
	page = append(page, items[start:end]...)
	return page, PaginationMeta{
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    end < total,
	}
}
