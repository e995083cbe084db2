package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", defaultPageLimit, 0},
		{"custom limit", "limit=20", 20, 0},
		{"custom offset", "offset=10", defaultPageLimit, 10},
		{"both", "limit=25&offset=5", 25, 5},
		{"limit exceeds max", "limit=5000", maxPageLimit, 0},
		{"negative limit uses default", "limit=-1", defaultPageLimit, 0},
		{"negative offset uses zero", "offset=-5", defaultPageLimit, 0},
		{"non-numeric", "limit=abc&offset=xyz", defaultPageLimit, 0},
		{"zero limit uses default", "limit=0", defaultPageLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/admin/members"
			if tt.query != "" {
				url += "?" + tt.query
			}
			limit, offset := parsePagination(httptest.NewRequest("GET", url, nil))
			assert.Equal(t, tt.wantLimit, limit, "limit")
			assert.Equal(t, tt.wantOffset, offset, "offset")
		})
	}
}

func TestPaginate(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	tests := []struct {
		name     string
		limit    int
		offset   int
		want     []int
		wantMore bool
	}{
		{"first page", 3, 0, []int{0, 1, 2}, true},
		{"middle page", 3, 3, []int{3, 4, 5}, true},
		{"last partial page", 3, 9, []int{9}, false},
		{"exact end", 5, 5, []int{5, 6, 7, 8, 9}, false},
		{"offset past end", 3, 50, []int{}, false},
		{"limit covers all", 100, 0, items, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, meta := paginate(items, tt.limit, tt.offset)
			assert.Equal(t, tt.want, page)
			assert.Equal(t, len(items), meta.TotalCount)
			assert.Equal(t, tt.limit, meta.Limit)
			assert.Equal(t, tt.offset, meta.Offset)
			assert.Equal(t, tt.wantMore, meta.HasMore)
		})
	}
}

func TestPaginateEmpty(t *testing.T) {
	page, meta := paginate([]string(nil), 10, 0)
	assert.NotNil(t, page)
	assert.Empty(t, page)
	assert.Zero(t, meta.TotalCount)
	assert.False(t, meta.HasMore)
}
