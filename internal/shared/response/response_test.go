package response_test

import (
	"math"
	"testing"

	"izin-talep/internal/shared/response"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		name               string
		n, page, pageSize  int
		wantStart, wantEnd int
	}{
		{name: "first page", n: 45, page: 1, pageSize: 20, wantStart: 0, wantEnd: 20},
		{name: "last partial page", n: 45, page: 3, pageSize: 20, wantStart: 40, wantEnd: 45},
		{name: "exact last page", n: 40, page: 2, pageSize: 20, wantStart: 20, wantEnd: 40},
		{name: "past the end", n: 45, page: 4, pageSize: 20, wantStart: 45, wantEnd: 45},
		{name: "offset overflow", n: 45, page: math.MaxInt, pageSize: 20, wantStart: 45, wantEnd: 45},
		{name: "zero page treated as first", n: 5, page: 0, pageSize: 20, wantStart: 0, wantEnd: 5},
		{name: "empty collection", n: 0, page: 7, pageSize: 20, wantStart: 0, wantEnd: 0},
		{name: "invalid page size", n: 5, page: 1, pageSize: 0, wantStart: 0, wantEnd: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := response.Paginate(tt.n, tt.page, tt.pageSize)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestNewPaginationMeta(t *testing.T) {
	meta := response.NewPaginationMeta(45, 2, 20)
	assert.Equal(t, response.PaginationMeta{Total: 45, TotalPages: 3, Page: 2, PageSize: 20}, meta)
}
