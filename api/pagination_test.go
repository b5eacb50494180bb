package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		query   string
		want    page
		wantErr bool
	}{
		{query: "", want: page{Limit: defaultPageLimit}},
		{query: "?limit=10&offset=20", want: page{Limit: 10, Offset: 20}},
		{query: "?limit=5000", want: page{Limit: 250}},
		{query: "?offset=0", want: page{Limit: defaultPageLimit}},
		{query: "?limit=0", wantErr: true},
		{query: "?limit=ten", wantErr: true},
		{query: "?offset=-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/sessions"+tt.query, nil)
			got, err := parsePage(r, 250)
			if tt.wantErr {
				assert.ErrorIs(t, err, errBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageBounds(t *testing.T) {
	p := page{Limit: 2, Offset: 3}
	start, end := p.bounds(4)
	assert.Equal(t, 3, start)
	assert.Equal(t, 4, end)
	assert.Equal(t, PaginationMeta{TotalCount: 4, Limit: 2, Offset: 3}, p.meta(4, end-start))

	p = page{Limit: 2, Offset: 10}
	start, end = p.bounds(4)
	assert.Equal(t, start, end)

	p = page{Limit: 2}
	start, end = p.bounds(5)
	assert.True(t, p.meta(5, end-start).HasMore)
}
