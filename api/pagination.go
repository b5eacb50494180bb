package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 100
	maxSessionPage   = 100
)

// PaginationMeta is embedded in paginated list responses.
type PaginationMeta struct {
	TotalCount int  `json:"total_count"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
}

// page is a limit/offset window over a list.
type page struct {
	Limit  int
	Offset int
}

// parsePage reads the "limit" and "offset" query parameters. Absent values
// default to defaultPageLimit and zero. A limit above maxLimit is capped;
// non-numeric or negative values are a bad request.
func parsePage(r *http.Request, maxLimit int) (page, error) {
	p := page{Limit: defaultPageLimit}
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return page{}, badRequest("limit must be a positive integer")
		}
		p.Limit = n
	}
	p.Limit = min(p.Limit, maxLimit)

	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page{}, badRequest("offset must be a non-negative integer")
		}
		p.Offset = n
	}
	return p, nil
}

// bounds returns the [start, end) indices of the page within total items.
// An offset past the end yields an empty page.
func (p page) bounds(total int) (start, end int) {
	start = min(p.Offset, total)
	end = min(start+p.Limit, total)
	return start, end
}

// meta describes a page that returned n of total items.
func (p page) meta(total, n int) PaginationMeta {
	return PaginationMeta{
		TotalCount: total,
		Limit:      p.Limit,
		Offset:     p.Offset,
		HasMore:    p.Offset+n < total,
	}
}
