package shared

import (
	"net/http"
	"strconv"
)

// Pagination holds the sanitized limit/offset for a list endpoint.
type Pagination struct {
	Limit  int
	Offset int
}

func parseQueryInt(r *http.Request, key string, fallback, floor int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < floor {
		return fallback
	}
	return v
}

// ParsePagination reads limit and offset query params, falling back to
// defaultLimit and clamping to maxLimit. Malformed values are ignored.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	p := Pagination{
		Limit:  parseQueryInt(r, "limit", defaultLimit, 1),
		Offset: parseQueryInt(r, "offset", 0, 0),
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}
