package shared

// Pagination contains metadata for limit/offset listings.
type Pagination struct {
	Limit       int
	Offset      int
	HasMore     bool
	HasPrevious bool
}

// NewPagination normalizes limit/offset and computes paging flags. hasMore
// is derived from whether the store returned a row past the requested page.
func NewPagination(limit, offset int, hasMore bool) Pagination {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return Pagination{
		Limit:       limit,
		Offset:      offset,
		HasMore:     hasMore,
		HasPrevious: offset > 0,
	}
}
