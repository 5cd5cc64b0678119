package services

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// page clamps caller-supplied paging to sane bounds.
func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
