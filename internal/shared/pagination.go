package shared

// DefaultPerPage is the directory page size.
const DefaultPerPage = 10

// MaxPage bounds requested page numbers so offsets cannot overflow.
const MaxPage = 100_000

// ClampPage maps a requested page into [1, MaxPage].
func ClampPage(page int) int {
	switch {
	case page < 1:
		return 1
	case page > MaxPage:
		return MaxPage
	}
	return page
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata. Pages past the end are kept as
// requested, up to MaxPage, so callers render an empty page instead of failing.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page = ClampPage(page)
	totalPages := 0
	if total > 0 {
		totalPages = (total + perPage - 1) / perPage
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset returns the number of rows to skip for the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool {
	return p.Page > 1
}

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool {
	return p.Page < p.TotalPages
}

// PrevPage returns the previous page number.
func (p Pagination) PrevPage() int {
	return p.Page - 1
}

// NextPage returns the next page number.
func (p Pagination) NextPage() int {
	return p.Page + 1
}
