package shared

// Filter represents query filter options
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// DefaultFilter returns a filter with default values
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// WithPagination sets the page and page size
func (f Filter) WithPagination(page, pageSize int) Filter {
	f.Page = page
	f.PageSize = pageSize
	return f
}

// WithOrder sets the ordering column and direction
func (f Filter) WithOrder(orderBy, orderDir string) Filter {
	f.OrderBy = orderBy
	f.OrderDir = orderDir
	return f
}
