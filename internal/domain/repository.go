// Package domain holds types shared by the domain packages.
package domain

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search matches name or code (case-insensitive substring)
	Search string

	// IncludeArchived includes records with is_active = false
	IncludeArchived bool

	// OrderBy specifies sorting (e.g., "name", "-created_at")
	OrderBy string

	Limit  int
	Offset int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   DefaultPageSize,
		OrderBy: "name",
	}
}

// Normalize clamps pagination to the supported range.
func (f ListFilter) Normalize() ListFilter {
	f.Limit, f.Offset = NormalizePage(f.Limit, f.Offset)
	return f
}

// NormalizePage clamps a limit/offset pair.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// Page is the pagination part of history queries.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps pagination to the supported range.
func (p Page) Normalize() Page {
	p.Limit, p.Offset = NormalizePage(p.Limit, p.Offset)
	return p
}
