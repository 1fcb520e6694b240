// Package domain provides the types shared by the inventory, procedure and billing
// packages: list filters, paginated results and lifecycle hooks.
package domain

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search matches name/code fields (case-insensitive substring)
	Search string

	// Pagination
	Limit  int
	Offset int
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{Limit: DefaultLimit}
}

// Normalize clamps pagination into the allowed range.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// Paginate applies offset/limit to an already filtered and ordered slice.
// In-memory repositories use it to produce the same shape as SQL LIMIT/OFFSET.
func Paginate[T any](all []T, f ListFilter) ListResult[T] {
	f.Normalize()
	res := ListResult[T]{TotalCount: int64(len(all)), Limit: f.Limit, Offset: f.Offset, Items: []T{}}
	if f.Offset >= len(all) {
		return res
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	res.Items = all[f.Offset:end]
	return res
}
