package pagination

import (
	"math"
	"net/http"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps page*limit and the row offset within int.
	MaxPage = math.MaxInt / MaxLimit
)

// Metadata describes one page of a filtered result set. Total is the size
// of the whole set, not of the page.
type Metadata struct {
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// Page is an item list with its metadata kept alongside.
type Page[T any] struct {
	Items    []T      `json:"items"`
	Metadata Metadata `json:"metadata"`
}

// Normalize applies defaults and bounds to a requested page and limit.
func Normalize(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// Offset returns the number of rows to skip for page.
func Offset(page, limit int) int {
	page, limit = Normalize(page, limit)
	return (page - 1) * limit
}

// NewMetadata computes page metadata from the full result count.
func NewMetadata(total, page, limit int) Metadata {
	page, limit = Normalize(page, limit)
	totalPages := total / limit
	if total%limit > 0 {
		totalPages++
	}
	return Metadata{
		Total:       total,
		Page:        page,
		Limit:       limit,
		TotalPages:  totalPages,
		HasNextPage: page*limit < total,
		HasPrevPage: page > 1,
	}
}

// NewPage assembles a Page, never returning a nil item slice.
func NewPage[T any](items []T, total, page, limit int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Metadata: NewMetadata(total, page, limit)}
}

// FromRequest reads page and limit query parameters, ignoring malformed
// values.
func FromRequest(r *http.Request) (page, limit int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	return Normalize(page, limit)
}
