package crud

import (
	"fmt"
	"strings"

	"counselflow.org/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Query carries the list parameters every resource accepts: page/pageSize,
// a free-text search term, field filters and a sort column.
type Query struct {
	Page     int
	PageSize int
	Search   string
	Sort     string
	SortDesc bool
	Filters  map[string]string
}

func (q Query) page() int {
	if q.Page < 1 {
		return 1
	}
	return q.Page
}

func (q Query) pageSize() int {
	if q.PageSize < 1 {
		return defaultPageSize
	}
	if q.PageSize > maxPageSize {
		return maxPageSize
	}
	return q.PageSize
}

func (q Query) offset() int {
	return (q.page() - 1) * q.pageSize()
}

// Whitelist restricts which columns a resource exposes to search, sort and
// filter parameters.
type Whitelist struct {
	Searchable []string
	Sortable   []string
	Filterable []string
}

func (w Whitelist) sortable(col string) bool   { return contains(w.Sortable, col) }
func (w Whitelist) filterable(col string) bool { return contains(w.Filterable, col) }

func contains(cols []string, col string) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}

// filterClause translates a filter value into an operator and argument.
// Values are plain equality unless prefixed with gte:, lte: or ne:.
func filterClause(col, value string) (string, any, error) {
	op := "="
	switch {
	case strings.HasPrefix(value, "gte:"):
		op, value = ">=", strings.TrimPrefix(value, "gte:")
	case strings.HasPrefix(value, "lte:"):
		op, value = "<=", strings.TrimPrefix(value, "lte:")
	case strings.HasPrefix(value, "ne:"):
		op, value = "!=", strings.TrimPrefix(value, "ne:")
	}
	if strings.TrimSpace(value) == "" {
		return "", nil, fmt.Errorf("%w: empty filter value for %s", domain.ErrInvalidInput, col)
	}
	return fmt.Sprintf("%s %s ?", col, op), value, nil
}

// Page is the uniform paged response shape.
type Page[T any] struct {
	Items    []*T `json:"items"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
}
