package paginator

import (
	"context"
	"fmt"

	"github.com/paulexconde/surveysense/internal/pkg/store"
)

const defaultLimit = 10

// PaginatedResponse is one page of a query result. TotalItems counts every
// matching row, Items holds the rows of this page only.
type PaginatedResponse[T any] struct {
	Items       []T  `json:"items"`
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	PrevPage    *int `json:"prev_page"`
	NextPage    *int `json:"next_page"`
	TotalItems  int  `json:"total_items"`
}

// Count is the number of rows matching the query across all pages.
func (r *PaginatedResponse[T]) Count() int { return r.TotalItems }

// Size is the number of rows on this page.
func (r *PaginatedResponse[T]) Size() int { return len(r.Items) }

type Paginator[T any] interface {
	// PaginateQuery runs query one page at a time. The query uses '?'
	// placeholders and must not carry its own LIMIT or OFFSET.
	PaginateQuery(ctx context.Context, query string, args []any, page, limit int) (*PaginatedResponse[T], error)
}

type paginatorImpl[T any] struct {
	datastore store.Datastorer[T]
}

func NewPaginator[T any](ds store.Datastorer[T]) Paginator[T] {
	return &paginatorImpl[T]{datastore: ds}
}

// window is a normalized page request.
type window struct {
	page, limit int
}

func newWindow(page, limit int) window {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	return window{page: page, limit: limit}
}

func (w window) offset() int { return (w.page - 1) * w.limit }

func (w window) pages(total int) int { return (total + w.limit - 1) / w.limit }

func (p *paginatorImpl[T]) PaginateQuery(ctx context.Context, query string, args []any, page, limit int) (*PaginatedResponse[T], error) {
	w := newWindow(page, limit)

	total, err := p.countRows(ctx, query, args)
	if err != nil {
		return nil, err
	}

	pageArgs := make([]any, 0, len(args)+2)
	pageArgs = append(pageArgs, args...)
	pageArgs = append(pageArgs, w.limit, w.offset())

	items, err := p.datastore.Select(ctx, query+" LIMIT ? OFFSET ?", pageArgs...)
	if err != nil {
		return nil, err
	}

	res := &PaginatedResponse[T]{
		Items:       items,
		CurrentPage: w.page,
		TotalPages:  w.pages(total),
		TotalItems:  total,
	}
	if w.page > 1 {
		res.PrevPage = pageRef(w.page - 1)
	}
	if w.page < res.TotalPages {
		res.NextPage = pageRef(w.page + 1)
	}
	return res, nil
}

func (p *paginatorImpl[T]) countRows(ctx context.Context, query string, args []any) (int, error) {
	raw, err := p.datastore.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS total_count", query), args...)
	if err != nil {
		return 0, err
	}

	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	}
	return 0, fmt.Errorf("expected an integer row count, got %T", raw)
}

func pageRef(n int) *int { return &n }
