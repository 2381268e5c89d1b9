// Package paging windows any countable, offset-addressable listing into
// 1-based pages.
package paging

import (
	"context"
	"fmt"
	"math"
)

// DefaultSize is used when a caller asks for a non-positive page size.
const DefaultSize = 10

// Source is a listing that can be read by offset and counted.
type Source[T any] interface {
	List(ctx context.Context, offset, limit int) ([]T, error)
	Count(ctx context.Context) (int, error)
}

// Funcs adapts a pair of functions to Source.
type Funcs[T any] struct {
	ListFunc  func(ctx context.Context, offset, limit int) ([]T, error)
	CountFunc func(ctx context.Context) (int, error)
}

func (f Funcs[T]) List(ctx context.Context, offset, limit int) ([]T, error) {
	return f.ListFunc(ctx, offset, limit)
}

func (f Funcs[T]) Count(ctx context.Context) (int, error) {
	return f.CountFunc(ctx)
}

type Page[T any] struct {
	Items   []T
	Number  int
	Size    int
	Total   int
	HasMore bool
}

// Next returns the number of the following page.
func (p *Page[T]) Next() int {
	return p.Number + 1
}

// Fetch reads page number page of size items from src. Pages past the end
// come back empty with HasMore false.
func Fetch[T any](ctx context.Context, src Source[T], page, size int) (*Page[T], error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = DefaultSize
	}

	total, err := src.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count page source: %w", err)
	}

	p := &Page[T]{Number: page, Size: size, Total: total}
	// An offset that would overflow int is past any countable end.
	if page-1 > (math.MaxInt-1)/size {
		return p, nil
	}
	offset := (page - 1) * size
	if offset >= total {
		return p, nil
	}

	items, err := src.List(ctx, offset, size)
	if err != nil {
		return nil, fmt.Errorf("list page %d: %w", page, err)
	}
	p.Items = items
	p.HasMore = offset+len(items) < total
	return p, nil
}
