package pagination

import (
	"context"
	"fmt"
	"sort"
)

// Info carries the paging request. Limit <= 0 means unlimited; an empty
// Cursor starts from the beginning.
type Info struct {
	Limit  int
	Cursor string
}

// Unlimited requests the whole sequence.
var Unlimited = Info{}

// Result is one page. NextCursor is empty when no items remain.
type Result[T any] struct {
	Items      []T
	NextCursor string
}

// HasMore reports whether another page exists.
func (r Result[T]) HasMore() bool {
	return r.NextCursor != ""
}

// Source returns up to n items following the item keyed by after, in
// delivery order. An empty after means from the start; n <= 0 means all.
type Source[T any] func(ctx context.Context, after string, n int) ([]T, error)

// Paginate fetches one page from src.
//
// Parameters:
//   - ctx: Context for cancellation
//   - src: Sequence to page through
//   - key: Extracts the cursor key of an item
//   - info: Limit and cursor requested by the caller
//
// Returns:
//   - Result[T]: Items of the page and the cursor of the next one
//   - error: Whatever src returned
func Paginate[T any](ctx context.Context, src Source[T], key func(T) string, info Info) (Result[T], error) {
	if info.Limit <= 0 {
		items, err := src(ctx, info.Cursor, 0)
		if err != nil {
			return Result[T]{}, fmt.Errorf("fetching page: %w", err)
		}
		return Result[T]{Items: items}, nil
	}

	items, err := src(ctx, info.Cursor, info.Limit+1)
	if err != nil {
		return Result[T]{}, fmt.Errorf("fetching page: %w", err)
	}

	if len(items) <= info.Limit {
		return Result[T]{Items: items}, nil
	}

	items = items[:info.Limit]
	return Result[T]{
		Items:      items,
		NextCursor: key(items[len(items)-1]),
	}, nil
}

// Sorted pages through items ordered by key, returning those whose key is
// greater than the cursor. items is not modified.
func Sorted[T any](items []T, key func(T) string) Source[T] {
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return key(sorted[i]) < key(sorted[j]) })

	return func(_ context.Context, after string, n int) ([]T, error) {
		start := 0
		if after != "" {
			start = sort.Search(len(sorted), func(i int) bool { return key(sorted[i]) > after })
		}
		return take(sorted[start:], n), nil
	}
}

// Ordered pages through items in their stored order, resuming after the
// first item whose key equals the cursor. An unknown cursor restarts from
// the beginning.
func Ordered[T any](items []T, key func(T) string) Source[T] {
	return func(_ context.Context, after string, n int) ([]T, error) {
		start := 0
		if after != "" {
			for i, item := range items {
				if key(item) == after {
					start = i + 1
					break
				}
			}
		}
		return take(items[start:], n), nil
	}
}

// Filtered pages through items in their stored order, keeping those whose
// key is greater than the cursor.
func Filtered[T any](items []T, key func(T) string) Source[T] {
	return func(_ context.Context, after string, n int) ([]T, error) {
		var out []T
		for _, item := range items {
			if after != "" && key(item) <= after {
				continue
			}
			out = append(out, item)
			if n > 0 && len(out) == n {
				break
			}
		}
		return out, nil
	}
}

func take[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
