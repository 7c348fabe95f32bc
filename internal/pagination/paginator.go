package pagination

import (
	"context"

	"github.com/Tetsu-is/crate-digger/internal/domain"
)

// Source is the backing query: items matching pred, newest first, strictly
// older than before (nil for the first page), at most limit of them.
type Source[T Item, P any] interface {
	Page(ctx context.Context, pred P, before *Cursor, limit int) ([]T, error)
}

type SourceFunc[T Item, P any] func(ctx context.Context, pred P, before *Cursor, limit int) ([]T, error)

func (f SourceFunc[T, P]) Page(ctx context.Context, pred P, before *Cursor, limit int) ([]T, error) {
	return f(ctx, pred, before, limit)
}

type Page[T Item] struct {
	Items   []T
	Cursor  *Cursor
	HasMore bool
}

type Paginator[T Item, P any] struct {
	src Source[T, P]
}

func New[T Item, P any](src Source[T, P]) *Paginator[T, P] {
	return &Paginator[T, P]{src: src}
}

func (p *Paginator[T, P]) FetchInitial(ctx context.Context, pred P, limit int) (Page[T], error) {
	if limit <= 0 {
		return Page[T]{}, domain.ErrInvalidLimit
	}
	return p.fetch(ctx, pred, nil, limit)
}

// FetchMore returns the page after cursor. An exhausted store yields an
// empty page with HasMore false and the cursor left where it was.
func (p *Paginator[T, P]) FetchMore(ctx context.Context, pred P, cursor *Cursor, limit int) (Page[T], error) {
	if limit <= 0 {
		return Page[T]{}, domain.ErrInvalidLimit
	}
	if cursor == nil {
		return Page[T]{}, domain.ErrInvalidCursor
	}
	return p.fetch(ctx, pred, cursor, limit)
}

func (p *Paginator[T, P]) fetch(ctx context.Context, pred P, before *Cursor, limit int) (Page[T], error) {
	rows, err := p.src.Page(ctx, pred, before, limit)
	if err != nil {
		if domain.IsCoreError(err) {
			return Page[T]{}, err
		}
		return Page[T]{}, domain.Transient(err)
	}

	// hasMore is a page-size heuristic: a full page means "maybe more". An
	// exactly-full last page costs one extra empty fetch.
	hasMore := len(rows) == limit

	items := make([]T, 0, len(rows))
	for _, it := range rows {
		if before.Admits(it.SortKey(), it.ItemID()) {
			items = append(items, it)
		}
	}

	if len(items) == 0 {
		return Page[T]{Items: items, Cursor: before, HasMore: false}, nil
	}
	return Page[T]{
		Items:   items,
		Cursor:  CursorOf(items[len(items)-1]),
		HasMore: hasMore,
	}, nil
}
