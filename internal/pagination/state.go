package pagination

import (
	"context"
	"slices"
	"sync"

	"github.com/Tetsu-is/crate-digger/internal/domain"
)

// ErrClosed is returned once the owning view has gone away.
var ErrClosed = domain.ErrViewClosed

// Snapshot is a consistent copy of a PageState.
type Snapshot[T Item] struct {
	Items       []T
	Cursor      *Cursor
	HasMore     bool
	Loading     bool
	LoadingMore bool
	Err         error
}

// PageState holds the accumulated pages of one list as shown by a view.
// Results that arrive after Close, or after a newer Refresh, are dropped.
type PageState[T Item, P any] struct {
	pag   *Paginator[T, P]
	pred  P
	limit int

	mu          sync.Mutex
	items       []T
	cursor      *Cursor
	hasMore     bool
	loading     bool
	loadingMore bool
	err         error
	closed      bool
	gen         uint64
}

func NewState[T Item, P any](pag *Paginator[T, P], pred P, limit int) *PageState[T, P] {
	return &PageState[T, P]{pag: pag, pred: pred, limit: limit}
}

func (s *PageState[T, P]) Predicate() P { return s.pred }

// Refresh replaces the list with a fresh first page. On error the current
// items are kept and the error is recorded for a retry.
func (s *PageState[T, P]) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	s.loading = true
	s.loadingMore = false
	s.err = nil
	s.mu.Unlock()

	page, err := s.pag.FetchInitial(ctx, s.pred, s.limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if gen != s.gen {
		return nil
	}
	s.loading = false
	if err != nil {
		s.err = err
		return err
	}
	s.items = page.Items
	s.cursor = page.Cursor
	s.hasMore = page.HasMore
	return nil
}

// LoadMore appends the next page. It is a no-op when the list is exhausted
// or not yet loaded, and rejects a second call while one is in flight.
func (s *PageState[T, P]) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.loadingMore || s.loading {
		s.mu.Unlock()
		return domain.ErrFetchInFlight
	}
	if !s.hasMore || s.cursor == nil {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	cursor := s.cursor
	s.loadingMore = true
	s.err = nil
	s.mu.Unlock()

	page, err := s.pag.FetchMore(ctx, s.pred, cursor, s.limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if gen != s.gen {
		return nil
	}
	s.loadingMore = false
	if err != nil {
		s.err = err
		return err
	}
	s.items = merge(s.items, page.Items)
	s.cursor = page.Cursor
	s.hasMore = page.HasMore
	return nil
}

// Upsert inserts item at its ordered position, or replaces the entry with
// the same id.
func (s *PageState[T, P]) Upsert(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.items = merge(s.items, []T{item})
}

// Remove drops the item with id and returns a func that puts it back.
func (s *PageState[T, P]) Remove(id string) (restore func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.items, func(it T) bool { return it.ItemID() == id })
	if idx < 0 {
		return func() {}, false
	}
	removed := s.items[idx]
	s.items = slices.Delete(s.items, idx, idx+1)
	return func() { s.Upsert(removed) }, true
}

// Update applies fn to the item with id in place and returns a func that
// restores the previous value.
func (s *PageState[T, P]) Update(id string, fn func(*T)) (restore func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.items, func(it T) bool { return it.ItemID() == id })
	if idx < 0 {
		return func() {}, false
	}
	prev := s.items[idx]
	next := prev
	fn(&next)
	s.items[idx] = next
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if i := slices.IndexFunc(s.items, func(it T) bool { return it.ItemID() == id }); i >= 0 {
			s.items[i] = prev
		}
	}, true
}

func (s *PageState[T, P]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ItemID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Newest returns the sort key bound of the first item, nil when empty.
func (s *PageState[T, P]) Newest() *Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil
	}
	return CursorOf(s.items[0])
}

func (s *PageState[T, P]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot[T]{
		Items:       slices.Clone(s.items),
		Cursor:      s.cursor,
		HasMore:     s.hasMore,
		Loading:     s.loading,
		LoadingMore: s.loadingMore,
		Err:         s.err,
	}
}

func (s *PageState[T, P]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *PageState[T, P]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// merge folds incoming into existing. Items with a known id replace the
// stored copy; the result stays ordered newest first.
func merge[T Item](existing, incoming []T) []T {
	pos := make(map[string]int, len(existing))
	out := slices.Clone(existing)
	for i, it := range out {
		pos[it.ItemID()] = i
	}
	for _, it := range incoming {
		if i, ok := pos[it.ItemID()]; ok {
			out[i] = it
			continue
		}
		pos[it.ItemID()] = len(out)
		out = append(out, it)
	}
	slices.SortStableFunc(out, func(a, b T) int {
		switch {
		case Less(a, b):
			return -1
		case Less(b, a):
			return 1
		}
		return 0
	})
	return out
}
