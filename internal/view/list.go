// Package view keeps client side lists in step with the backend: pages are
// fetched through a paginator, realtime changes are folded in, and user
// actions are applied optimistically.
package view

import (
	"context"
	"sync"
	"time"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/log"
	"github.com/Tetsu-is/crate-digger/internal/optimistic"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
)

// InsertPolicy is what a list does with a realtime insert newer than the
// items it holds.
type InsertPolicy int

const (
	// CountNew bumps a "new items" counter and leaves the list alone.
	CountNew InsertPolicy = iota
	// Prepend decodes the change and places it at the top.
	Prepend
	// Refetch reloads the first page.
	Refetch
)

type Options[T pagination.Item, P any] struct {
	Source pagination.Source[T, P]
	Pred   P
	Limit  int

	// Bus is optional; without it the list never updates on its own.
	Bus    realtime.Subscriber
	Filter realtime.Filter
	// FilterFor, when set, builds a fresh filter for every subscription and
	// takes precedence over Filter.
	FilterFor func(ctx context.Context) realtime.Filter
	OnInsert  InsertPolicy
	// Merge folds a realtime update into the stored item. nil replaces it.
	Merge func(stored, incoming T) T

	Coordinator *optimistic.Coordinator
}

// hooks let typed views keep derived counters in step with the list.
type hooks[T pagination.Item] struct {
	inserted func(item T, added bool)
	updated  func(old, cur T)
	removed  func(item T)
	bulk     func(c realtime.Change)
}

type Snapshot[T pagination.Item] struct {
	pagination.Snapshot[T]
	NewItems        int
	SubscriptionErr error
}

// List is one mounted list. Close unmounts it.
type List[T pagination.Item, P any] struct {
	opts  Options[T, P]
	state *pagination.PageState[T, P]
	coord *optimistic.Coordinator
	hooks hooks[T]

	mu       sync.Mutex
	ctx      context.Context
	listener *realtime.Listener
	newItems int
	subErr   error
	closed   bool
}

func NewList[T pagination.Item, P any](opts Options[T, P]) *List[T, P] {
	coord := opts.Coordinator
	if coord == nil {
		coord = optimistic.NewCoordinator()
	}
	return &List[T, P]{
		opts:  opts,
		state: pagination.NewState(pagination.New(opts.Source), opts.Pred, opts.Limit),
		coord: coord,
		ctx:   context.Background(),
	}
}

// Open subscribes to changes, then loads the first page. ctx bounds the
// subscription, so it should live as long as the view.
func (l *List[T, P]) Open(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return domain.ErrViewClosed
	}
	l.ctx = ctx
	l.mu.Unlock()

	if l.opts.Bus != nil {
		if err := l.subscribe(ctx); err != nil {
			return err
		}
	}
	return l.state.Refresh(ctx)
}

// Refresh reloads the first page and clears the new items counter.
func (l *List[T, P]) Refresh(ctx context.Context) error {
	l.mu.Lock()
	l.newItems = 0
	l.mu.Unlock()
	return l.state.Refresh(ctx)
}

func (l *List[T, P]) LoadMore(ctx context.Context) error {
	return l.state.LoadMore(ctx)
}

// Resubscribe replaces a listener torn down by a subscription error.
func (l *List[T, P]) Resubscribe(ctx context.Context) error {
	if l.opts.Bus == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return domain.ErrViewClosed
	}
	old := l.listener
	l.listener = nil
	l.subErr = nil
	l.ctx = ctx
	l.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}
	return l.subscribe(ctx)
}

func (l *List[T, P]) Snapshot() Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot[T]{
		Snapshot:        l.state.Snapshot(),
		NewItems:        l.newItems,
		SubscriptionErr: l.subErr,
	}
}

func (l *List[T, P]) Get(id string) (T, bool) { return l.state.Get(id) }

// Close unsubscribes and makes late fetch results a no-op. It is safe to
// call more than once.
func (l *List[T, P]) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	lst := l.listener
	l.listener = nil
	l.mu.Unlock()

	if lst != nil {
		lst.Unsubscribe()
	}
	l.state.Close()
}

func (l *List[T, P]) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// mutate runs an optimistic mutation unless the view is gone.
func (l *List[T, P]) mutate(ctx context.Context, m optimistic.Mutation) error {
	if l.isClosed() {
		return domain.ErrViewClosed
	}
	return l.coord.Do(ctx, m)
}

// insert places item in the list and tells the hooks whether it was new.
func (l *List[T, P]) insert(item T) {
	_, exists := l.state.Get(item.ItemID())
	l.state.Upsert(item)
	if l.hooks.inserted != nil {
		l.hooks.inserted(item, !exists)
	}
}

func (l *List[T, P]) subscribe(ctx context.Context) error {
	filter := l.opts.Filter
	if l.opts.FilterFor != nil {
		filter = l.opts.FilterFor(ctx)
	}
	lst, err := realtime.Listen(ctx, l.opts.Bus, realtime.ListenOptions{
		Filter: filter,
		Newest: l.newest,
		Handlers: realtime.Handlers{
			OnInsert: l.onInsert,
			OnUpdate: l.onUpdate,
			OnDelete: l.onDelete,
			OnError:  l.onError,
		},
	})
	if err != nil {
		l.mu.Lock()
		l.subErr = err
		l.mu.Unlock()
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		lst.Unsubscribe()
		return domain.ErrViewClosed
	}
	l.listener = lst
	return nil
}

func (l *List[T, P]) newest() time.Time {
	if c := l.state.Newest(); c != nil {
		return c.SortKey
	}
	return time.Time{}
}

func (l *List[T, P]) decode(c realtime.Change) (T, bool) {
	var item T
	if err := c.Decode(&item); err != nil {
		logger := log.L()
		logger.Warn().Err(err).Str("table", c.Table).Str("id", c.ID).Msg("undecodable change")
		return item, false
	}
	return item, true
}

func (l *List[T, P]) onInsert(c realtime.Change) {
	if l.isClosed() {
		return
	}
	switch l.opts.OnInsert {
	case CountNew:
		if _, ok := l.state.Get(c.ID); ok {
			return
		}
		l.mu.Lock()
		l.newItems++
		l.mu.Unlock()
	case Prepend:
		if !c.HasRecord() {
			l.refetch()
			return
		}
		if item, ok := l.decode(c); ok {
			l.insert(item)
		}
	case Refetch:
		l.refetch()
	}
}

func (l *List[T, P]) refetch() {
	l.mu.Lock()
	ctx := l.ctx
	l.mu.Unlock()
	if err := l.state.Refresh(ctx); err != nil {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).Msg("refetch after insert failed")
	}
}

func (l *List[T, P]) onUpdate(c realtime.Change) {
	if l.isClosed() {
		return
	}
	if c.ID == "" {
		if l.hooks.bulk != nil {
			l.hooks.bulk(c)
		}
		return
	}
	stored, ok := l.state.Get(c.ID)
	if !ok || !c.HasRecord() {
		return
	}
	incoming, ok := l.decode(c)
	if !ok {
		return
	}
	if l.opts.Merge != nil {
		incoming = l.opts.Merge(stored, incoming)
	}
	l.state.Upsert(incoming)
	if l.hooks.updated != nil {
		l.hooks.updated(stored, incoming)
	}
}

func (l *List[T, P]) onDelete(c realtime.Change) {
	if l.isClosed() {
		return
	}
	stored, ok := l.state.Get(c.ID)
	if !ok {
		return
	}
	if _, removed := l.state.Remove(c.ID); removed && l.hooks.removed != nil {
		l.hooks.removed(stored)
	}
}

func (l *List[T, P]) onError(err error) {
	l.mu.Lock()
	l.subErr = err
	l.listener = nil
	l.mu.Unlock()

	logger := log.L()
	logger.Warn().Err(err).Msg("list subscription ended")
}
