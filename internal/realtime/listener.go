package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/Tetsu-is/crate-digger/internal/domain"
)

// Handlers react to changes. Any of them may be nil. They run one at a
// time on the listener's goroutine.
type Handlers struct {
	OnInsert func(Change)
	OnUpdate func(Change)
	OnDelete func(Change)
	OnError  func(error)
}

type ListenOptions struct {
	Filter Filter
	// Newest bounds inserts: one sorting before the returned time is not
	// new to the caller. A zero time admits every insert.
	Newest   func() time.Time
	Handlers Handlers
}

// Listener feeds filtered changes from one subscription to its handlers.
type Listener struct {
	sub  *Subscription
	opts ListenOptions
	stop chan struct{}
	once sync.Once
	done chan struct{}
}

// Listen subscribes and starts delivering. A failed subscribe is returned
// as a subscription error and no handler runs.
func Listen(ctx context.Context, s Subscriber, opts ListenOptions) (*Listener, error) {
	sub, err := s.Subscribe(ctx)
	if err != nil {
		return nil, domain.Subscription(err)
	}
	l := &Listener{
		sub:  sub,
		opts: opts,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.run(ctx)
	return l, nil
}

// Unsubscribe tears the listener down. Calling it again does nothing.
func (l *Listener) Unsubscribe() {
	l.once.Do(func() {
		close(l.stop)
		_ = l.sub.Close()
	})
}

// Done is closed when the listener stops for any reason.
func (l *Listener) Done() <-chan struct{} { return l.done }

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-l.stop:
			return
		case <-ctx.Done():
			l.Unsubscribe()
			return
		case err := <-l.sub.Err():
			l.drain()
			l.Unsubscribe()
			if l.opts.Handlers.OnError != nil {
				l.opts.Handlers.OnError(domain.Subscription(err))
			}
			return
		case c := <-l.sub.Events():
			select {
			case <-l.stop:
				return
			default:
			}
			l.dispatch(c)
		}
	}
}

// drain hands over changes that were buffered before a failure.
func (l *Listener) drain() {
	for {
		select {
		case c := <-l.sub.Events():
			l.dispatch(c)
		default:
			return
		}
	}
}

func (l *Listener) dispatch(c Change) {
	if l.opts.Filter != nil && !l.opts.Filter(c) {
		return
	}
	h := l.opts.Handlers
	switch c.Kind {
	case KindInsert:
		if l.opts.Newest != nil {
			if newest := l.opts.Newest(); !newest.IsZero() && c.SortKey.Before(newest) {
				return
			}
		}
		if h.OnInsert != nil {
			h.OnInsert(c)
		}
	case KindUpdate:
		if h.OnUpdate != nil {
			h.OnUpdate(c)
		}
	case KindDelete:
		if h.OnDelete != nil {
			h.OnDelete(c)
		}
	}
}
