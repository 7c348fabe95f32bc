package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/Tetsu-is/crate-digger/internal/domain"
)

// ErrOverflow is reported to a subscriber that stopped keeping up.
var ErrOverflow = errors.New("realtime: subscriber buffer full")

const subscriptionBuffer = 256

type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

type Subscriber interface {
	Subscribe(ctx context.Context) (*Subscription, error)
}

// Bus is the injected publish/subscribe channel between writers and views.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// Subscription delivers changes until it is closed or fails. A failure is
// sent once on Err and then the subscription closes itself.
type Subscription struct {
	events chan Change
	errs   chan error
	done   chan struct{}
	once   sync.Once
	stop   func()
}

func newSubscription(stop func()) *Subscription {
	return &Subscription{
		events: make(chan Change, subscriptionBuffer),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
		stop:   stop,
	}
}

func (s *Subscription) Events() <-chan Change { return s.events }

func (s *Subscription) Err() <-chan error { return s.errs }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close is safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.stop != nil {
			s.stop()
		}
	})
	return nil
}

func (s *Subscription) deliver(c Change) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- c:
		return true
	default:
		s.fail(ErrOverflow)
		return false
	}
}

func (s *Subscription) fail(err error) {
	select {
	case s.errs <- domain.Subscription(err):
	default:
	}
	_ = s.Close()
}

// MemoryBus fans changes out within the process.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[*Subscription]struct{})}
}

func (b *MemoryBus) Publish(_ context.Context, c Change) error {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.deliver(c)
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, domain.Subscription(errors.New("bus closed"))
	}
	var sub *Subscription
	sub = newSubscription(func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	})
	b.subs[sub] = struct{}{}
	return sub, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for s := range subs {
		s.fail(errors.New("bus closed"))
	}
	return nil
}
