// Package optimistic applies local state changes ahead of the remote write
// that confirms them, and undoes them when that write fails.
package optimistic

import (
	"context"
	"sync"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/log"
)

// Mutation is one user action against one entity.
//
// Apply changes local state and returns the func that restores the exact
// previous value, or nil when it changed nothing. Commit performs the
// remote write.
type Mutation struct {
	Entity string
	Action string
	Apply  func() (restore func())
	Commit func(ctx context.Context) error
}

// Coordinator runs mutations. At most one mutation per entity+action is in
// flight, and mutations of the same entity run one after another so each
// snapshot sees the outcome of the previous one.
type Coordinator struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	queues   map[string]*entityQueue
}

type entityQueue struct {
	slot chan struct{}
	refs int
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		inflight: make(map[string]struct{}),
		queues:   make(map[string]*entityQueue),
	}
}

// Do runs m to completion. On a failed commit local state is restored and
// the error is returned wrapped as transient unless it already has a kind.
func (c *Coordinator) Do(ctx context.Context, m Mutation) error {
	key, err := c.begin(m)
	if err != nil {
		return err
	}
	return c.run(ctx, m, key)
}

// Go applies m on the caller's goroutine and leaves only Commit to the
// background, so local state has changed by the time it returns. It waits
// while another mutation of the same entity holds the queue. The returned
// channel yields the outcome once.
func (c *Coordinator) Go(ctx context.Context, m Mutation) (<-chan error, error) {
	key, err := c.begin(m)
	if err != nil {
		return nil, err
	}
	release, err := c.acquire(ctx, m.Entity)
	if err != nil {
		c.end(key)
		return nil, err
	}

	restore := m.Apply()
	done := make(chan error, 1)
	go func() {
		err := c.commit(ctx, m, restore)
		release()
		c.end(key)
		done <- err
	}()
	return done, nil
}

// InFlight reports whether entity+action is currently being written.
func (c *Coordinator) InFlight(entity, action string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[entity+"/"+action]
	return ok
}

func (c *Coordinator) begin(m Mutation) (string, error) {
	key := m.Entity + "/" + m.Action
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inflight[key]; ok {
		return "", domain.ErrMutationInFlight
	}
	c.inflight[key] = struct{}{}
	return key, nil
}

func (c *Coordinator) end(key string) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
}

func (c *Coordinator) run(ctx context.Context, m Mutation, key string) error {
	defer c.end(key)

	release, err := c.acquire(ctx, m.Entity)
	if err != nil {
		return err
	}
	defer release()

	return c.commit(ctx, m, m.Apply())
}

// commit performs the remote write and restores local state if it fails.
func (c *Coordinator) commit(ctx context.Context, m Mutation, restore func()) error {
	err := m.Commit(ctx)
	if err == nil {
		return nil
	}
	if restore != nil {
		restore()
	}
	logger := log.Ctx(ctx)
	logger.Warn().Err(err).
		Str("entity", m.Entity).
		Str("action", m.Action).
		Msg("mutation rolled back")
	if domain.IsCoreError(err) {
		return err
	}
	return domain.Transient(err)
}

func (c *Coordinator) acquire(ctx context.Context, entity string) (func(), error) {
	c.mu.Lock()
	q, ok := c.queues[entity]
	if !ok {
		q = &entityQueue{slot: make(chan struct{}, 1)}
		c.queues[entity] = q
	}
	q.refs++
	c.mu.Unlock()

	drop := func() {
		c.mu.Lock()
		q.refs--
		if q.refs == 0 {
			delete(c.queues, entity)
		}
		c.mu.Unlock()
	}

	select {
	case q.slot <- struct{}{}:
	case <-ctx.Done():
		drop()
		return nil, ctx.Err()
	}
	return func() {
		<-q.slot
		drop()
	}, nil
}
