// Package memstore is an in-process backend with the same method set as the
// Postgres repositories. Every write is published as a realtime change.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/log"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
)

type edgeKey struct{ follower, following string }

type Store struct {
	mu  sync.RWMutex
	pub realtime.Publisher

	last time.Time

	users     map[string]domain.User
	names     map[string]string
	passwords map[string][]byte
	edges     map[edgeKey]domain.FollowEdge
	posts     map[string]domain.Post
	likes     map[string]map[string]time.Time
	comments  map[string]domain.Comment
	entries   map[string]domain.CollectionEntry
	notifs    map[string]domain.Notification
}

// New returns an empty store. pub may be nil.
func New(pub realtime.Publisher) *Store {
	return &Store{
		pub:       pub,
		users:     make(map[string]domain.User),
		names:     make(map[string]string),
		passwords: make(map[string][]byte),
		edges:     make(map[edgeKey]domain.FollowEdge),
		posts:     make(map[string]domain.Post),
		likes:     make(map[string]map[string]time.Time),
		comments:  make(map[string]domain.Comment),
		entries:   make(map[string]domain.CollectionEntry),
		notifs:    make(map[string]domain.Notification),
	}
}

// now hands out strictly increasing timestamps at Postgres precision.
// Callers hold s.mu.
func (s *Store) now() time.Time {
	t := time.Now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Store) emit(ctx context.Context, changes ...realtime.Change) {
	if s.pub == nil {
		return
	}
	for _, c := range changes {
		if err := s.pub.Publish(ctx, c); err != nil {
			logger := log.Ctx(ctx)
			logger.Warn().Err(err).Str("table", c.Table).Msg("failed to publish change")
		}
	}
}

// page sorts items newest first and cuts the slice after before.
func page[T pagination.Item](items []T, before *pagination.Cursor, limit int) []T {
	slices.SortFunc(items, func(a, b T) int {
		switch {
		case pagination.Less(a, b):
			return -1
		case pagination.Less(b, a):
			return 1
		}
		return 0
	})
	out := make([]T, 0, min(limit, len(items)))
	for _, it := range items {
		if !before.Admits(it.SortKey(), it.ItemID()) {
			continue
		}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}
