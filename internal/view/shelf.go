package view

import (
	"context"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/optimistic"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
	"github.com/Tetsu-is/crate-digger/internal/social"
)

type ShelfActions interface {
	AddEntry(ctx context.Context, userID string, kind domain.EntryKind, req domain.AddEntryRequest) (*domain.CollectionEntry, bool, error)
	RemoveEntry(ctx context.Context, userID, entryID string) (*domain.CollectionEntry, error)
	MoveToCollection(ctx context.Context, userID, entryID string) (*domain.CollectionEntry, error)
}

type ShelfConfig struct {
	Query   social.ShelfQuery
	Source  pagination.Source[domain.CollectionEntry, social.ShelfQuery]
	Actions ShelfActions
	Limit   int

	Bus         realtime.Subscriber
	Coordinator *optimistic.Coordinator
}

// Shelf is a user's collection or wishlist.
type Shelf struct {
	*List[domain.CollectionEntry, social.ShelfQuery]
	query   social.ShelfQuery
	actions ShelfActions
}

func NewShelf(cfg ShelfConfig) *Shelf {
	return &Shelf{
		List: NewList(Options[domain.CollectionEntry, social.ShelfQuery]{
			Source: cfg.Source,
			Pred:   cfg.Query,
			Limit:  cfg.Limit,
			Bus:    cfg.Bus,
			Filter: realtime.Match(realtime.TableCollection, map[string]string{
				realtime.ScopeUserID: cfg.Query.UserID,
				realtime.ScopeKind:   string(cfg.Query.Kind),
			}),
			OnInsert:    Prepend,
			Coordinator: cfg.Coordinator,
		}),
		query:   cfg.Query,
		actions: cfg.Actions,
	}
}

func (s *Shelf) Add(ctx context.Context, req domain.AddEntryRequest) (*domain.CollectionEntry, error) {
	if s.isClosed() {
		return nil, domain.ErrViewClosed
	}
	entry, _, err := s.actions.AddEntry(ctx, s.query.UserID, s.query.Kind, req)
	if err != nil {
		return nil, err
	}
	s.insert(*entry)
	return entry, nil
}

// Remove takes the record off the shelf at once.
func (s *Shelf) Remove(ctx context.Context, entryID string) error {
	return s.takeOff(ctx, entryID, "remove", func(ctx context.Context) error {
		_, err := s.actions.RemoveEntry(ctx, s.query.UserID, entryID)
		return err
	})
}

// MoveToCollection moves a wishlist record into the collection. It leaves
// this view at once; the collection view picks it up from the change stream.
func (s *Shelf) MoveToCollection(ctx context.Context, entryID string) error {
	if s.query.Kind != domain.KindWishlist {
		return domain.ErrInvalidKind
	}
	return s.takeOff(ctx, entryID, "move", func(ctx context.Context) error {
		_, err := s.actions.MoveToCollection(ctx, s.query.UserID, entryID)
		return err
	})
}

func (s *Shelf) takeOff(ctx context.Context, entryID, action string, commit func(context.Context) error) error {
	return s.mutate(ctx, optimistic.Mutation{
		Entity: "entry:" + entryID,
		Action: action,
		Apply: func() func() {
			restore, _ := s.state.Remove(entryID)
			return restore
		},
		Commit: commit,
	})
}
