package social

import (
	"context"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
)

// ShelfQuery selects one user's collection or wishlist.
type ShelfQuery struct {
	UserID string
	Kind   domain.EntryKind
}

// AddEntry puts an album on a shelf. Adding it twice returns the first entry.
func (s *Service) AddEntry(ctx context.Context, userID string, kind domain.EntryKind, req domain.AddEntryRequest) (*domain.CollectionEntry, bool, error) {
	if !kind.Valid() {
		return nil, false, domain.ErrInvalidKind
	}
	if req.AlbumID == "" {
		return nil, false, domain.ErrEmptyQuery
	}
	id, err := newID()
	if err != nil {
		return nil, false, err
	}
	return s.collections.AddEntry(ctx, domain.CollectionEntry{
		ID:       id,
		UserID:   userID,
		Kind:     kind,
		AlbumID:  req.AlbumID,
		Title:    req.Title,
		Artist:   req.Artist,
		CoverURL: req.CoverURL,
	})
}

func (s *Service) RemoveEntry(ctx context.Context, userID, entryID string) (*domain.CollectionEntry, error) {
	if entryID == "" {
		return nil, domain.ErrEmptyQuery
	}
	return s.collections.RemoveEntry(ctx, entryID, userID)
}

// MoveToCollection marks a wishlist album as owned.
func (s *Service) MoveToCollection(ctx context.Context, userID, entryID string) (*domain.CollectionEntry, error) {
	if entryID == "" {
		return nil, domain.ErrEmptyQuery
	}
	return s.collections.MoveToCollection(ctx, entryID, userID)
}

func (s *Service) Shelf(ctx context.Context, q ShelfQuery, before *pagination.Cursor, limit int) ([]domain.CollectionEntry, error) {
	if q.UserID == "" {
		return nil, domain.ErrEmptyQuery
	}
	if !q.Kind.Valid() {
		return nil, domain.ErrInvalidKind
	}
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	return s.collections.ListEntries(ctx, q.UserID, q.Kind, before, limit)
}

func (s *Service) ShelfSource() pagination.Source[domain.CollectionEntry, ShelfQuery] {
	return pagination.SourceFunc[domain.CollectionEntry, ShelfQuery](s.Shelf)
}
