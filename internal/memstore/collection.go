package memstore

import (
	"context"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
)

func entryChange(kind realtime.Kind, e domain.CollectionEntry) realtime.Change {
	return realtime.NewChange(realtime.TableCollection, kind, e.ID, e.CreatedAt, map[string]string{
		realtime.ScopeUserID: e.UserID,
		realtime.ScopeKind:   string(e.Kind),
	}, e)
}

// Callers hold s.mu.
func (s *Store) findEntry(userID string, kind domain.EntryKind, albumID string) (domain.CollectionEntry, bool) {
	for _, e := range s.entries {
		if e.UserID == userID && e.Kind == kind && e.AlbumID == albumID {
			return e, true
		}
	}
	return domain.CollectionEntry{}, false
}

func (s *Store) AddEntry(ctx context.Context, e domain.CollectionEntry) (*domain.CollectionEntry, bool, error) {
	s.mu.Lock()
	if _, ok := s.users[e.UserID]; !ok {
		s.mu.Unlock()
		return nil, false, domain.ErrUserNotFound
	}
	if existing, ok := s.findEntry(e.UserID, e.Kind, e.AlbumID); ok {
		s.mu.Unlock()
		return &existing, false, nil
	}
	e.CreatedAt = s.now()
	s.entries[e.ID] = e
	s.mu.Unlock()

	s.emit(ctx, entryChange(realtime.KindInsert, e))
	return &e, true, nil
}

func (s *Store) RemoveEntry(ctx context.Context, entryID, userID string) (*domain.CollectionEntry, error) {
	s.mu.Lock()
	e, ok := s.entries[entryID]
	if !ok || e.UserID != userID {
		s.mu.Unlock()
		return nil, domain.ErrEntryNotFound
	}
	delete(s.entries, entryID)
	s.mu.Unlock()

	s.emit(ctx, entryChange(realtime.KindDelete, e))
	return &e, nil
}

func (s *Store) MoveToCollection(ctx context.Context, entryID, userID string) (*domain.CollectionEntry, error) {
	s.mu.Lock()
	wish, ok := s.entries[entryID]
	if !ok || wish.UserID != userID || wish.Kind != domain.KindWishlist {
		s.mu.Unlock()
		return nil, domain.ErrEntryNotFound
	}
	delete(s.entries, entryID)
	changes := []realtime.Change{entryChange(realtime.KindDelete, wish)}

	entry, exists := s.findEntry(userID, domain.KindCollection, wish.AlbumID)
	if !exists {
		entry = wish
		entry.ID = newID()
		entry.Kind = domain.KindCollection
		entry.CreatedAt = s.now()
		s.entries[entry.ID] = entry
		changes = append(changes, entryChange(realtime.KindInsert, entry))
	}
	s.mu.Unlock()

	s.emit(ctx, changes...)
	return &entry, nil
}

func (s *Store) ListEntries(_ context.Context, userID string, kind domain.EntryKind, before *pagination.Cursor, limit int) ([]domain.CollectionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CollectionEntry
	for _, e := range s.entries {
		if e.UserID == userID && e.Kind == kind {
			out = append(out, e)
		}
	}
	return page(out, before, limit), nil
}
