package memstore

import (
	"context"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
)

// Callers hold s.mu.
func (s *Store) notificationChange(kind realtime.Kind, n domain.Notification) realtime.Change {
	return realtime.NewChange(realtime.TableNotifications, kind, n.ID, n.CreatedAt,
		map[string]string{realtime.ScopeUserID: n.UserID},
		domain.NotificationWithActor{Notification: n, Actor: s.users[n.ActorID]})
}

func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) (*domain.Notification, error) {
	s.mu.Lock()
	_, okU := s.users[n.UserID]
	_, okA := s.users[n.ActorID]
	if !okU || !okA {
		s.mu.Unlock()
		return nil, domain.ErrUserNotFound
	}
	n.Read = false
	n.CreatedAt = s.now()
	s.notifs[n.ID] = n
	change := s.notificationChange(realtime.KindInsert, n)
	s.mu.Unlock()

	s.emit(ctx, change)
	return &n, nil
}

func (s *Store) ListNotifications(_ context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.NotificationWithActor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.NotificationWithActor
	for _, n := range s.notifs {
		if n.UserID == userID {
			out = append(out, domain.NotificationWithActor{Notification: n, Actor: s.users[n.ActorID]})
		}
	}
	return page(out, before, limit), nil
}

func (s *Store) UnreadCount(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c int64
	for _, n := range s.notifs {
		if n.UserID == userID && !n.Read {
			c++
		}
	}
	return c, nil
}

func (s *Store) MarkRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error) {
	s.mu.Lock()
	n, ok := s.notifs[notificationID]
	if !ok || n.UserID != userID {
		s.mu.Unlock()
		return nil, domain.ErrNotifNotFound
	}
	n.Read = true
	s.notifs[n.ID] = n
	change := s.notificationChange(realtime.KindUpdate, n)
	s.mu.Unlock()

	s.emit(ctx, change)
	return &n, nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	var changes []realtime.Change
	for id, n := range s.notifs {
		if n.UserID == userID && !n.Read {
			n.Read = true
			s.notifs[id] = n
			changes = append(changes, s.notificationChange(realtime.KindUpdate, n))
		}
	}
	s.mu.Unlock()

	s.emit(ctx, changes...)
	return int64(len(changes)), nil
}

func (s *Store) DeleteFollowRequest(ctx context.Context, userID, actorID string) error {
	s.mu.Lock()
	var changes []realtime.Change
	for id, n := range s.notifs {
		if n.UserID == userID && n.ActorID == actorID && n.Type == domain.NotifyFollowRequest {
			delete(s.notifs, id)
			changes = append(changes, s.notificationChange(realtime.KindDelete, n))
		}
	}
	s.mu.Unlock()

	s.emit(ctx, changes...)
	return nil
}
