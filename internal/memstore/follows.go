package memstore

import (
	"context"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
)

func followChange(kind realtime.Kind, e domain.FollowEdge) realtime.Change {
	return realtime.NewChange(realtime.TableFollows, kind, e.ID, e.CreatedAt, map[string]string{
		realtime.ScopeFollowerID:  e.FollowerID,
		realtime.ScopeFollowingID: e.FollowingID,
	}, e)
}

func (s *Store) GetEdge(_ context.Context, followerID, followingID string) (*domain.FollowEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[edgeKey{followerID, followingID}]
	if !ok {
		return nil, domain.ErrEdgeNotFound
	}
	return &e, nil
}

func (s *Store) InsertEdge(ctx context.Context, followerID, followingID string, status domain.FollowStatus) (*domain.FollowEdge, bool, error) {
	s.mu.Lock()
	if e, ok := s.edges[edgeKey{followerID, followingID}]; ok {
		s.mu.Unlock()
		return &e, false, nil
	}
	_, okA := s.users[followerID]
	_, okB := s.users[followingID]
	if !okA || !okB {
		s.mu.Unlock()
		return nil, false, domain.ErrUserNotFound
	}
	e := domain.FollowEdge{
		ID:          newID(),
		FollowerID:  followerID,
		FollowingID: followingID,
		Status:      status,
		CreatedAt:   s.now(),
	}
	s.edges[edgeKey{followerID, followingID}] = e
	s.mu.Unlock()

	s.emit(ctx, followChange(realtime.KindInsert, e))
	return &e, true, nil
}

func (s *Store) DeleteEdge(ctx context.Context, followerID, followingID string) (*domain.FollowEdge, error) {
	s.mu.Lock()
	e, ok := s.edges[edgeKey{followerID, followingID}]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrEdgeNotFound
	}
	delete(s.edges, edgeKey{followerID, followingID})
	s.mu.Unlock()

	s.emit(ctx, followChange(realtime.KindDelete, e))
	return &e, nil
}

func (s *Store) AcceptEdge(ctx context.Context, followerID, followingID string) (*domain.FollowEdge, bool, error) {
	s.mu.Lock()
	e, ok := s.edges[edgeKey{followerID, followingID}]
	if !ok {
		s.mu.Unlock()
		return nil, false, domain.ErrEdgeNotFound
	}
	if e.Status == domain.FollowAccepted {
		s.mu.Unlock()
		return &e, false, nil
	}
	e.Status = domain.FollowAccepted
	s.edges[edgeKey{followerID, followingID}] = e
	s.mu.Unlock()

	s.emit(ctx, followChange(realtime.KindUpdate, e))
	return &e, true, nil
}

func (s *Store) ListFollowers(_ context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Connection
	for _, e := range s.edges {
		if e.FollowingID == userID && e.Status == domain.FollowAccepted {
			out = append(out, domain.Connection{Edge: e, User: s.users[e.FollowerID]})
		}
	}
	return page(out, before, limit), nil
}

func (s *Store) ListFollowing(_ context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Connection
	for _, e := range s.edges {
		if e.FollowerID == userID && e.Status == domain.FollowAccepted {
			out = append(out, domain.Connection{Edge: e, User: s.users[e.FollowingID]})
		}
	}
	return page(out, before, limit), nil
}

func (s *Store) ListPending(_ context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PendingRequest
	for _, e := range s.edges {
		if e.FollowingID == userID && e.Status == domain.FollowPending {
			out = append(out, domain.PendingRequest{Edge: e, Follower: s.users[e.FollowerID]})
		}
	}
	return page(out, before, limit), nil
}

func (s *Store) Stats(_ context.Context, userID string) (domain.FollowStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st domain.FollowStats
	for _, e := range s.edges {
		if e.Status != domain.FollowAccepted {
			continue
		}
		if e.FollowingID == userID {
			st.FollowersCount++
		}
		if e.FollowerID == userID {
			st.FollowingCount++
		}
	}
	return st, nil
}

// accepted reports an accepted edge follower -> following. Callers hold s.mu.
func (s *Store) accepted(followerID, followingID string) bool {
	e, ok := s.edges[edgeKey{followerID, followingID}]
	return ok && e.Status == domain.FollowAccepted
}
