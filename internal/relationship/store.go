// Package relationship manages directed follow edges between users and the
// pending -> accepted request flow for private accounts.
package relationship

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/log"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
)

type Users interface {
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
}

// Edges is the persistence contract for follow edges. At most one edge may
// exist per (follower, following) pair; InsertEdge returns the existing one.
type Edges interface {
	GetEdge(ctx context.Context, followerID, followingID string) (*domain.FollowEdge, error)
	InsertEdge(ctx context.Context, followerID, followingID string, status domain.FollowStatus) (*domain.FollowEdge, bool, error)
	DeleteEdge(ctx context.Context, followerID, followingID string) (*domain.FollowEdge, error)
	AcceptEdge(ctx context.Context, followerID, followingID string) (*domain.FollowEdge, bool, error)
	ListFollowers(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.Connection, error)
	ListFollowing(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.Connection, error)
	ListPending(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.PendingRequest, error)
	Stats(ctx context.Context, userID string) (domain.FollowStats, error)
}

type Notifier interface {
	CreateNotification(ctx context.Context, n domain.Notification) (*domain.Notification, error)
	DeleteFollowRequest(ctx context.Context, userID, actorID string) error
}

// StatsCache holds follower/following counts. Misses fall through to Edges.
type StatsCache interface {
	GetStats(ctx context.Context, userID string) (domain.FollowStats, bool, error)
	SetStats(ctx context.Context, userID string, stats domain.FollowStats) error
	EdgeAccepted(ctx context.Context, followerID, followingID string) error
	EdgeRemoved(ctx context.Context, followerID, followingID string) error
}

type Store struct {
	users Users
	edges Edges
	notes Notifier
	cache StatsCache
	group singleflight.Group
}

type Option func(*Store)

func WithCache(c StatsCache) Option {
	return func(s *Store) { s.cache = c }
}

func NewStore(users Users, edges Edges, notes Notifier, opts ...Option) *Store {
	s := &Store{users: users, edges: edges, notes: notes}
	for _, o := range opts {
		o(s)
	}
	return s
}

func validatePair(followerID, followingID string) error {
	if followerID == "" || followingID == "" {
		return domain.ErrEmptyQuery
	}
	return nil
}

// Follow creates an edge, pending when the target is private. Following
// twice returns the first edge unchanged.
func (s *Store) Follow(ctx context.Context, followerID, followingID string) (*domain.FollowEdge, error) {
	if err := validatePair(followerID, followingID); err != nil {
		return nil, err
	}
	if followerID == followingID {
		return nil, domain.ErrSelfFollow
	}

	existing, err := s.edges.GetEdge(ctx, followerID, followingID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrEdgeNotFound) {
		return nil, err
	}

	target, err := s.users.GetUserByID(ctx, followingID)
	if err != nil {
		return nil, err
	}
	status := domain.FollowAccepted
	if target.IsPrivate {
		status = domain.FollowPending
	}

	edge, created, err := s.edges.InsertEdge(ctx, followerID, followingID, status)
	if err != nil {
		return nil, err
	}
	if !created {
		return edge, nil
	}

	logger := log.Ctx(ctx).With().
		Str(log.FieldFollowerID, followerID).
		Str(log.FieldFollowingID, followingID).
		Logger()
	logger.Info().Str("status", string(edge.Status)).Msg("follow edge created")

	kind := domain.NotifyFollow
	if edge.Status == domain.FollowPending {
		kind = domain.NotifyFollowRequest
	} else {
		s.cacheAccepted(ctx, followerID, followingID)
	}
	s.notify(ctx, domain.Notification{UserID: followingID, ActorID: followerID, Type: kind})
	return edge, nil
}

// Unfollow deletes the edge in either state. No edge is not an error.
func (s *Store) Unfollow(ctx context.Context, followerID, followingID string) error {
	if err := validatePair(followerID, followingID); err != nil {
		return err
	}

	edge, err := s.edges.DeleteEdge(ctx, followerID, followingID)
	if errors.Is(err, domain.ErrEdgeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	switch edge.Status {
	case domain.FollowAccepted:
		s.cacheRemoved(ctx, followerID, followingID)
	case domain.FollowPending:
		if err := s.notes.DeleteFollowRequest(ctx, followingID, followerID); err != nil {
			logger := log.Ctx(ctx)
			logger.Warn().Err(err).Msg("failed to remove follow request notification")
		}
	}
	return nil
}

// AcceptRequest moves a pending edge to accepted. It is a no-op on an edge
// that is already accepted.
func (s *Store) AcceptRequest(ctx context.Context, followerID, followingID string) error {
	if err := validatePair(followerID, followingID); err != nil {
		return err
	}

	_, changed, err := s.edges.AcceptEdge(ctx, followerID, followingID)
	if errors.Is(err, domain.ErrEdgeNotFound) {
		return domain.ErrRequestNotFound
	}
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.cacheAccepted(ctx, followerID, followingID)
	s.notify(ctx, domain.Notification{UserID: followerID, ActorID: followingID, Type: domain.NotifyFollowAccepted})
	return nil
}

// RejectRequest is Unfollow seen from the followee's side.
func (s *Store) RejectRequest(ctx context.Context, followerID, followingID string) error {
	return s.Unfollow(ctx, followerID, followingID)
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followingID string) (domain.FollowState, error) {
	if err := validatePair(followerID, followingID); err != nil {
		return domain.FollowState{}, err
	}
	edge, err := s.edges.GetEdge(ctx, followerID, followingID)
	if errors.Is(err, domain.ErrEdgeNotFound) {
		return domain.FollowState{}, nil
	}
	if err != nil {
		return domain.FollowState{}, err
	}
	return domain.FollowState{
		IsFollowing: edge.Status == domain.FollowAccepted,
		Status:      edge.Status,
		EdgeID:      edge.ID,
	}, nil
}

func (s *Store) ListFollowers(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.Connection, error) {
	if userID == "" {
		return nil, domain.ErrEmptyQuery
	}
	if limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}
	return s.edges.ListFollowers(ctx, userID, before, limit)
}

func (s *Store) ListFollowing(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.Connection, error) {
	if userID == "" {
		return nil, domain.ErrEmptyQuery
	}
	if limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}
	return s.edges.ListFollowing(ctx, userID, before, limit)
}

func (s *Store) ListPendingRequests(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.PendingRequest, error) {
	if userID == "" {
		return nil, domain.ErrEmptyQuery
	}
	if limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}
	return s.edges.ListPending(ctx, userID, before, limit)
}

// Stats counts accepted edges in both directions. Concurrent callers for
// the same user share one lookup.
func (s *Store) Stats(ctx context.Context, userID string) (domain.FollowStats, error) {
	if userID == "" {
		return domain.FollowStats{}, domain.ErrEmptyQuery
	}
	v, err, _ := s.group.Do(userID, func() (any, error) {
		return s.loadStats(ctx, userID)
	})
	if err != nil {
		return domain.FollowStats{}, err
	}
	return v.(domain.FollowStats), nil
}

func (s *Store) loadStats(ctx context.Context, userID string) (domain.FollowStats, error) {
	logger := log.Ctx(ctx)
	if s.cache != nil {
		st, ok, err := s.cache.GetStats(ctx, userID)
		if err != nil {
			logger.Warn().Err(err).Str(log.FieldUserID, userID).Msg("stats cache read failed")
		} else if ok {
			return st, nil
		}
	}

	st, err := s.edges.Stats(ctx, userID)
	if err != nil {
		return domain.FollowStats{}, err
	}

	if s.cache != nil {
		if err := s.cache.SetStats(ctx, userID, st); err != nil {
			logger.Warn().Err(err).Str(log.FieldUserID, userID).Msg("stats cache write failed")
		}
	}
	return st, nil
}

// Sources adapt the list operations for pagination.Paginator.

func (s *Store) FollowersSource() pagination.Source[domain.Connection, string] {
	return pagination.SourceFunc[domain.Connection, string](s.ListFollowers)
}

func (s *Store) FollowingSource() pagination.Source[domain.Connection, string] {
	return pagination.SourceFunc[domain.Connection, string](s.ListFollowing)
}

func (s *Store) PendingSource() pagination.Source[domain.PendingRequest, string] {
	return pagination.SourceFunc[domain.PendingRequest, string](s.ListPendingRequests)
}

func (s *Store) notify(ctx context.Context, n domain.Notification) {
	id, err := uuid.NewV7()
	if err != nil {
		return
	}
	n.ID = id.String()
	if _, err := s.notes.CreateNotification(ctx, n); err != nil {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).Str("type", string(n.Type)).Msg("failed to create notification")
	}
}

func (s *Store) cacheAccepted(ctx context.Context, followerID, followingID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.EdgeAccepted(ctx, followerID, followingID); err != nil {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).Msg("stats cache increment failed")
	}
}

func (s *Store) cacheRemoved(ctx context.Context, followerID, followingID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.EdgeRemoved(ctx, followerID, followingID); err != nil {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).Msg("stats cache decrement failed")
	}
}
