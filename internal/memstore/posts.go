package memstore

import (
	"context"
	"time"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/optimistic"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
)

type likeRecord struct {
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// postChange carries the row as a FeedPost, matching the trigger payload.
// Callers hold s.mu.
func (s *Store) postChange(kind realtime.Kind, p domain.Post) realtime.Change {
	return realtime.NewChange(realtime.TablePosts, kind, p.ID, p.CreatedAt,
		map[string]string{realtime.ScopeUserID: p.UserID},
		domain.FeedPost{Post: p, Author: s.users[p.UserID]})
}

func likeChange(kind realtime.Kind, l likeRecord) realtime.Change {
	return realtime.NewChange(realtime.TableLikes, kind, l.PostID+":"+l.UserID, l.CreatedAt, map[string]string{
		realtime.ScopePostID: l.PostID,
		realtime.ScopeUserID: l.UserID,
	}, l)
}

func (s *Store) CreatePost(ctx context.Context, post domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	if _, ok := s.users[post.UserID]; !ok {
		s.mu.Unlock()
		return nil, domain.ErrUserNotFound
	}
	now := s.now()
	post.LikesCount, post.CommentsCount = 0, 0
	post.CreatedAt, post.UpdatedAt = now, now
	s.posts[post.ID] = post
	change := s.postChange(realtime.KindInsert, post)
	s.mu.Unlock()

	s.emit(ctx, change)
	return &post, nil
}

func (s *Store) GetPost(_ context.Context, postID string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[postID]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	return &p, nil
}

func (s *Store) DeletePost(ctx context.Context, postID, ownerID string) (*domain.Post, error) {
	s.mu.Lock()
	p, ok := s.posts[postID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrPostNotFound
	}
	if p.UserID != ownerID {
		s.mu.Unlock()
		return nil, domain.ErrNotOwner
	}
	changes := []realtime.Change{s.postChange(realtime.KindDelete, p)}
	delete(s.posts, postID)
	delete(s.likes, postID)
	for id, c := range s.comments {
		if c.PostID == postID {
			delete(s.comments, id)
		}
	}
	for id, n := range s.notifs {
		if n.PostID == postID {
			delete(s.notifs, id)
		}
	}
	s.mu.Unlock()

	s.emit(ctx, changes...)
	return &p, nil
}

func (s *Store) Like(ctx context.Context, postID, userID string) (*domain.Post, bool, error) {
	s.mu.Lock()
	p, ok := s.posts[postID]
	if !ok {
		s.mu.Unlock()
		return nil, false, domain.ErrPostNotFound
	}
	if _, liked := s.likes[postID][userID]; liked {
		s.mu.Unlock()
		return &p, false, nil
	}
	if s.likes[postID] == nil {
		s.likes[postID] = make(map[string]time.Time)
	}
	l := likeRecord{PostID: postID, UserID: userID, CreatedAt: s.now()}
	s.likes[postID][userID] = l.CreatedAt
	p.LikesCount++
	s.posts[postID] = p
	changes := []realtime.Change{likeChange(realtime.KindInsert, l), s.postChange(realtime.KindUpdate, p)}
	s.mu.Unlock()

	s.emit(ctx, changes...)
	return &p, true, nil
}

func (s *Store) Unlike(ctx context.Context, postID, userID string) (*domain.Post, bool, error) {
	s.mu.Lock()
	p, ok := s.posts[postID]
	if !ok {
		s.mu.Unlock()
		return nil, false, domain.ErrPostNotFound
	}
	at, liked := s.likes[postID][userID]
	if !liked {
		s.mu.Unlock()
		return &p, false, nil
	}
	delete(s.likes[postID], userID)
	p.LikesCount = optimistic.AddDelta(p.LikesCount, -1)
	s.posts[postID] = p
	changes := []realtime.Change{
		likeChange(realtime.KindDelete, likeRecord{PostID: postID, UserID: userID, CreatedAt: at}),
		s.postChange(realtime.KindUpdate, p),
	}
	s.mu.Unlock()

	s.emit(ctx, changes...)
	return &p, true, nil
}

func (s *Store) Feed(_ context.Context, viewerID string, before *pagination.Cursor, limit int) ([]domain.FeedPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.FeedPost
	for _, p := range s.posts {
		if p.UserID == viewerID || s.accepted(viewerID, p.UserID) {
			out = append(out, s.feedPost(p, viewerID))
		}
	}
	return page(out, before, limit), nil
}

func (s *Store) UserPosts(_ context.Context, authorID, viewerID string, before *pagination.Cursor, limit int) ([]domain.FeedPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.canView(viewerID, authorID); err != nil {
		return nil, err
	}
	var out []domain.FeedPost
	for _, p := range s.posts {
		if p.UserID == authorID {
			out = append(out, s.feedPost(p, viewerID))
		}
	}
	return page(out, before, limit), nil
}

func (s *Store) CanView(_ context.Context, viewerID, authorID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canView(viewerID, authorID)
}

// Callers hold s.mu.
func (s *Store) canView(viewerID, authorID string) error {
	author, ok := s.users[authorID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if author.IsPrivate && authorID != viewerID && !s.accepted(viewerID, authorID) {
		return domain.ErrPrivateProfile
	}
	return nil
}

// Callers hold s.mu.
func (s *Store) feedPost(p domain.Post, viewerID string) domain.FeedPost {
	_, liked := s.likes[p.ID][viewerID]
	return domain.FeedPost{Post: p, Author: s.users[p.UserID], IsLiked: liked}
}
