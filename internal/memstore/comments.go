package memstore

import (
	"context"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/optimistic"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
)

// Callers hold s.mu.
func (s *Store) commentChange(kind realtime.Kind, c domain.Comment) realtime.Change {
	return realtime.NewChange(realtime.TableComments, kind, c.ID, c.CreatedAt, map[string]string{
		realtime.ScopePostID: c.PostID,
		realtime.ScopeUserID: c.UserID,
	}, domain.CommentWithAuthor{Comment: c, Author: s.users[c.UserID]})
}

func (s *Store) CreateComment(ctx context.Context, c domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	p, ok := s.posts[c.PostID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrPostNotFound
	}
	c.CreatedAt = s.now()
	s.comments[c.ID] = c
	p.CommentsCount++
	s.posts[p.ID] = p
	changes := []realtime.Change{s.commentChange(realtime.KindInsert, c), s.postChange(realtime.KindUpdate, p)}
	s.mu.Unlock()

	s.emit(ctx, changes...)
	return &c, nil
}

func (s *Store) DeleteComment(ctx context.Context, commentID, userID string) (*domain.Comment, error) {
	s.mu.Lock()
	c, ok := s.comments[commentID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrCommentNotFound
	}
	if c.UserID != userID {
		s.mu.Unlock()
		return nil, domain.ErrNotOwner
	}
	delete(s.comments, commentID)
	changes := []realtime.Change{s.commentChange(realtime.KindDelete, c)}
	if p, ok := s.posts[c.PostID]; ok {
		p.CommentsCount = optimistic.AddDelta(p.CommentsCount, -1)
		s.posts[p.ID] = p
		changes = append(changes, s.postChange(realtime.KindUpdate, p))
	}
	s.mu.Unlock()

	s.emit(ctx, changes...)
	return &c, nil
}

func (s *Store) ListComments(_ context.Context, postID string, before *pagination.Cursor, limit int) ([]domain.CommentWithAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CommentWithAuthor
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, domain.CommentWithAuthor{Comment: c, Author: s.users[c.UserID]})
		}
	}
	return page(out, before, limit), nil
}
