package social

import (
	"context"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
)

// ThreadQuery selects the comments under one post as seen by a viewer.
type ThreadQuery struct {
	PostID   string
	ViewerID string
}

// CanSeePost fails with ErrPrivateProfile when the post's author hides
// their posts from viewerID.
func (s *Service) CanSeePost(ctx context.Context, viewerID, postID string) error {
	if postID == "" {
		return domain.ErrEmptyQuery
	}
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	return s.feeds.CanView(ctx, viewerID, post.UserID)
}

func (s *Service) AddComment(ctx context.Context, userID, postID string, req domain.CreateCommentRequest) (*domain.Comment, error) {
	if postID == "" {
		return nil, domain.ErrEmptyQuery
	}
	if blank(req.Content) {
		return nil, domain.ErrEmptyContent
	}
	if tooLong(req.Content) {
		return nil, domain.ErrContentTooLong
	}
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.feeds.CanView(ctx, userID, post.UserID); err != nil {
		return nil, err
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}

	c, err := s.comments.CreateComment(ctx, domain.Comment{ID: id, PostID: postID, UserID: userID, Content: req.Content})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, domain.Notification{UserID: post.UserID, ActorID: userID, Type: domain.NotifyComment, PostID: postID})
	return c, nil
}

func (s *Service) DeleteComment(ctx context.Context, userID, commentID string) (*domain.Comment, error) {
	if commentID == "" {
		return nil, domain.ErrEmptyQuery
	}
	return s.comments.DeleteComment(ctx, commentID, userID)
}

// Comments lists a thread newest first. Threads under a private author's
// posts are hidden like the posts themselves.
func (s *Service) Comments(ctx context.Context, q ThreadQuery, before *pagination.Cursor, limit int) ([]domain.CommentWithAuthor, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if err := s.CanSeePost(ctx, q.ViewerID, q.PostID); err != nil {
		return nil, err
	}
	return s.comments.ListComments(ctx, q.PostID, before, limit)
}

func (s *Service) CommentsSource() pagination.Source[domain.CommentWithAuthor, ThreadQuery] {
	return pagination.SourceFunc[domain.CommentWithAuthor, ThreadQuery](s.Comments)
}
