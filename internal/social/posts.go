package social

import (
	"context"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/log"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
)

// AuthorQuery selects one author's posts as seen by a viewer.
type AuthorQuery struct {
	AuthorID string
	ViewerID string
}

func (s *Service) CreatePost(ctx context.Context, userID string, req domain.CreatePostRequest) (*domain.Post, error) {
	if blank(req.Content) && req.AlbumID == "" {
		return nil, domain.ErrEmptyContent
	}
	if tooLong(req.Content) {
		return nil, domain.ErrContentTooLong
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}

	post, err := s.posts.CreatePost(ctx, domain.Post{
		ID:       id,
		UserID:   userID,
		Content:  req.Content,
		AlbumID:  req.AlbumID,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return nil, err
	}

	logger := log.Ctx(ctx)
	logger.Info().Str(log.FieldPostID, post.ID).Msg("post created")
	return post, nil
}

func (s *Service) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	if postID == "" {
		return nil, domain.ErrEmptyQuery
	}
	return s.posts.GetPost(ctx, postID)
}

func (s *Service) DeletePost(ctx context.Context, userID, postID string) error {
	if postID == "" {
		return domain.ErrEmptyQuery
	}
	_, err := s.posts.DeletePost(ctx, postID, userID)
	return err
}

// Like is idempotent. The author hears about the first like only.
func (s *Service) Like(ctx context.Context, userID, postID string) (*domain.Post, error) {
	if postID == "" {
		return nil, domain.ErrEmptyQuery
	}
	post, changed, err := s.posts.Like(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.notify(ctx, domain.Notification{UserID: post.UserID, ActorID: userID, Type: domain.NotifyLike, PostID: post.ID})
	}
	return post, nil
}

func (s *Service) Unlike(ctx context.Context, userID, postID string) (*domain.Post, error) {
	if postID == "" {
		return nil, domain.ErrEmptyQuery
	}
	post, _, err := s.posts.Unlike(ctx, postID, userID)
	return post, err
}

func (s *Service) Feed(ctx context.Context, viewerID string, before *pagination.Cursor, limit int) ([]domain.FeedPost, error) {
	if viewerID == "" {
		return nil, domain.ErrEmptyQuery
	}
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	return s.feeds.Feed(ctx, viewerID, before, limit)
}

func (s *Service) UserPosts(ctx context.Context, q AuthorQuery, before *pagination.Cursor, limit int) ([]domain.FeedPost, error) {
	if q.AuthorID == "" {
		return nil, domain.ErrEmptyQuery
	}
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	return s.feeds.UserPosts(ctx, q.AuthorID, q.ViewerID, before, limit)
}

func (s *Service) FeedSource() pagination.Source[domain.FeedPost, string] {
	return pagination.SourceFunc[domain.FeedPost, string](s.Feed)
}

func (s *Service) UserPostsSource() pagination.Source[domain.FeedPost, AuthorQuery] {
	return pagination.SourceFunc[domain.FeedPost, AuthorQuery](s.UserPosts)
}
