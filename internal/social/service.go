// Package social holds the write paths for posts, likes, comments, shelves
// and notifications, and exposes their lists as pagination sources.
package social

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/log"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
)

type Posts interface {
	CreatePost(ctx context.Context, post domain.Post) (*domain.Post, error)
	GetPost(ctx context.Context, postID string) (*domain.Post, error)
	DeletePost(ctx context.Context, postID, ownerID string) (*domain.Post, error)
	Like(ctx context.Context, postID, userID string) (*domain.Post, bool, error)
	Unlike(ctx context.Context, postID, userID string) (*domain.Post, bool, error)
}

type Feeds interface {
	Feed(ctx context.Context, viewerID string, before *pagination.Cursor, limit int) ([]domain.FeedPost, error)
	UserPosts(ctx context.Context, authorID, viewerID string, before *pagination.Cursor, limit int) ([]domain.FeedPost, error)
	// CanView fails with ErrPrivateProfile when authorID's posts are
	// hidden from viewerID.
	CanView(ctx context.Context, viewerID, authorID string) error
}

type Comments interface {
	CreateComment(ctx context.Context, c domain.Comment) (*domain.Comment, error)
	DeleteComment(ctx context.Context, commentID, userID string) (*domain.Comment, error)
	ListComments(ctx context.Context, postID string, before *pagination.Cursor, limit int) ([]domain.CommentWithAuthor, error)
}

type Collections interface {
	AddEntry(ctx context.Context, e domain.CollectionEntry) (*domain.CollectionEntry, bool, error)
	RemoveEntry(ctx context.Context, entryID, userID string) (*domain.CollectionEntry, error)
	MoveToCollection(ctx context.Context, entryID, userID string) (*domain.CollectionEntry, error)
	ListEntries(ctx context.Context, userID string, kind domain.EntryKind, before *pagination.Cursor, limit int) ([]domain.CollectionEntry, error)
}

type Notifications interface {
	CreateNotification(ctx context.Context, n domain.Notification) (*domain.Notification, error)
	ListNotifications(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.NotificationWithActor, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// Backend bundles every store the service writes to. Both the Postgres
// repositories and memstore satisfy it.
type Backend struct {
	Posts         Posts
	Feeds         Feeds
	Comments      Comments
	Collections   Collections
	Notifications Notifications
}

type Service struct {
	posts         Posts
	feeds         Feeds
	comments      Comments
	collections   Collections
	notifications Notifications
}

func NewService(b Backend) *Service {
	return &Service{
		posts:         b.Posts,
		feeds:         b.Feeds,
		comments:      b.Comments,
		collections:   b.Collections,
		notifications: b.Notifications,
	}
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func checkLimit(limit int) error {
	if limit <= 0 {
		return domain.ErrInvalidLimit
	}
	return nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func tooLong(s string) bool { return utf8.RuneCountInString(s) > domain.MaxContentLength }

// notify records a notification for recipient unless the actor is the
// recipient. Failures are logged only.
func (s *Service) notify(ctx context.Context, n domain.Notification) {
	if n.UserID == n.ActorID {
		return
	}
	id, err := newID()
	if err != nil {
		return
	}
	n.ID = id
	if _, err := s.notifications.CreateNotification(ctx, n); err != nil {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).Str("type", string(n.Type)).Msg("failed to create notification")
	}
}
