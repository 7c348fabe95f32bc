package social

import (
	"context"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
)

func (s *Service) Notifications(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.NotificationWithActor, error) {
	if userID == "" {
		return nil, domain.ErrEmptyQuery
	}
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	return s.notifications.ListNotifications(ctx, userID, before, limit)
}

func (s *Service) NotificationsSource() pagination.Source[domain.NotificationWithActor, string] {
	return pagination.SourceFunc[domain.NotificationWithActor, string](s.Notifications)
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, domain.ErrEmptyQuery
	}
	return s.notifications.UnreadCount(ctx, userID)
}

// MarkRead succeeds on a notification that is already read.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	if notificationID == "" {
		return nil, domain.ErrEmptyQuery
	}
	return s.notifications.MarkRead(ctx, notificationID, userID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, domain.ErrEmptyQuery
	}
	return s.notifications.MarkAllRead(ctx, userID)
}
