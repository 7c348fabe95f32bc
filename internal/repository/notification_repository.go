package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
)

const notificationColumns = "id, user_id, actor_id, type, COALESCE(post_id::text, ''), read, created_at"

func notificationDest(n *domain.Notification) []any {
	return []any{&n.ID, &n.UserID, &n.ActorID, &n.Type, &n.PostID, &n.Read, &n.CreatedAt}
}

type NotificationRepository struct {
	conn *pgxpool.Pool
}

func NewNotificationRepository(conn *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n domain.Notification) (*domain.Notification, error) {
	var postID any
	if n.PostID != "" {
		postID = n.PostID
	}

	var created domain.Notification
	err := r.conn.QueryRow(ctx,
		"INSERT INTO notifications (id, user_id, actor_id, type, post_id) VALUES ($1, $2, $3, $4, $5::uuid) RETURNING "+notificationColumns,
		n.ID, n.UserID, n.ActorID, n.Type, postID,
	).Scan(notificationDest(&created)...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Transient(err)
	}
	return &created, nil
}

func (r *NotificationRepository) ListNotifications(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.NotificationWithActor, error) {
	t, id := cursorArgs(before)
	rows, err := r.conn.Query(ctx,
		`SELECT n.id, n.user_id, n.actor_id, n.type, COALESCE(n.post_id::text, ''), n.read, n.created_at, `+userColumnsAs("u")+`
		 FROM notifications n
		 INNER JOIN users u ON u.id = n.actor_id
		 WHERE n.user_id = $1
		   AND ($2::timestamptz IS NULL OR (n.created_at, n.id) < ($2, $3::uuid))
		 ORDER BY n.created_at DESC, n.id DESC
		 LIMIT $4`,
		userID, t, id, limit,
	)
	if err != nil {
		return nil, domain.Transient(err)
	}
	defer rows.Close()

	var out []domain.NotificationWithActor
	for rows.Next() {
		var nw domain.NotificationWithActor
		if err := rows.Scan(append(notificationDest(&nw.Notification), userDest(&nw.Actor)...)...); err != nil {
			return nil, domain.Transient(err)
		}
		out = append(out, nw)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Transient(err)
	}

	return out, nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.conn.QueryRow(ctx,
		"SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT read",
		userID,
	).Scan(&n)
	if err != nil {
		return 0, domain.Transient(err)
	}
	return n, nil
}

// MarkRead is idempotent: marking a read notification again succeeds.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error) {
	var n domain.Notification
	err := r.conn.QueryRow(ctx,
		"UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2 RETURNING "+notificationColumns,
		notificationID, userID,
	).Scan(notificationDest(&n)...)
	if err != nil {
		return nil, notFound(err, domain.ErrNotifNotFound)
	}
	return &n, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := r.conn.Exec(ctx,
		"UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read",
		userID,
	)
	if err != nil {
		return 0, domain.Transient(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteFollowRequest drops the follow_request notification actorID sent
// to userID, if any.
func (r *NotificationRepository) DeleteFollowRequest(ctx context.Context, userID, actorID string) error {
	_, err := r.conn.Exec(ctx,
		"DELETE FROM notifications WHERE user_id = $1 AND actor_id = $2 AND type = 'follow_request'",
		userID, actorID,
	)
	if err != nil {
		return domain.Transient(err)
	}
	return nil
}
