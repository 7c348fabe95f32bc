package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
)

type FeedRepository struct {
	conn *pgxpool.Pool
}

func NewFeedRepository(conn *pgxpool.Pool) *FeedRepository {
	return &FeedRepository{conn: conn}
}

// Feed returns the viewer's own posts and those of users the viewer follows
// with an accepted edge, keyset paginated on (created_at, id).
func (r *FeedRepository) Feed(ctx context.Context, viewerID string, before *pagination.Cursor, limit int) ([]domain.FeedPost, error) {
	t, id := cursorArgs(before)
	query := `
		SELECT
			p.id, p.user_id, p.content, p.album_id, p.image_url,
			p.likes_count, p.comments_count, p.created_at, p.updated_at,
			` + userColumnsAs("u") + `,
			EXISTS (SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = $1)
		FROM posts p
		INNER JOIN users u ON u.id = p.user_id
		WHERE (p.user_id = $1 OR EXISTS (
			SELECT 1 FROM follows f
			WHERE f.follower_id = $1 AND f.following_id = p.user_id AND f.status = 'accepted'))
		  AND ($2::timestamptz IS NULL OR (p.created_at, p.id) < ($2, $3::uuid))
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $4
	`
	rows, err := r.conn.Query(ctx, query, viewerID, t, id, limit)
	if err != nil {
		return nil, domain.Transient(err)
	}
	return scanFeedPosts(rows)
}

// CanView reports ErrPrivateProfile when viewerID may not see authorID's
// posts. A private author is only visible to themself and accepted
// followers.
func (r *FeedRepository) CanView(ctx context.Context, viewerID, authorID string) error {
	var visible bool
	err := r.conn.QueryRow(ctx,
		`SELECT NOT u.is_private OR u.id = $2 OR EXISTS (
			SELECT 1 FROM follows f
			WHERE f.follower_id = $2 AND f.following_id = u.id AND f.status = 'accepted')
		 FROM users u WHERE u.id = $1`,
		authorID, viewerID,
	).Scan(&visible)
	if err != nil {
		return notFound(err, domain.ErrUserNotFound)
	}
	if !visible {
		return domain.ErrPrivateProfile
	}
	return nil
}

// UserPosts lists one author's posts as seen by viewerID.
func (r *FeedRepository) UserPosts(ctx context.Context, authorID, viewerID string, before *pagination.Cursor, limit int) ([]domain.FeedPost, error) {
	if err := r.CanView(ctx, viewerID, authorID); err != nil {
		return nil, err
	}

	t, id := cursorArgs(before)
	query := `
		SELECT
			p.id, p.user_id, p.content, p.album_id, p.image_url,
			p.likes_count, p.comments_count, p.created_at, p.updated_at,
			` + userColumnsAs("u") + `,
			EXISTS (SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = $2)
		FROM posts p
		INNER JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1
		  AND ($3::timestamptz IS NULL OR (p.created_at, p.id) < ($3, $4::uuid))
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $5
	`
	rows, err := r.conn.Query(ctx, query, authorID, viewerID, t, id, limit)
	if err != nil {
		return nil, domain.Transient(err)
	}
	return scanFeedPosts(rows)
}

func scanFeedPosts(rows pgx.Rows) ([]domain.FeedPost, error) {
	defer rows.Close()

	var posts []domain.FeedPost
	for rows.Next() {
		var fp domain.FeedPost
		dest := append(postDest(&fp.Post), userDest(&fp.Author)...)
		if err := rows.Scan(append(dest, &fp.IsLiked)...); err != nil {
			return nil, domain.Transient(err)
		}
		posts = append(posts, fp)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Transient(err)
	}

	return posts, nil
}
