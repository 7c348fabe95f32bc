package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tetsu-is/crate-digger/internal/domain"
)

const postColumns = "id, user_id, content, album_id, image_url, likes_count, comments_count, created_at, updated_at"

func postDest(p *domain.Post) []any {
	return []any{&p.ID, &p.UserID, &p.Content, &p.AlbumID, &p.ImageURL, &p.LikesCount, &p.CommentsCount, &p.CreatedAt, &p.UpdatedAt}
}

type PostRepository struct {
	conn *pgxpool.Pool
}

func NewPostRepository(conn *pgxpool.Pool) *PostRepository {
	return &PostRepository{conn: conn}
}

func (r *PostRepository) CreatePost(ctx context.Context, post domain.Post) (*domain.Post, error) {
	var created domain.Post
	err := r.conn.QueryRow(ctx,
		"INSERT INTO posts (id, user_id, content, album_id, image_url) VALUES ($1, $2, $3, $4, $5) RETURNING "+postColumns,
		post.ID, post.UserID, post.Content, post.AlbumID, post.ImageURL,
	).Scan(postDest(&created)...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Transient(err)
	}
	return &created, nil
}

func (r *PostRepository) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	var post domain.Post
	err := r.conn.QueryRow(ctx,
		"SELECT "+postColumns+" FROM posts WHERE id = $1",
		postID,
	).Scan(postDest(&post)...)
	if err != nil {
		return nil, notFound(err, domain.ErrPostNotFound)
	}
	return &post, nil
}

// DeletePost removes a post owned by ownerID. Likes and comments go with it.
func (r *PostRepository) DeletePost(ctx context.Context, postID, ownerID string) (*domain.Post, error) {
	var post domain.Post
	err := r.conn.QueryRow(ctx,
		"DELETE FROM posts WHERE id = $1 AND user_id = $2 RETURNING "+postColumns,
		postID, ownerID,
	).Scan(postDest(&post)...)
	if err == nil {
		return &post, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(err, domain.ErrPostNotFound)
	}
	if _, err := r.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	return nil, domain.ErrNotOwner
}

// Like records userID's like once and bumps the counter in the same
// transaction. liked is false when the like already existed.
func (r *PostRepository) Like(ctx context.Context, postID, userID string) (*domain.Post, bool, error) {
	return r.toggleLike(ctx, postID, userID,
		"INSERT INTO likes (post_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		"UPDATE posts SET likes_count = likes_count + 1 WHERE id = $1 RETURNING "+postColumns,
	)
}

// Unlike removes the like. The counter never drops below zero.
func (r *PostRepository) Unlike(ctx context.Context, postID, userID string) (*domain.Post, bool, error) {
	return r.toggleLike(ctx, postID, userID,
		"DELETE FROM likes WHERE post_id = $1 AND user_id = $2",
		"UPDATE posts SET likes_count = GREATEST(likes_count - 1, 0) WHERE id = $1 RETURNING "+postColumns,
	)
}

func (r *PostRepository) toggleLike(ctx context.Context, postID, userID, change, counter string) (*domain.Post, bool, error) {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return nil, false, domain.Transient(err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, change, postID, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, false, domain.ErrPostNotFound
		}
		return nil, false, notFound(err, domain.ErrPostNotFound)
	}

	var post domain.Post
	if tag.RowsAffected() == 0 {
		err = tx.QueryRow(ctx, "SELECT "+postColumns+" FROM posts WHERE id = $1", postID).Scan(postDest(&post)...)
	} else {
		err = tx.QueryRow(ctx, counter, postID).Scan(postDest(&post)...)
	}
	if err != nil {
		return nil, false, notFound(err, domain.ErrPostNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, domain.Transient(err)
	}
	return &post, tag.RowsAffected() > 0, nil
}
