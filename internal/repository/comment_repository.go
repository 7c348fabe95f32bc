package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
)

const commentColumns = "id, post_id, user_id, content, created_at"

func commentDest(c *domain.Comment) []any {
	return []any{&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt}
}

type CommentRepository struct {
	conn *pgxpool.Pool
}

func NewCommentRepository(conn *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{conn: conn}
}

// CreateComment inserts the comment and bumps the post's comments_count.
func (r *CommentRepository) CreateComment(ctx context.Context, c domain.Comment) (*domain.Comment, error) {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return nil, domain.Transient(err)
	}
	defer tx.Rollback(ctx)

	var created domain.Comment
	err = tx.QueryRow(ctx,
		"INSERT INTO comments (id, post_id, user_id, content) VALUES ($1, $2, $3, $4) RETURNING "+commentColumns,
		c.ID, c.PostID, c.UserID, c.Content,
	).Scan(commentDest(&created)...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.ErrPostNotFound
		}
		return nil, notFound(err, domain.ErrPostNotFound)
	}

	if _, err := tx.Exec(ctx, "UPDATE posts SET comments_count = comments_count + 1 WHERE id = $1", c.PostID); err != nil {
		return nil, domain.Transient(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Transient(err)
	}
	return &created, nil
}

// DeleteComment removes a comment written by userID and decrements the
// post's comments_count without going below zero.
func (r *CommentRepository) DeleteComment(ctx context.Context, commentID, userID string) (*domain.Comment, error) {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return nil, domain.Transient(err)
	}
	defer tx.Rollback(ctx)

	var c domain.Comment
	err = tx.QueryRow(ctx,
		"SELECT "+commentColumns+" FROM comments WHERE id = $1 FOR UPDATE",
		commentID,
	).Scan(commentDest(&c)...)
	if err != nil {
		return nil, notFound(err, domain.ErrCommentNotFound)
	}
	if c.UserID != userID {
		return nil, domain.ErrNotOwner
	}

	if _, err := tx.Exec(ctx, "DELETE FROM comments WHERE id = $1", commentID); err != nil {
		return nil, domain.Transient(err)
	}
	if _, err := tx.Exec(ctx, "UPDATE posts SET comments_count = GREATEST(comments_count - 1, 0) WHERE id = $1", c.PostID); err != nil {
		return nil, domain.Transient(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Transient(err)
	}
	return &c, nil
}

func (r *CommentRepository) ListComments(ctx context.Context, postID string, before *pagination.Cursor, limit int) ([]domain.CommentWithAuthor, error) {
	t, id := cursorArgs(before)
	rows, err := r.conn.Query(ctx,
		`SELECT c.id, c.post_id, c.user_id, c.content, c.created_at, `+userColumnsAs("u")+`
		 FROM comments c
		 INNER JOIN users u ON u.id = c.user_id
		 WHERE c.post_id = $1
		   AND ($2::timestamptz IS NULL OR (c.created_at, c.id) < ($2, $3::uuid))
		 ORDER BY c.created_at DESC, c.id DESC
		 LIMIT $4`,
		postID, t, id, limit,
	)
	if err != nil {
		return nil, domain.Transient(err)
	}
	defer rows.Close()

	var out []domain.CommentWithAuthor
	for rows.Next() {
		var cw domain.CommentWithAuthor
		if err := rows.Scan(append(commentDest(&cw.Comment), userDest(&cw.Author)...)...); err != nil {
			return nil, domain.Transient(err)
		}
		out = append(out, cw)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Transient(err)
	}

	return out, nil
}
