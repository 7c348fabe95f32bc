package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
)

const edgeColumns = "id, follower_id, following_id, status, created_at"

func edgeDest(e *domain.FollowEdge) []any {
	return []any{&e.ID, &e.FollowerID, &e.FollowingID, &e.Status, &e.CreatedAt}
}

type FollowRepository struct {
	conn *pgxpool.Pool
}

func NewFollowRepository(conn *pgxpool.Pool) *FollowRepository {
	return &FollowRepository{conn: conn}
}

func (r *FollowRepository) GetEdge(ctx context.Context, followerID, followingID string) (*domain.FollowEdge, error) {
	var edge domain.FollowEdge
	err := r.conn.QueryRow(ctx,
		"SELECT "+edgeColumns+" FROM follows WHERE follower_id = $1 AND following_id = $2",
		followerID, followingID,
	).Scan(edgeDest(&edge)...)
	if err != nil {
		return nil, notFound(err, domain.ErrEdgeNotFound)
	}
	return &edge, nil
}

// InsertEdge creates the edge unless one exists for the pair, in which case
// the stored edge is returned with created=false.
func (r *FollowRepository) InsertEdge(ctx context.Context, followerID, followingID string, status domain.FollowStatus) (*domain.FollowEdge, bool, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, false, err
	}

	var edge domain.FollowEdge
	err = r.conn.QueryRow(ctx,
		`INSERT INTO follows (id, follower_id, following_id, status) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (follower_id, following_id) DO NOTHING
		 RETURNING `+edgeColumns,
		id.String(), followerID, followingID, status,
	).Scan(edgeDest(&edge)...)
	if err == nil {
		return &edge, true, nil
	}
	if isForeignKeyViolation(err) {
		return nil, false, domain.ErrUserNotFound
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, notFound(err, domain.ErrEdgeNotFound)
	}

	existing, err := r.GetEdge(ctx, followerID, followingID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// DeleteEdge removes the edge and returns it, or ErrEdgeNotFound.
func (r *FollowRepository) DeleteEdge(ctx context.Context, followerID, followingID string) (*domain.FollowEdge, error) {
	var edge domain.FollowEdge
	err := r.conn.QueryRow(ctx,
		"DELETE FROM follows WHERE follower_id = $1 AND following_id = $2 RETURNING "+edgeColumns,
		followerID, followingID,
	).Scan(edgeDest(&edge)...)
	if err != nil {
		return nil, notFound(err, domain.ErrEdgeNotFound)
	}
	return &edge, nil
}

// AcceptEdge flips a pending edge to accepted. changed is false when the
// edge was already accepted.
func (r *FollowRepository) AcceptEdge(ctx context.Context, followerID, followingID string) (*domain.FollowEdge, bool, error) {
	var edge domain.FollowEdge
	err := r.conn.QueryRow(ctx,
		`UPDATE follows SET status = 'accepted'
		 WHERE follower_id = $1 AND following_id = $2 AND status = 'pending'
		 RETURNING `+edgeColumns,
		followerID, followingID,
	).Scan(edgeDest(&edge)...)
	if err == nil {
		return &edge, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, notFound(err, domain.ErrEdgeNotFound)
	}

	existing, err := r.GetEdge(ctx, followerID, followingID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *FollowRepository) ListFollowers(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.Connection, error) {
	return r.listConnections(ctx, "f.following_id", "f.follower_id", userID, before, limit)
}

func (r *FollowRepository) ListFollowing(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.Connection, error) {
	return r.listConnections(ctx, "f.follower_id", "f.following_id", userID, before, limit)
}

func (r *FollowRepository) listConnections(ctx context.Context, anchor, other, userID string, before *pagination.Cursor, limit int) ([]domain.Connection, error) {
	t, id := cursorArgs(before)
	rows, err := r.conn.Query(ctx,
		`SELECT f.id, f.follower_id, f.following_id, f.status, f.created_at, `+userColumnsAs("u")+`
		 FROM follows f
		 INNER JOIN users u ON u.id = `+other+`
		 WHERE `+anchor+` = $1 AND f.status = 'accepted'
		   AND ($2::timestamptz IS NULL OR (f.created_at, f.id) < ($2, $3::uuid))
		 ORDER BY f.created_at DESC, f.id DESC
		 LIMIT $4`,
		userID, t, id, limit,
	)
	if err != nil {
		return nil, domain.Transient(err)
	}
	defer rows.Close()

	var out []domain.Connection
	for rows.Next() {
		var c domain.Connection
		if err := rows.Scan(append(edgeDest(&c.Edge), userDest(&c.User)...)...); err != nil {
			return nil, domain.Transient(err)
		}
		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Transient(err)
	}

	return out, nil
}

func (r *FollowRepository) ListPending(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]domain.PendingRequest, error) {
	t, id := cursorArgs(before)
	rows, err := r.conn.Query(ctx,
		`SELECT f.id, f.follower_id, f.following_id, f.status, f.created_at, `+userColumnsAs("u")+`
		 FROM follows f
		 INNER JOIN users u ON u.id = f.follower_id
		 WHERE f.following_id = $1 AND f.status = 'pending'
		   AND ($2::timestamptz IS NULL OR (f.created_at, f.id) < ($2, $3::uuid))
		 ORDER BY f.created_at DESC, f.id DESC
		 LIMIT $4`,
		userID, t, id, limit,
	)
	if err != nil {
		return nil, domain.Transient(err)
	}
	defer rows.Close()

	var out []domain.PendingRequest
	for rows.Next() {
		var p domain.PendingRequest
		if err := rows.Scan(append(edgeDest(&p.Edge), userDest(&p.Follower)...)...); err != nil {
			return nil, domain.Transient(err)
		}
		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Transient(err)
	}

	return out, nil
}

func (r *FollowRepository) Stats(ctx context.Context, userID string) (domain.FollowStats, error) {
	var s domain.FollowStats
	err := r.conn.QueryRow(ctx,
		`SELECT
			(SELECT count(*) FROM follows WHERE following_id = $1 AND status = 'accepted'),
			(SELECT count(*) FROM follows WHERE follower_id = $1 AND status = 'accepted')`,
		userID,
	).Scan(&s.FollowersCount, &s.FollowingCount)
	if err != nil {
		return domain.FollowStats{}, domain.Transient(err)
	}
	return s, nil
}
