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

const entryColumns = "id, user_id, kind, album_id, title, artist, cover_url, created_at"

func entryDest(e *domain.CollectionEntry) []any {
	return []any{&e.ID, &e.UserID, &e.Kind, &e.AlbumID, &e.Title, &e.Artist, &e.CoverURL, &e.CreatedAt}
}

type CollectionRepository struct {
	conn *pgxpool.Pool
}

func NewCollectionRepository(conn *pgxpool.Pool) *CollectionRepository {
	return &CollectionRepository{conn: conn}
}

// AddEntry stores an album on a shelf. Adding an album that is already on
// that shelf returns the stored entry with created=false.
func (r *CollectionRepository) AddEntry(ctx context.Context, e domain.CollectionEntry) (*domain.CollectionEntry, bool, error) {
	var entry domain.CollectionEntry
	err := r.conn.QueryRow(ctx,
		`INSERT INTO collection_entries (id, user_id, kind, album_id, title, artist, cover_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, kind, album_id) DO NOTHING
		 RETURNING `+entryColumns,
		e.ID, e.UserID, e.Kind, e.AlbumID, e.Title, e.Artist, e.CoverURL,
	).Scan(entryDest(&entry)...)
	if err == nil {
		return &entry, true, nil
	}
	if isForeignKeyViolation(err) {
		return nil, false, domain.ErrUserNotFound
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, domain.Transient(err)
	}

	err = r.conn.QueryRow(ctx,
		"SELECT "+entryColumns+" FROM collection_entries WHERE user_id = $1 AND kind = $2 AND album_id = $3",
		e.UserID, e.Kind, e.AlbumID,
	).Scan(entryDest(&entry)...)
	if err != nil {
		return nil, false, notFound(err, domain.ErrEntryNotFound)
	}
	return &entry, false, nil
}

func (r *CollectionRepository) RemoveEntry(ctx context.Context, entryID, userID string) (*domain.CollectionEntry, error) {
	var entry domain.CollectionEntry
	err := r.conn.QueryRow(ctx,
		"DELETE FROM collection_entries WHERE id = $1 AND user_id = $2 RETURNING "+entryColumns,
		entryID, userID,
	).Scan(entryDest(&entry)...)
	if err != nil {
		return nil, notFound(err, domain.ErrEntryNotFound)
	}
	return &entry, nil
}

// MoveToCollection turns a wishlist entry into a collection entry, keeping
// an existing collection entry for the same album if there is one.
func (r *CollectionRepository) MoveToCollection(ctx context.Context, entryID, userID string) (*domain.CollectionEntry, error) {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return nil, domain.Transient(err)
	}
	defer tx.Rollback(ctx)

	var wish domain.CollectionEntry
	err = tx.QueryRow(ctx,
		"DELETE FROM collection_entries WHERE id = $1 AND user_id = $2 AND kind = 'wishlist' RETURNING "+entryColumns,
		entryID, userID,
	).Scan(entryDest(&wish)...)
	if err != nil {
		return nil, notFound(err, domain.ErrEntryNotFound)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	var entry domain.CollectionEntry
	err = tx.QueryRow(ctx,
		`INSERT INTO collection_entries (id, user_id, kind, album_id, title, artist, cover_url)
		 VALUES ($1, $2, 'collection', $3, $4, $5, $6)
		 ON CONFLICT (user_id, kind, album_id) DO UPDATE SET title = EXCLUDED.title
		 RETURNING `+entryColumns,
		id.String(), userID, wish.AlbumID, wish.Title, wish.Artist, wish.CoverURL,
	).Scan(entryDest(&entry)...)
	if err != nil {
		return nil, domain.Transient(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Transient(err)
	}
	return &entry, nil
}

func (r *CollectionRepository) ListEntries(ctx context.Context, userID string, kind domain.EntryKind, before *pagination.Cursor, limit int) ([]domain.CollectionEntry, error) {
	t, id := cursorArgs(before)
	rows, err := r.conn.Query(ctx,
		`SELECT `+entryColumns+`
		 FROM collection_entries
		 WHERE user_id = $1 AND kind = $2
		   AND ($3::timestamptz IS NULL OR (created_at, id) < ($3, $4::uuid))
		 ORDER BY created_at DESC, id DESC
		 LIMIT $5`,
		userID, kind, t, id, limit,
	)
	if err != nil {
		return nil, domain.Transient(err)
	}
	defer rows.Close()

	var out []domain.CollectionEntry
	for rows.Next() {
		var e domain.CollectionEntry
		if err := rows.Scan(entryDest(&e)...); err != nil {
			return nil, domain.Transient(err)
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Transient(err)
	}

	return out, nil
}
