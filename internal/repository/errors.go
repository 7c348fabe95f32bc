package repository

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

// isBadID reports a malformed uuid parameter, which can match no row.
func isBadID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}

// notFound maps pgx.ErrNoRows to sentinel and marks anything else transient.
func notFound(err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) || isBadID(err) {
		return sentinel
	}
	return domain.Transient(err)
}

// cursorArgs expands a cursor into the ($n, $n+1) pair of a keyset bound.
// Both are NULL for a first page.
func cursorArgs(c *pagination.Cursor) (any, any) {
	if c == nil {
		return nil, nil
	}
	return c.SortKey, c.ID
}
