package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tetsu-is/crate-digger/internal/domain"
)

const userColumns = "id, name, display_name, bio, avatar_url, is_private, created_at, updated_at"

// userColumnsAs qualifies userColumns with a table alias for joins.
func userColumnsAs(alias string) string {
	cols := strings.Split(userColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func userDest(u *domain.User) []any {
	return []any{&u.ID, &u.Name, &u.DisplayName, &u.Bio, &u.AvatarURL, &u.IsPrivate, &u.CreatedAt, &u.UpdatedAt}
}

type UserRepository struct {
	conn *pgxpool.Pool
}

func NewUserRepository(conn *pgxpool.Pool) *UserRepository {
	return &UserRepository{conn: conn}
}

func (r *UserRepository) CreateUser(ctx context.Context, userID, name, password string) (*domain.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return nil, err
	}

	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return nil, domain.Transient(err)
	}
	defer tx.Rollback(ctx)

	var user domain.User
	err = tx.QueryRow(ctx,
		"INSERT INTO users (id, name, display_name) VALUES ($1, $2, $2) RETURNING "+userColumns,
		userID, name,
	).Scan(userDest(&user)...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateUser
		}
		return nil, domain.Transient(err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO user_auth (user_id, hashed_password) VALUES ($1, $2)",
		userID, hashedPassword,
	)
	if err != nil {
		return nil, domain.Transient(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Transient(err)
	}

	return &user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	err := r.conn.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1",
		userID,
	).Scan(userDest(&user)...)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return &user, nil
}

// Authenticate checks a name/password pair.
func (r *UserRepository) Authenticate(ctx context.Context, name, password string) (*domain.User, error) {
	var (
		user   domain.User
		hashed string
	)
	err := r.conn.QueryRow(ctx,
		"SELECT "+userColumnsAs("u")+", a.hashed_password FROM users u INNER JOIN user_auth a ON a.user_id = u.id WHERE u.name = $1",
		name,
	).Scan(append(userDest(&user), &hashed)...)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrBadCredentials
	} else if err != nil {
		return nil, domain.Transient(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)); err != nil {
		return nil, domain.ErrBadCredentials
	}
	return &user, nil
}

// UpdateProfile writes the non-nil fields of req.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	var user domain.User
	err := r.conn.QueryRow(ctx,
		`UPDATE users SET
			display_name = COALESCE($2, display_name),
			bio = COALESCE($3, bio),
			avatar_url = COALESCE($4, avatar_url),
			is_private = COALESCE($5, is_private),
			updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		userID, req.DisplayName, req.Bio, req.AvatarURL, req.IsPrivate,
	).Scan(userDest(&user)...)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return &user, nil
}
