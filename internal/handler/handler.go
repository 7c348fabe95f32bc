// Package handler exposes the service over HTTP with chi, plus a websocket
// stream of changes.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Tetsu-is/crate-digger/internal/auth"
	"github.com/Tetsu-is/crate-digger/internal/config"
	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/log"
	"github.com/Tetsu-is/crate-digger/internal/pagination"
	"github.com/Tetsu-is/crate-digger/internal/realtime"
	"github.com/Tetsu-is/crate-digger/internal/relationship"
	"github.com/Tetsu-is/crate-digger/internal/social"
)

// Users is the account store behind signup, login and profiles.
type Users interface {
	CreateUser(ctx context.Context, userID, name, password string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	Authenticate(ctx context.Context, name, password string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error)
}

type Deps struct {
	Users     Users
	Relations *relationship.Store
	Social    *social.Service
	Issuer    *auth.Issuer
	// Changes feeds /ws/changes. nil disables the route.
	Changes realtime.Subscriber
	Limits  config.PaginationConfig
}

type Handler struct {
	users     Users
	relations *relationship.Store
	social    *social.Service
	issuer    *auth.Issuer
	changes   realtime.Subscriber
	limits    config.PaginationConfig
}

func New(d Deps) *Handler {
	return &Handler{
		users:     d.Users,
		relations: d.Relations,
		social:    d.Social,
		issuer:    d.Issuer,
		changes:   d.Changes,
		limits:    d.Limits,
	}
}

// Routes registers every endpoint on r. Everything but signup and login
// requires a token.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/signup", h.signup)
	r.Post("/auth/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(h.issuer.Middleware)

		r.Patch("/me", h.updateProfile)
		r.Get("/me/follow-requests", h.followRequests)
		r.Post("/me/follow-requests/{followerID}/accept", h.acceptRequest)
		r.Post("/me/follow-requests/{followerID}/reject", h.rejectRequest)
		r.Post("/me/collection", h.addEntry(domain.KindCollection))
		r.Post("/me/wishlist", h.addEntry(domain.KindWishlist))
		r.Delete("/me/entries/{id}", h.removeEntry)
		r.Post("/me/entries/{id}/move", h.moveEntry)

		r.Get("/users/{id}", h.profile)
		r.Post("/users/{id}/follow", h.follow)
		r.Delete("/users/{id}/follow", h.unfollow)
		r.Get("/users/{id}/followers", h.followers)
		r.Get("/users/{id}/following", h.following)
		r.Get("/users/{id}/posts", h.userPosts)
		r.Get("/users/{id}/collection", h.shelf(domain.KindCollection))
		r.Get("/users/{id}/wishlist", h.shelf(domain.KindWishlist))

		r.Get("/feed", h.feed)
		r.Post("/posts", h.createPost)
		r.Delete("/posts/{id}", h.deletePost)
		r.Post("/posts/{id}/like", h.like)
		r.Delete("/posts/{id}/like", h.unlike)
		r.Get("/posts/{id}/comments", h.comments)
		r.Post("/posts/{id}/comments", h.addComment)
		r.Delete("/comments/{id}", h.deleteComment)

		r.Get("/notifications", h.notifications)
		r.Get("/notifications/unread-count", h.unreadCount)
		r.Post("/notifications/{id}/read", h.markRead)
		r.Post("/notifications/read-all", h.markAllRead)

		if h.changes != nil {
			r.Get("/ws/changes", h.changeStream)
		}
	})
}

func viewer(r *http.Request) string {
	id, _ := auth.UserIDFrom(r.Context())
	return id
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadBody
	}
	return nil
}

var errBadBody = errors.New("invalid request body")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto a status. Internal errors are logged and their
// text is not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger := log.Ctx(r.Context())
		logger.Error().Err(err).Msg("request failed")
		msg = "internal server error"
	}
	writeJSON(w, status, domain.ErrorResponse{Code: status, Message: msg})
}

// pageParams reads cursor and limit. A missing limit takes the default and
// a large one is clamped.
func (h *Handler) pageParams(r *http.Request) (*pagination.Cursor, int, error) {
	q := r.URL.Query()
	cursor, err := pagination.DecodeCursor(q.Get("cursor"))
	if err != nil {
		return nil, 0, err
	}
	limit := h.limits.DefaultLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, 0, domain.ErrInvalidLimit
		}
		limit = min(n, h.limits.MaxLimit)
	}
	return cursor, limit, nil
}

func writePage[T pagination.Item, P any](h *Handler, w http.ResponseWriter, r *http.Request, src pagination.Source[T, P], pred P) {
	cursor, limit, err := h.pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	pag := pagination.New(src)
	var page pagination.Page[T]
	if cursor == nil {
		page, err = pag.FetchInitial(r.Context(), pred, limit)
	} else {
		page, err = pag.FetchMore(r.Context(), pred, cursor, limit)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := domain.PageResponse[T]{
		Items: page.Items,
		Pagination: domain.Pagination{
			Count:   len(page.Items),
			HasMore: page.HasMore,
		},
	}
	if resp.Items == nil {
		resp.Items = []T{}
	}
	if page.HasMore && page.Cursor != nil {
		resp.Pagination.NextCursor = page.Cursor.Encode()
	}
	writeJSON(w, http.StatusOK, resp)
}
