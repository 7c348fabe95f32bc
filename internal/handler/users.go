package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/log"
)

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.SignupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Password == "" {
		writeError(w, r, domain.ErrEmptyQuery)
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.CreateUser(ctx, id.String(), req.Name, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.issuer.GenerateToken(user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger := log.Ctx(ctx)
	logger.Info().Str(log.FieldUserID, user.ID).Msg("user signed up")
	writeJSON(w, http.StatusCreated, domain.SignupResponse{User: user, Token: token})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Name, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.issuer.GenerateToken(user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.LoginResponse{User: user, Token: token})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProfileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.users.UpdateProfile(r.Context(), viewer(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// profile loads the user, their counts and the viewer's relation to them
// concurrently.
func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	me := viewer(r)

	var p domain.Profile
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		u, err := h.users.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		p.User = *u
		return nil
	})
	g.Go(func() error {
		stats, err := h.relations.Stats(ctx, userID)
		p.Stats = stats
		return err
	})
	if me != userID {
		g.Go(func() error {
			rel, err := h.relations.IsFollowing(ctx, me, userID)
			p.Relation = rel
			return err
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) follow(w http.ResponseWriter, r *http.Request) {
	edge, err := h.relations.Follow(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

func (h *Handler) unfollow(w http.ResponseWriter, r *http.Request) {
	if err := h.relations.Unfollow(r.Context(), viewer(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) followers(w http.ResponseWriter, r *http.Request) {
	writePage(h, w, r, h.relations.FollowersSource(), chi.URLParam(r, "id"))
}

func (h *Handler) following(w http.ResponseWriter, r *http.Request) {
	writePage(h, w, r, h.relations.FollowingSource(), chi.URLParam(r, "id"))
}

func (h *Handler) followRequests(w http.ResponseWriter, r *http.Request) {
	writePage(h, w, r, h.relations.PendingSource(), viewer(r))
}

func (h *Handler) acceptRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.relations.AcceptRequest(r.Context(), chi.URLParam(r, "followerID"), viewer(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rejectRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.relations.RejectRequest(r.Context(), chi.URLParam(r, "followerID"), viewer(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
