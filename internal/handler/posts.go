package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/social"
)

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	writePage(h, w, r, h.social.FeedSource(), viewer(r))
}

func (h *Handler) userPosts(w http.ResponseWriter, r *http.Request) {
	q := social.AuthorQuery{AuthorID: chi.URLParam(r, "id"), ViewerID: viewer(r)}
	writePage(h, w, r, h.social.UserPostsSource(), q)
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePostRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	post, err := h.social.CreatePost(r.Context(), viewer(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.social.DeletePost(r.Context(), viewer(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) like(w http.ResponseWriter, r *http.Request) {
	post, err := h.social.Like(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) unlike(w http.ResponseWriter, r *http.Request) {
	post, err := h.social.Unlike(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) comments(w http.ResponseWriter, r *http.Request) {
	writePage(h, w, r, h.social.CommentsSource(), social.ThreadQuery{PostID: chi.URLParam(r, "id"), ViewerID: viewer(r)})
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCommentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.social.AddComment(r.Context(), viewer(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	if _, err := h.social.DeleteComment(r.Context(), viewer(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
