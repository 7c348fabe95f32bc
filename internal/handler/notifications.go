package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tetsu-is/crate-digger/internal/domain"
)

func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	writePage(h, w, r, h.social.NotificationsSource(), viewer(r))
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.social.UnreadCount(r.Context(), viewer(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.UnreadCountResponse{Count: n})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.social.MarkRead(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	if _, err := h.social.MarkAllRead(r.Context(), viewer(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
