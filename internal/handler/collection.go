package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/social"
)

func (h *Handler) shelf(kind domain.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := social.ShelfQuery{UserID: chi.URLParam(r, "id"), Kind: kind}
		writePage(h, w, r, h.social.ShelfSource(), q)
	}
}

func (h *Handler) addEntry(kind domain.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.AddEntryRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		entry, created, err := h.social.AddEntry(r.Context(), viewer(r), kind, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, entry)
	}
}

func (h *Handler) removeEntry(w http.ResponseWriter, r *http.Request) {
	if _, err := h.social.RemoveEntry(r.Context(), viewer(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) moveEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.social.MoveToCollection(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
