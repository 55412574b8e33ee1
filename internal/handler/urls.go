package handler

import (
	"net/http"

	"shortlink/internal/domain"
)

// Get handles GET /urls/{id} requests. Soft-deleted records are returned
// with deleted_at set.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	record, err := h.urls.FindByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "get short URL")
		return
	}
	if record == nil {
		h.writeServiceError(w, r, domain.ErrNotFound, "get short URL")
		return
	}

	h.writeJSON(w, http.StatusOK, h.toURLResponse(record))
}

// Delete handles DELETE /urls/{id} requests.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if err := h.urls.SoftDelete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err, "delete short URL")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
