package handler

import (
	"encoding/json"
	"net/http"
)

// Create handles POST /urls requests.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	if err := validateURL(req.URL); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if err := validateAlias(req.Alias); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	record, err := h.urls.Create(r.Context(), req.URL, req.Alias)
	if err != nil {
		h.writeServiceError(w, r, err, "create short URL")
		return
	}

	h.writeJSON(w, http.StatusCreated, h.toURLResponse(record))
}
