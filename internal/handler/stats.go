package handler

import "net/http"

// Stats handles GET /stats requests.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.ComputeStatistics(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "compute statistics")
		return
	}

	h.writeJSON(w, http.StatusOK, toStatisticResponses(stats))
}
