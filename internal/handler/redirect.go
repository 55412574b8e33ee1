package handler

import (
	"net"
	"net/http"
	"strings"
)

// Redirect handles GET /s/{alias} requests.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	alias := r.PathValue("alias")
	if alias == "" {
		h.writeError(w, http.StatusBadRequest, "validation_error", "alias is required")
		return
	}

	var userAgent *string
	if values, ok := r.Header["User-Agent"]; ok && len(values) > 0 {
		ua := values[0]
		userAgent = &ua
	}

	record, err := h.resolver.Resolve(r.Context(), alias, clientIP(r), userAgent)
	if err != nil {
		h.writeServiceError(w, r, err, "resolve URL")
		return
	}

	http.Redirect(w, r, record.LongURL, http.StatusFound)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
