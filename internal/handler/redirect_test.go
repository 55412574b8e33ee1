package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"shortlink/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRedirectHandler_ValidAlias_Returns302(t *testing.T) {
	h, m := newHandler()

	m.resolver.On("Resolve", mock.Anything, "Ab2CdE3F", "192.0.2.1", strPtr("curl/8.0")).
		Return(&domain.URLRecord{ID: 1, Alias: "Ab2CdE3F", LongURL: "https://example.com/target", HitCount: 1}, nil)

	req := httptest.NewRequest(http.MethodGet, "/s/Ab2CdE3F", nil)
	req.SetPathValue("alias", "Ab2CdE3F")
	req.Header.Set("User-Agent", "curl/8.0")

	rec := httptest.NewRecorder()

	h.Redirect(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/target", rec.Header().Get("Location"))
	m.resolver.AssertExpectations(t)
}

func TestRedirectHandler_NotFound_Returns404(t *testing.T) {
	h, m := newHandler()

	m.resolver.On("Resolve", mock.Anything, "missing", mock.Anything, mock.Anything).
		Return(nil, domain.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/s/missing", nil)
	req.SetPathValue("alias", "missing")

	rec := httptest.NewRecorder()

	h.Redirect(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestRedirectHandler_StorageError_Returns500(t *testing.T) {
	h, m := newHandler()

	m.resolver.On("Resolve", mock.Anything, "promo", mock.Anything, mock.Anything).
		Return(nil, domain.ErrStorageFailure)

	req := httptest.NewRequest(http.MethodGet, "/s/promo", nil)
	req.SetPathValue("alias", "promo")

	rec := httptest.NewRecorder()

	h.Redirect(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRedirectHandler_MissingUserAgent_PassesNil(t *testing.T) {
	h, m := newHandler()

	m.resolver.On("Resolve", mock.Anything, "promo", mock.Anything, (*string)(nil)).
		Return(&domain.URLRecord{LongURL: "https://example.com"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/s/promo", nil)
	req.SetPathValue("alias", "promo")
	req.Header.Del("User-Agent")

	rec := httptest.NewRecorder()

	h.Redirect(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	m.resolver.AssertExpectations(t)
}

func TestRedirectHandler_ClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		wantIP     string
	}{
		{
			name:       "remote addr",
			remoteAddr: "203.0.113.9:54321",
			wantIP:     "203.0.113.9",
		},
		{
			name:       "forwarded for first hop",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"},
			remoteAddr: "10.0.0.1:80",
			wantIP:     "198.51.100.7",
		},
		{
			name:       "real ip",
			headers:    map[string]string{"X-Real-IP": "198.51.100.8"},
			remoteAddr: "10.0.0.1:80",
			wantIP:     "198.51.100.8",
		},
		{
			name:       "forwarded for wins over real ip",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7", "X-Real-IP": "198.51.100.8"},
			remoteAddr: "10.0.0.1:80",
			wantIP:     "198.51.100.7",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "203.0.113.9",
			wantIP:     "203.0.113.9",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, m := newHandler()
			m.resolver.On("Resolve", mock.Anything, "promo", tc.wantIP, mock.Anything).
				Return(&domain.URLRecord{LongURL: "https://example.com"}, nil)

			req := httptest.NewRequest(http.MethodGet, "/s/promo", nil)
			req.SetPathValue("alias", "promo")
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			rec := httptest.NewRecorder()

			h.Redirect(rec, req)

			assert.Equal(t, http.StatusFound, rec.Code)
			m.resolver.AssertExpectations(t)
		})
	}
}
