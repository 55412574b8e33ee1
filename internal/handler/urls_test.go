package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shortlink/internal/domain"
	"shortlink/internal/handler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGetHandler_Returns200(t *testing.T) {
	h, m := newHandler()

	m.urls.On("FindByID", mock.Anything, int64(7)).
		Return(&domain.URLRecord{ID: 7, Alias: "promo", LongURL: "https://example.com", HitCount: 42, CreatedAt: createdAt}, nil)

	req := httptest.NewRequest(http.MethodGet, "/urls/7", nil)
	req.SetPathValue("id", "7")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp handler.URLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.HitCount)
	assert.Equal(t, "http://localhost:8080/s/promo", resp.ShortURL)
	assert.Nil(t, resp.DeletedAt)
}

func TestGetHandler_DeletedRecord_IncludesDeletedAt(t *testing.T) {
	h, m := newHandler()

	deletedAt := createdAt.Add(90 * time.Minute)
	m.urls.On("FindByID", mock.Anything, int64(7)).
		Return(&domain.URLRecord{ID: 7, Alias: "promo", LongURL: "https://example.com", CreatedAt: createdAt, DeletedAt: &deletedAt}, nil)

	req := httptest.NewRequest(http.MethodGet, "/urls/7", nil)
	req.SetPathValue("id", "7")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp handler.URLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.DeletedAt)
	assert.Equal(t, "2024-01-15T13:30:00Z", *resp.DeletedAt)
}

func TestGetHandler_Unknown_Returns404(t *testing.T) {
	h, m := newHandler()

	m.urls.On("FindByID", mock.Anything, int64(99)).Return(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/urls/99", nil)
	req.SetPathValue("id", "99")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetHandler_InvalidID_Returns400(t *testing.T) {
	for _, id := range []string{"abc", "0", "-3", ""} {
		t.Run(id, func(t *testing.T) {
			h, m := newHandler()

			req := httptest.NewRequest(http.MethodGet, "/urls/x", nil)
			req.SetPathValue("id", id)
			rec := httptest.NewRecorder()

			h.Get(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			m.urls.AssertNotCalled(t, "FindByID")
		})
	}
}

func TestDeleteHandler_Returns204(t *testing.T) {
	h, m := newHandler()

	m.urls.On("SoftDelete", mock.Anything, int64(7)).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/urls/7", nil)
	req.SetPathValue("id", "7")
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	m.urls.AssertExpectations(t)
}

func TestDeleteHandler_Unknown_Returns404(t *testing.T) {
	h, m := newHandler()

	m.urls.On("SoftDelete", mock.Anything, int64(99)).Return(domain.ErrNotFound)

	req := httptest.NewRequest(http.MethodDelete, "/urls/99", nil)
	req.SetPathValue("id", "99")
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
