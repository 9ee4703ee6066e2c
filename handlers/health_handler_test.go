package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Name() string                   { return "memory" }
func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response struct {
		Data HealthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response.Data
}

func TestHandleHealth(t *testing.T) {
	handler := NewHealthHandler(nil, ServiceInfo{}, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeHealth(t, w)
	assert.Equal(t, "healthy", data.Status)
	assert.NotEmpty(t, data.Timestamp)
}

func TestHandleReadiness(t *testing.T) {
	tests := []struct {
		name       string
		store      Pinger
		wantStatus int
		wantCheck  string
	}{
		{"store reachable", &fakePinger{}, http.StatusOK, "healthy"},
		{"store down", &fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unhealthy"},
		{"no store", nil, http.StatusServiceUnavailable, "not_initialized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.store, ServiceInfo{}, zap.NewNop())

			w := httptest.NewRecorder()
			handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCheck, decodeHealth(t, w).Checks["store"])
		})
	}
}

func TestHandleRoot(t *testing.T) {
	info := ServiceInfo{Name: "faq-rag", Store: "memory", Endpoints: []string{"POST /generate"}}
	handler := NewHealthHandler(nil, info, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleRoot(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Data ServiceInfo `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, info, response.Data)
}
