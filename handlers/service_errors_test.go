package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/faq-rag/services"
	"github.com/upb/faq-rag/utils"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{"not found error", services.ErrAnswerNotFound, http.StatusNotFound, "not_found"},
		{"validation error", services.ErrEmptyQuestion, http.StatusBadRequest, "bad_request"},
		{"unauthorized error", services.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"store unavailable", services.NewStoreUnavailableError("postgres", errors.New("dial")), http.StatusServiceUnavailable, "service_unavailable"},
		{"embedding backend", services.NewEmbeddingBackendError("openai", errors.New("429")), http.StatusBadGateway, "bad_gateway"},
		{"generation", services.NewGenerationError("empty content", nil), http.StatusBadGateway, "bad_gateway"},
		{"configuration", services.NewConfigurationError("bad"), http.StatusInternalServerError, "internal_error"},
		{"internal", services.ErrInternal, http.StatusInternalServerError, "internal_error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedError, response.Error)
		})
	}
}

func TestHandleServiceError_HidesInternalMessages(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, errors.New("pq: password authentication failed"), zap.NewNop())

	assert.NotContains(t, w.Body.String(), "password")
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, nil, zap.NewNop())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	err := &utils.ValidationError{Message: "Validation failed", Fields: map[string]string{"question": "question is required"}}
	HandleValidationError(w, err, zap.NewNop())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "question is required", response.Details["question"])

	w = httptest.NewRecorder()
	HandleValidationError(w, errors.New("plain"), zap.NewNop())
	assert.Contains(t, w.Body.String(), "plain")
}
