package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/services"
	"github.com/upb/faq-rag/services/ingestion"
	"go.uber.org/zap"
)

// MockIngester is a mock implementation of Ingester
type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Ingest(ctx context.Context, sources []models.Source, replace bool) (ingestion.Report, error) {
	args := m.Called(ctx, sources, replace)
	return args.Get(0).(ingestion.Report), args.Error(1)
}

// MockCounter is a mock implementation of DocumentCounter
type MockCounter struct {
	mock.Mock
}

func (m *MockCounter) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestHandleIngest(t *testing.T) {
	logger := zap.NewNop()

	t.Run("successful ingestion", func(t *testing.T) {
		ingester := new(MockIngester)
		handler := NewDocumentHandler(ingester, nil, logger)

		docs := []models.Source{{SourceURL: "https://faq.example/a", Title: "A", Content: "Question: q\nAnswer: a"}}
		ingester.On("Ingest", mock.Anything, docs, true).
			Return(ingestion.Report{Received: 1, Embedded: 1, Written: 1}, nil)

		body, _ := json.Marshal(IngestRequest{Documents: docs, Replace: true})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", bytes.NewReader(body))
		w := httptest.NewRecorder()
		handler.HandleIngest(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Data ingestion.Report `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, 1, response.Data.Written)
		ingester.AssertExpectations(t)
	})

	t.Run("validation failure", func(t *testing.T) {
		ingester := new(MockIngester)
		handler := NewDocumentHandler(ingester, nil, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents",
			bytes.NewReader([]byte(`{"documents":[{"title":"no url"}]}`)))
		w := httptest.NewRecorder()
		handler.HandleIngest(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "documents[0].source_url")
		ingester.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty document list", func(t *testing.T) {
		handler := NewDocumentHandler(new(MockIngester), nil, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", bytes.NewReader([]byte(`{"documents":[]}`)))
		w := httptest.NewRecorder()
		handler.HandleIngest(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("embedding backend failure", func(t *testing.T) {
		ingester := new(MockIngester)
		handler := NewDocumentHandler(ingester, nil, logger)
		ingester.On("Ingest", mock.Anything, mock.Anything, false).
			Return(ingestion.Report{Received: 1}, services.NewEmbeddingBackendError("openai", errors.New("quota")))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents",
			bytes.NewReader([]byte(`{"documents":[{"source_url":"https://faq.example/a","content":"c"}]}`)))
		w := httptest.NewRecorder()
		handler.HandleIngest(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestHandleCount(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns count", func(t *testing.T) {
		counter := new(MockCounter)
		counter.On("Count", mock.Anything).Return(42, nil)
		handler := NewDocumentHandler(nil, counter, logger)

		w := httptest.NewRecorder()
		handler.HandleCount(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents/count", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":{"count":42}}`, w.Body.String())
	})

	t.Run("store unavailable", func(t *testing.T) {
		counter := new(MockCounter)
		counter.On("Count", mock.Anything).Return(0, services.NewStoreUnavailableError("postgres", errors.New("down")))
		handler := NewDocumentHandler(nil, counter, logger)

		w := httptest.NewRecorder()
		handler.HandleCount(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents/count", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
