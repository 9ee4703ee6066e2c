package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/services"
	"go.uber.org/zap"
)

// MockAnswerRepository is a mock implementation of AnswerRepository
type MockAnswerRepository struct {
	mock.Mock
}

func (m *MockAnswerRepository) Insert(ctx context.Context, rec *models.AnswerRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockAnswerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AnswerRecord, error) {
	args := m.Called(ctx, id)
	if rec := args.Get(0); rec != nil {
		return rec.(*models.AnswerRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAnswerRepository) List(ctx context.Context, limit, offset int) ([]*models.AnswerRecord, error) {
	args := m.Called(ctx, limit, offset)
	if recs := args.Get(0); recs != nil {
		return recs.([]*models.AnswerRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestAnswerHandler_List(t *testing.T) {
	logger := zap.NewNop()

	t.Run("defaults and cap", func(t *testing.T) {
		repo := new(MockAnswerRepository)
		repo.On("List", mock.Anything, 50, 0).Return([]*models.AnswerRecord{models.NewAnswerRecord("r1", "q")}, nil)
		repo.On("List", mock.Anything, maxAnswerPageSize, 10).Return([]*models.AnswerRecord{}, nil)
		handler := NewAnswerHandler(repo, logger)

		w := httptest.NewRecorder()
		handler.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/v1/answers", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data struct {
				Answers []models.AnswerRecord `json:"answers"`
				Limit   int                   `json:"limit"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Len(t, response.Data.Answers, 1)
		assert.Equal(t, 50, response.Data.Limit)

		w = httptest.NewRecorder()
		handler.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/v1/answers?limit=1000&offset=10", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		repo.AssertExpectations(t)
	})

	t.Run("bad query", func(t *testing.T) {
		handler := NewAnswerHandler(new(MockAnswerRepository), logger)
		w := httptest.NewRecorder()
		handler.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/v1/answers?limit=abc", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("answer log disabled", func(t *testing.T) {
		handler := NewAnswerHandler(nil, logger)
		w := httptest.NewRecorder()
		handler.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/v1/answers", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAnswerHandler_Get(t *testing.T) {
	logger := zap.NewNop()

	t.Run("found", func(t *testing.T) {
		rec := models.NewAnswerRecord("r1", "q")
		repo := new(MockAnswerRepository)
		repo.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
		handler := NewAnswerHandler(repo, logger)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/answers/"+rec.ID.String(), nil), "id", rec.ID.String())
		w := httptest.NewRecorder()
		handler.HandleGet(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), rec.ID.String())
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New()
		repo := new(MockAnswerRepository)
		repo.On("GetByID", mock.Anything, id).Return(nil, services.ErrAnswerNotFound)
		handler := NewAnswerHandler(repo, logger)

		w := httptest.NewRecorder()
		handler.HandleGet(w, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", id.String()))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		handler := NewAnswerHandler(new(MockAnswerRepository), logger)
		w := httptest.NewRecorder()
		handler.HandleGet(w, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "nope"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
