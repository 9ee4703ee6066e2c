package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/faq-rag/repositories"
	"github.com/upb/faq-rag/services"
	"github.com/upb/faq-rag/utils"
	"go.uber.org/zap"
)

const maxAnswerPageSize = 200

// AnswerHandler exposes the answer log. repo is nil when the store has no answer log.
type AnswerHandler struct {
	repo   repositories.AnswerRepository
	logger *zap.Logger
}

// NewAnswerHandler creates a new AnswerHandler
func NewAnswerHandler(repo repositories.AnswerRepository, logger *zap.Logger) *AnswerHandler {
	return &AnswerHandler{
		repo:   repo,
		logger: logger,
	}
}

// HandleList handles GET /api/v1/answers?limit=&offset=
func (h *AnswerHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		_ = utils.WriteNotFound(w, "answer log is not enabled")
		return
	}

	limit, err := utils.QueryInt(r, "limit", 50)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	offset, err := utils.QueryInt(r, "offset", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if limit > maxAnswerPageSize {
		limit = maxAnswerPageSize
	}

	records, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"answers": records,
		"limit":   limit,
		"offset":  offset,
	})
}

// HandleGet handles GET /api/v1/answers/{id}
func (h *AnswerHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		_ = utils.WriteNotFound(w, "answer log is not enabled")
		return
	}

	id, err := utils.ValidateUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	rec, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if services.IsNotFoundError(err) {
			_ = utils.WriteNotFound(w, "answer record not found")
			return
		}
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, rec)
}
