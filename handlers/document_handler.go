package handlers

import (
	"context"
	"net/http"

	"github.com/upb/faq-rag/middleware"
	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/services/ingestion"
	"github.com/upb/faq-rag/utils"
	"go.uber.org/zap"
)

// Ingester writes knowledge-base documents
type Ingester interface {
	Ingest(ctx context.Context, sources []models.Source, replace bool) (ingestion.Report, error)
}

// DocumentCounter reports the size of the corpus
type DocumentCounter interface {
	Count(ctx context.Context) (int, error)
}

// IngestRequest is the body of POST /api/v1/documents
type IngestRequest struct {
	Documents []models.Source `json:"documents" validate:"required,min=1,dive"`
	Replace   bool            `json:"replace"`
}

// DocumentHandler handles document ingestion and corpus statistics
type DocumentHandler struct {
	ingester Ingester
	counter  DocumentCounter
	logger   *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(ingester Ingester, counter DocumentCounter, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		ingester: ingester,
		counter:  counter,
		logger:   logger,
	}
}

// HandleIngest handles POST /api/v1/documents
func (h *DocumentHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req IngestRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	report, err := h.ingester.Ingest(ctx, req.Documents, req.Replace)
	if err != nil {
		h.logger.Error("ingestion failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, report)
}

// HandleCount handles GET /api/v1/documents/count
func (h *DocumentHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.counter.Count(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, map[string]int{"count": count})
}
