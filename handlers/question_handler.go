package handlers

import (
	"context"
	"net/http"

	"github.com/upb/faq-rag/middleware"
	"github.com/upb/faq-rag/services/pipeline"
	"github.com/upb/faq-rag/utils"
	"go.uber.org/zap"
)

// QuestionService answers end-user questions
type QuestionService interface {
	AnswerQuestion(ctx context.Context, question string) (*pipeline.Response, error)
}

// QuestionRequest is the body of POST /generate
type QuestionRequest struct {
	Question string `json:"question"`
}

// QuestionHandler serves the question answering endpoint
type QuestionHandler struct {
	service QuestionService
	logger  *zap.Logger
}

// NewQuestionHandler creates a new QuestionHandler
func NewQuestionHandler(service QuestionService, logger *zap.Logger) *QuestionHandler {
	return &QuestionHandler{
		service: service,
		logger:  logger,
	}
}

// HandleAsk handles POST /generate and POST /api/v1/questions.
// The body is always a full pipeline response; the status reflects its outcome.
func (h *QuestionHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req QuestionRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteJSON(w, http.StatusBadRequest, pipeline.RejectedResponse(requestID, err.Error()))
		return
	}

	if requestID != "" {
		ctx = pipeline.WithRequestID(ctx, requestID)
	}

	resp, err := h.service.AnswerQuestion(ctx, req.Question)
	if resp == nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if err != nil {
		h.logger.Debug("question failed",
			zap.String("request_id", resp.RequestID),
			zap.String("error_code", resp.ErrorCode),
			zap.Error(err))
	}

	if werr := utils.WriteJSON(w, StatusForResponse(resp), resp); werr != nil {
		h.logger.Error("failed to write response", zap.Error(werr))
	}
}

// StatusForResponse maps a pipeline outcome to its HTTP status
func StatusForResponse(resp *pipeline.Response) int {
	if resp.State == pipeline.StateComplete {
		return http.StatusOK
	}
	switch resp.ErrorCode {
	case pipeline.ErrCodeValidation:
		return http.StatusBadRequest
	case pipeline.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case pipeline.ErrCodeGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
