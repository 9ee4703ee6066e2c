package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/faq-rag/utils"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// ServiceInfo describes the running service on GET /
type ServiceInfo struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Environment string   `json:"environment"`
	Store       string   `json:"store"`
	Embedder    string   `json:"embedder"`
	Model       string   `json:"model"`
	Endpoints   []string `json:"endpoints"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	store  Pinger
	info   ServiceInfo
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(store Pinger, info ServiceInfo, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		info:   info,
		logger: logger,
	}
}

// HandleRoot handles GET /
func (h *HealthHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.info)
}

// HandleHealth handles GET /healthz; always 200 while the process runs
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz by pinging the document store
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if h.store == nil {
		checks["store"] = "not_initialized"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("store health check failed", zap.String("store", h.store.Name()), zap.Error(err))
		checks["store"] = "unhealthy"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "healthy"
	}

	_ = utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}})
}
