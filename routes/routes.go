package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/faq-rag/app"
	"github.com/upb/faq-rag/handlers"
	"github.com/upb/faq-rag/middleware"
	"github.com/upb/faq-rag/utils"
)

// ServiceName is reported on GET /
const ServiceName = "faq-rag"

// Version is overridden at build time with -ldflags
var Version = "dev"

var publicEndpoints = []string{
	"GET /",
	"GET /healthz",
	"GET /readyz",
	"POST /generate",
	"POST /api/v1/questions",
	"GET /api/v1/documents/count",
}

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.ExposeRequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	if cfg.Server.WriteTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.WriteTimeout))
	}

	allowedOrigins := cfg.Server.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:*", "https://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.Documents, handlers.ServiceInfo{
		Name:        ServiceName,
		Version:     Version,
		Environment: cfg.Environment,
		Store:       deps.Documents.Name(),
		Embedder:    deps.Embedder.Name(),
		Model:       cfg.LLM.Model,
		Endpoints:   publicEndpoints,
	}, deps.Logger)
	questions := handlers.NewQuestionHandler(deps.Pipeline, deps.Logger)
	documents := handlers.NewDocumentHandler(deps.Ingestion, deps.Documents, deps.Logger)
	answers := handlers.NewAnswerHandler(deps.Answers, deps.Logger)

	r.Get("/", health.HandleRoot)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	r.Post("/generate", questions.HandleAsk)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/questions", questions.HandleAsk)
		r.Get("/documents/count", documents.HandleCount)

		// Corpus and answer log management (require admin role)
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.RequireRole(middleware.RoleAdmin))
			r.Post("/documents", documents.HandleIngest)
			r.Get("/answers", answers.HandleList)
			r.Get("/answers/{id}", answers.HandleGet)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
