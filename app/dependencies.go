package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/upb/faq-rag/config"
	"github.com/upb/faq-rag/middleware"
	"github.com/upb/faq-rag/repositories"
	"github.com/upb/faq-rag/repositories/memory"
	"github.com/upb/faq-rag/repositories/postgres"
	"github.com/upb/faq-rag/repositories/sqlite"
	"github.com/upb/faq-rag/services"
	"github.com/upb/faq-rag/services/audit"
	"github.com/upb/faq-rag/services/embedding"
	"github.com/upb/faq-rag/services/evaluation"
	"github.com/upb/faq-rag/services/events"
	"github.com/upb/faq-rag/services/generation"
	"github.com/upb/faq-rag/services/ingestion"
	"github.com/upb/faq-rag/services/pipeline"
	"github.com/upb/faq-rag/services/providers"
	"github.com/upb/faq-rag/services/providers/openai"
	"github.com/upb/faq-rag/services/ratelimit"
	"github.com/upb/faq-rag/services/retrieval"
	"go.uber.org/zap"
)

// dimensionProbe is embedded once at startup when the model's dimension is not known in advance
const dimensionProbe = "dimension probe"

// Dependencies holds every wired component of the application.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// RepoFactory is set for the postgres backend only
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Documents repositories.DocumentStore
	Answers   repositories.AnswerRepository

	// External backends
	ProviderRegistry *providers.Registry
	EmbeddingLimiter *ratelimit.RateLimitService
	LLMLimiter       *ratelimit.RateLimitService
	Embedder         embedding.Embedder
	Publisher        events.Publisher

	// Services
	Retrieval  *retrieval.RetrievalService
	Generation *generation.GenerationService
	Evaluation *evaluation.EvaluationService
	Ingestion  *ingestion.IngestionService
	Audit      *audit.AuditService
	Pipeline   *pipeline.PipelineService

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies.
// On error everything opened so far is closed again.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (deps *Dependencies, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps = &Dependencies{
		Config: cfg,
		Logger: logger,
	}
	defer func() {
		if err != nil {
			_ = deps.closeResources()
			deps = nil
		}
	}()

	deps.initLimiters(cfg)

	if err = deps.initEmbedder(cfg); err != nil {
		return deps, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	if err = deps.initStore(ctx, cfg); err != nil {
		return deps, fmt.Errorf("failed to initialize document store: %w", err)
	}

	if err = deps.initProviders(cfg); err != nil {
		return deps, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err = deps.initServices(cfg); err != nil {
		return deps, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err = deps.initAudit(cfg); err != nil {
		return deps, fmt.Errorf("failed to initialize audit: %w", err)
	}

	deps.initPipeline(cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("store", deps.Documents.Name()),
		zap.String("embedder", deps.Embedder.Name()),
		zap.String("model", cfg.LLM.Model))
	return deps, nil
}

func (d *Dependencies) initLimiters(cfg *config.Config) {
	d.EmbeddingLimiter = ratelimit.NewRateLimitService("embedding", ratelimit.Config{
		RequestsPerSecond: cfg.Embedding.RPS,
		Burst:             cfg.Embedding.Burst,
	}, d.Logger)
	d.LLMLimiter = ratelimit.NewRateLimitService("llm", ratelimit.Config{
		RequestsPerSecond: cfg.LLM.RPS,
		Burst:             cfg.LLM.Burst,
	}, d.Logger)
}

func (d *Dependencies) initEmbedder(cfg *config.Config) error {
	embedder, err := embedding.New(cfg.Embedding, d.EmbeddingLimiter, d.Logger)
	if err != nil {
		return err
	}
	d.Embedder = embedder
	d.Logger.Info("embedder initialized",
		zap.String("backend", embedder.Name()),
		zap.Int("dimension", embedder.Dimension()))
	return nil
}

// initStore opens the configured document store. Postgres needs the vector
// dimension up front to create its schema.
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	switch strings.ToLower(cfg.Store.Backend) {
	case config.StoreBackendPostgres:
		dimension, err := d.resolveDimension(ctx)
		if err != nil {
			return err
		}

		factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create repository factory: %w", err)
		}
		d.RepoFactory = factory

		if err := factory.GetDB().HealthCheck(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		if err := factory.InitSchema(ctx, dimension); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}

		repos := factory.NewRepositories(dimension)
		d.Documents = repos.Documents
		d.Answers = repos.Answers

		d.Logger.Info("database connection established",
			zap.String("connection", cfg.Database.LogString()),
			zap.Int("dimension", dimension))

	case config.StoreBackendSQLite:
		store, err := sqlite.Open(cfg.Store.SQLitePath, d.Embedder.Dimension(), d.Logger)
		if err != nil {
			return err
		}
		d.Documents = store

	case config.StoreBackendMemory:
		d.Documents = memory.NewDocumentStore(d.Embedder.Dimension(), d.Logger)

	default:
		return services.NewConfigurationError(fmt.Sprintf("unknown store backend %q", cfg.Store.Backend))
	}

	d.Documents = repositories.WithTimeout(d.Documents, cfg.Store.Timeout)
	d.Logger.Info("document store initialized",
		zap.String("backend", d.Documents.Name()),
		zap.Duration("timeout", cfg.Store.Timeout))
	return nil
}

// resolveDimension returns the embedder's dimension, embedding a probe text
// when the model is not in the embedder's table.
func (d *Dependencies) resolveDimension(ctx context.Context) (int, error) {
	if dim := d.Embedder.Dimension(); dim > 0 {
		return dim, nil
	}

	d.Logger.Info("embedding dimension unknown, probing backend",
		zap.String("embedder", d.Embedder.Name()))

	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	vec, err := d.Embedder.Embed(probeCtx, dimensionProbe)
	if err != nil {
		return 0, fmt.Errorf("failed to probe embedding dimension: %w", err)
	}
	if len(vec) == 0 {
		return 0, services.NewConfigurationError("embedding backend returned an empty vector")
	}
	return len(vec), nil
}

// initProviders initializes the provider registry with configured providers
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry()

	switch strings.ToLower(cfg.LLM.Provider) {
	case "", "openai":
		adapter := openai.NewOpenAIAdapter(providers.ProviderConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Timeout:     cfg.LLM.Timeout,
			MaxRetries:  cfg.LLM.MaxRetries,
			RetryDelay:  cfg.LLM.RetryDelay,
			ExtraModels: nonEmpty(cfg.LLM.Model, cfg.LLM.JudgeModel),
			Limiter:     d.LLMLimiter,
		})
		if err := registry.RegisterProvider(adapter); err != nil {
			return err
		}
		d.Logger.Info("registered OpenAI provider")
	default:
		return services.NewConfigurationError(fmt.Sprintf("unknown LLM provider %q", cfg.LLM.Provider))
	}

	if cfg.LLM.APIKey == "" {
		d.Logger.Warn("LLM API key not configured, generation will fail")
	}

	d.ProviderRegistry = registry
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) error {
	d.Retrieval = retrieval.NewRetrievalService(d.Embedder, d.Documents, retrieval.Config{
		TopK:     cfg.Retrieval.TopK,
		MinScore: cfg.Retrieval.MinScore,
	}, d.Logger)

	generator, err := d.ProviderRegistry.GetProviderForModel(cfg.LLM.Model)
	if err != nil {
		return fmt.Errorf("generation model: %w", err)
	}
	d.Generation = generation.NewGenerationService(generator, generation.Config{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, d.Logger)

	judge, err := d.ProviderRegistry.GetProviderForModel(cfg.LLM.JudgeModel)
	if err != nil {
		return fmt.Errorf("judge model: %w", err)
	}
	evalCfg := evaluation.DefaultConfig()
	evalCfg.Enabled = cfg.Evaluation.Enabled
	evalCfg.JudgeModel = cfg.LLM.JudgeModel
	evalCfg.ScaleMin = cfg.Evaluation.ScaleMin
	evalCfg.ScaleMax = cfg.Evaluation.ScaleMax
	evalCfg.AcceptThreshold = cfg.Evaluation.AcceptThreshold
	if len(cfg.Evaluation.Weights) > 0 {
		evalCfg.Weights = cfg.Evaluation.Weights
	}
	d.Evaluation = evaluation.NewEvaluationService(d.Embedder, judge, evalCfg, d.Logger)

	d.Ingestion = ingestion.NewIngestionService(d.Embedder, d.Documents, ingestion.Config{
		Workers:   cfg.Ingestion.Workers,
		QueueSize: cfg.Ingestion.QueueSize,
		BatchSize: cfg.Embedding.BatchSize,
	}, d.Logger)

	return nil
}

// initAudit starts the async answer log. Answers are persisted only by the
// postgres backend and published only when brokers are configured.
func (d *Dependencies) initAudit(cfg *config.Config) error {
	d.Publisher = events.NewPublisher(cfg.Events, d.Logger)

	auditCfg := audit.DefaultConfig()
	if cfg.Events.AuditBuffer > 0 {
		auditCfg.BufferSize = cfg.Events.AuditBuffer
	}
	if cfg.Events.AuditWorkers > 0 {
		auditCfg.WorkerCount = cfg.Events.AuditWorkers
	}
	auditCfg.RedactPII = cfg.Events.RedactPII

	d.Audit = audit.NewAuditService(d.Answers, d.Publisher, d.Logger, auditCfg)
	return d.Audit.Start()
}

func (d *Dependencies) initPipeline(cfg *config.Config) {
	d.Pipeline = pipeline.NewPipelineService(
		d.Retrieval,
		d.Generation,
		d.Evaluation,
		d.Audit,
		pipeline.Config{
			TopK:              d.Retrieval.TopK(),
			DefaultScore:      cfg.Evaluation.ScaleMin,
			RetrievalTimeout:  cfg.Pipeline.RetrievalTimeout,
			GenerationTimeout: cfg.Pipeline.GenerationTimeout,
			EvaluationTimeout: cfg.Pipeline.EvaluationTimeout,
		},
		d.Logger,
	)
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("ADMIN_JWT_SECRET not set, admin endpoints disabled")
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(
		middleware.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		d.Logger,
	)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	err := d.closeResources()

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
	return err
}

// closeResources drains the audit queue before closing the publisher and the store
func (d *Dependencies) closeResources() error {
	var errs []error

	if d.Audit != nil {
		if err := d.Audit.Stop(10 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close publisher: %w", err))
		}
	}

	// The factory owns the pool behind the postgres store
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	} else if d.Documents != nil {
		if err := d.Documents.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close document store: %w", err))
		}
	}

	return errors.Join(errs...)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
