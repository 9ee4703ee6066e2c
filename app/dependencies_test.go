package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/faq-rag/config"
	"github.com/upb/faq-rag/services"
	"go.uber.org/zap/zaptest"
)

func TestNewDependencies(t *testing.T) {
	t.Run("memory backend wires every component", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig()
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, deps)

		assert.NotNil(t, deps.Config)
		assert.NotNil(t, deps.Logger)
		assert.Nil(t, deps.RepoFactory)
		assert.Nil(t, deps.Answers)

		require.NotNil(t, deps.Documents)
		assert.Equal(t, "memory", deps.Documents.Name())
		assert.Equal(t, "openai", deps.Embedder.Name())
		assert.Equal(t, []string{"openai"}, deps.ProviderRegistry.ListProviders())

		assert.NotNil(t, deps.EmbeddingLimiter)
		assert.NotNil(t, deps.LLMLimiter)
		assert.NotNil(t, deps.Publisher)
		assert.NotNil(t, deps.Retrieval)
		assert.NotNil(t, deps.Generation)
		assert.NotNil(t, deps.Evaluation)
		assert.NotNil(t, deps.Ingestion)
		assert.NotNil(t, deps.Audit)
		assert.NotNil(t, deps.Pipeline)
		assert.NotNil(t, deps.AuthMiddleware)

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("sqlite backend", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig()
		cfg.Store.Backend = config.StoreBackendSQLite
		cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "faq.db")

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Equal(t, "sqlite", deps.Documents.Name())
		assert.NoError(t, deps.Documents.Ping(ctx))
		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("unknown store backend", func(t *testing.T) {
		cfg := testConfig()
		cfg.Store.Backend = "cassandra"

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.True(t, services.IsConfigurationError(err))
		assert.Contains(t, err.Error(), "failed to initialize document store")
	})

	t.Run("unknown embedding backend", func(t *testing.T) {
		cfg := testConfig()
		cfg.Embedding.Backend = "word2vec"

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize embedder")
	})

	t.Run("unknown LLM provider", func(t *testing.T) {
		cfg := testConfig()
		cfg.LLM.Provider = "bedrock"

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize providers")
	})

	t.Run("custom models are registered with the provider", func(t *testing.T) {
		cfg := testConfig()
		cfg.LLM.Model = "ft:gpt-4o:faq"

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Equal(t, "ft:gpt-4o:faq", deps.Generation.Model())
		assert.NoError(t, deps.Close(context.Background()))
	})
}

func TestDependenciesClose(t *testing.T) {
	t.Run("second close reports the stopped audit service", func(t *testing.T) {
		ctx := context.Background()
		deps, err := NewDependencies(ctx, testConfig(), zaptest.NewLogger(t))
		require.NoError(t, err)

		assert.NoError(t, deps.Close(ctx))
		assert.Error(t, deps.Close(ctx))
	})
}

func TestNonEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, nonEmpty("a", "", "b"))
	assert.Empty(t, nonEmpty("", ""))
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Store: config.StoreConfig{
			Backend: config.StoreBackendMemory,
			Timeout: time.Second,
		},
		Embedding: config.EmbeddingConfig{
			Backend: config.EmbeddingBackendOpenAI,
			OpenAI: config.OpenAIEmbeddingConfig{
				APIKey: "test-key",
				Model:  "text-embedding-ada-002",
			},
			BatchSize: 16,
			Timeout:   time.Second,
		},
		LLM: config.LLMConfig{
			Provider:   "openai",
			APIKey:     "test-key",
			Model:      "gpt-4o",
			JudgeModel: "o3-mini",
			Timeout:    time.Second,
		},
		Retrieval: config.RetrievalConfig{TopK: 3, MinScore: -1},
		Evaluation: config.EvaluationConfig{
			Enabled:         true,
			ScaleMin:        0,
			ScaleMax:        10,
			AcceptThreshold: 7,
		},
		Ingestion: config.IngestionConfig{Workers: 2, QueueSize: 4},
		Pipeline: config.PipelineConfig{
			RetrievalTimeout:  time.Second,
			GenerationTimeout: time.Second,
			EvaluationTimeout: time.Second,
		},
		Events: config.EventsConfig{AuditBuffer: 10, AuditWorkers: 1},
		Auth:   config.AuthConfig{Issuer: "faq-rag"},
	}
}
