package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/faq-rag/services"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8000, cfg.Server.Port)
				assert.Equal(t, StoreBackendPostgres, cfg.Store.Backend)
				assert.Equal(t, "faq_documents_embedding_idx", cfg.Store.VectorIndexName)
				assert.Equal(t, EmbeddingBackendOpenAI, cfg.Embedding.Backend)
				assert.Equal(t, "text-embedding-ada-002", cfg.Embedding.OpenAI.Model)
				assert.Equal(t, "gpt-4o", cfg.LLM.Model)
				assert.Equal(t, "o3-mini", cfg.LLM.JudgeModel)
				assert.Equal(t, 0.0, cfg.LLM.Temperature)
				assert.Equal(t, 3, cfg.Retrieval.TopK)
				assert.Equal(t, 7.0, cfg.Evaluation.AcceptThreshold)
				assert.Equal(t, 10.0, cfg.Evaluation.ScaleMax)
				assert.Len(t, cfg.Evaluation.Weights, 5)
				assert.Empty(t, cfg.Events.KafkaBrokers)
			},
		},
		{
			name: "open source embeddings on sqlite",
			envVars: map[string]string{
				"STORE_BACKEND":      "SQLite",
				"SQLITE_PATH":        "/tmp/kb.db",
				"EMBEDDING_BACKEND":  "huggingface",
				"HUGGING_FACE_API":   "hf_xxx",
				"HUGGING_FACE_MODEL": "sentence-transformers/all-mpnet-base-v2",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, StoreBackendSQLite, cfg.Store.Backend)
				assert.Equal(t, "/tmp/kb.db", cfg.Store.SQLitePath)
				assert.Equal(t, EmbeddingBackendHuggingFace, cfg.Embedding.Backend)
				assert.Equal(t, "hf_xxx", cfg.Embedding.HF.APIKey)
				assert.Equal(t, "sentence-transformers/all-mpnet-base-v2", cfg.Embedding.HF.Model)
			},
		},
		{
			name: "custom timeouts, retries and weights",
			envVars: map[string]string{
				"STORE_BACKEND":              "memory",
				"GENERATION_TIMEOUT":         "20s",
				"EMBEDDING_MAX_RETRIES":      "5",
				"LLM_MAX_RETRIES":            "1",
				"EVAL_WEIGHT_CONTEXT_USAGE":  "2",
				"EVAL_ACCEPT_THRESHOLD":      "6.5",
				"KAFKA_BROKERS":              "kafka-1:9092, kafka-2:9092,",
				"RETRIEVAL_TOP_K":            "5",
				"DB_MAX_OPEN_CONNS":          "50",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 20*time.Second, cfg.Pipeline.GenerationTimeout)
				assert.Equal(t, 5, cfg.Embedding.MaxRetries)
				assert.Equal(t, 1, cfg.LLM.MaxRetries)
				assert.Equal(t, 2.0, cfg.Evaluation.Weights["context_usage"])
				assert.Equal(t, 6.5, cfg.Evaluation.AcceptThreshold)
				assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.KafkaBrokers)
				assert.Equal(t, 5, cfg.Retrieval.TopK)
				assert.Equal(t, 50, cfg.Database.MaxOpenConns)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"PORT":        "9443",
				"SERVER_PORT": "9000",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "DATABASE_URL wins over DB_* vars",
			envVars: map[string]string{
				"DATABASE_URL": "postgres://u:p@db.internal:6543/kb?sslmode=require",
				"DB_HOST":      "ignored",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://u:p@db.internal:6543/kb?sslmode=require", cfg.Database.DSN())
				assert.Equal(t, "host=db.internal port=6543 database=kb", cfg.Database.LogString())
			},
		},
		{
			name: "unknown embedding backend",
			envVars: map[string]string{
				"EMBEDDING_BACKEND": "word2vec",
			},
			wantErr: true,
		},
		{
			name: "production without API keys",
			envVars: map[string]string{
				"ENVIRONMENT":   "production",
				"STORE_BACKEND": "memory",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, services.IsConfigurationError(err))
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func validConfig() *Config {
	os.Clearenv()
	cfg := Load()
	cfg.Store.Backend = StoreBackendMemory
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid memory config",
			mutate: func(c *Config) {},
		},
		{
			name: "missing database host",
			mutate: func(c *Config) {
				c.Store.Backend = StoreBackendPostgres
				c.Database = DatabaseConfig{User: "user", Database: "db"}
			},
			wantErr: true,
			errMsg:  "database configuration required",
		},
		{
			name: "missing database user",
			mutate: func(c *Config) {
				c.Store.Backend = StoreBackendPostgres
				c.Database = DatabaseConfig{Host: "localhost", Database: "db"}
			},
			wantErr: true,
			errMsg:  "database user is required",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.Store.Backend = "mongo" },
			wantErr: true,
			errMsg:  "unknown STORE_BACKEND",
		},
		{
			name:    "non-positive top k",
			mutate:  func(c *Config) { c.Retrieval.TopK = 0 },
			wantErr: true,
			errMsg:  "RETRIEVAL_TOP_K",
		},
		{
			name: "inverted scale",
			mutate: func(c *Config) {
				c.Evaluation.ScaleMin = 10
				c.Evaluation.ScaleMax = 0
			},
			wantErr: true,
			errMsg:  "EVAL_SCALE_MAX",
		},
		{
			name:    "negative weight",
			mutate:  func(c *Config) { c.Evaluation.Weights["relevance"] = -1 },
			wantErr: true,
			errMsg:  "cannot be negative",
		},
		{
			name: "all weights zero",
			mutate: func(c *Config) {
				for k := range c.Evaluation.Weights {
					c.Evaluation.Weights[k] = 0
				}
			},
			wantErr: true,
			errMsg:  "must be positive",
		},
		{
			name:    "threshold outside scale",
			mutate:  func(c *Config) { c.Evaluation.AcceptThreshold = 11 },
			wantErr: true,
			errMsg:  "EVAL_ACCEPT_THRESHOLD",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Embedding.BatchSize = 0 },
			wantErr: true,
			errMsg:  "EMBEDDING_BATCH_SIZE",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.LLM.MaxRetries = -1 },
			wantErr: true,
			errMsg:  "retry counts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, services.IsConfigurationError(err))
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	assert.Equal(t, expected, cfg.DSN())
	assert.Equal(t, "host=localhost port=5432 database=testdb", cfg.LogString())
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8000}
	assert.Equal(t, "0.0.0.0:8000", cfg.Address())
}

func TestGetEnvHelpers(t *testing.T) {
	os.Clearenv()
	os.Setenv("TEST_INT", "42")
	os.Setenv("TEST_BAD_INT", "forty-two")
	os.Setenv("TEST_BOOL", "true")
	os.Setenv("TEST_FLOAT", "0.75")
	os.Setenv("TEST_DURATION", "1m30s")
	os.Setenv("TEST_LIST", "a, b,,c")

	assert.Equal(t, 42, getEnvAsInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvAsInt("TEST_BAD_INT", 1))
	assert.True(t, getEnvAsBool("TEST_BOOL", false))
	assert.Equal(t, 0.75, getEnvAsFloat("TEST_FLOAT", 0))
	assert.Equal(t, 90*time.Second, getEnvAsDuration("TEST_DURATION", 0))
	assert.Equal(t, []string{"a", "b", "c"}, getEnvAsList("TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvAsList("TEST_MISSING", []string{"x"}))
	assert.Equal(t, "fallback", getEnv("TEST_MISSING", "fallback"))
}
