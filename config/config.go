package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/faq-rag/services"
)

// Embedding backends
const (
	EmbeddingBackendOpenAI      = "openai"
	EmbeddingBackendHuggingFace = "huggingface"
)

// Store backends
const (
	StoreBackendPostgres = "postgres"
	StoreBackendSQLite   = "sqlite"
	StoreBackendMemory   = "memory"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Store         StoreConfig
	Embedding     EmbeddingConfig
	LLM           LLMConfig
	Retrieval     RetrievalConfig
	Evaluation    EvaluationConfig
	Ingestion     IngestionConfig
	Pipeline      PipelineConfig
	Events        EventsConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// StoreConfig selects and tunes the document store
type StoreConfig struct {
	Backend         string
	SQLitePath      string
	VectorIndexName string
	IVFLists        int
	Timeout         time.Duration
}

// EmbeddingConfig holds the embedding backend configuration
type EmbeddingConfig struct {
	Backend    string
	OpenAI     OpenAIEmbeddingConfig
	HF         HuggingFaceConfig
	BatchSize  int
	RPS        float64
	Burst      int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// OpenAIEmbeddingConfig holds hosted embedding settings
type OpenAIEmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// HuggingFaceConfig holds open-source embedding settings
type HuggingFaceConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// LLMConfig holds the language-model provider configuration
type LLMConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	JudgeModel  string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	RPS         float64
	Burst       int
}

// RetrievalConfig holds retrieval tuning
type RetrievalConfig struct {
	TopK     int
	MinScore float64
}

// EvaluationConfig holds scoring scale, weights and the accept threshold
type EvaluationConfig struct {
	Enabled         bool
	ScaleMin        float64
	ScaleMax        float64
	Weights         map[string]float64
	AcceptThreshold float64
}

// IngestionConfig holds batch ingestion settings
type IngestionConfig struct {
	Workers   int
	QueueSize int
}

// PipelineConfig holds per-stage timeouts of one question
type PipelineConfig struct {
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
	EvaluationTimeout time.Duration
}

// EventsConfig holds answer event publishing settings
type EventsConfig struct {
	KafkaBrokers []string
	Topic        string
	AuditBuffer  int
	AuditWorkers int
	RedactPII    bool
}

// AuthConfig holds admin authentication settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Load()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Load reads the configuration from the environment without validating it
func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://*"}),
		},
		Database: loadDatabaseConfig(),
		Store: StoreConfig{
			Backend:         strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
			SQLitePath:      getEnv("SQLITE_PATH", "faqrag.db"),
			VectorIndexName: getEnv("VECTOR_INDEX_NAME", "faq_documents_embedding_idx"),
			IVFLists:        getEnvAsInt("VECTOR_INDEX_LISTS", 100),
			Timeout:         getEnvAsDuration("STORE_TIMEOUT", 5*time.Second),
		},
		Embedding: EmbeddingConfig{
			Backend: strings.ToLower(getEnv("EMBEDDING_BACKEND", EmbeddingBackendOpenAI)),
			OpenAI: OpenAIEmbeddingConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:   getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
			},
			HF: HuggingFaceConfig{
				APIKey:  getEnv("HUGGING_FACE_API", ""),
				BaseURL: getEnv("HUGGING_FACE_BASE_URL", "https://api-inference.huggingface.co"),
				Model:   getEnv("HUGGING_FACE_MODEL", "sentence-transformers/all-MiniLM-L6-v2"),
			},
			BatchSize:  getEnvAsInt("EMBEDDING_BATCH_SIZE", 64),
			RPS:        getEnvAsFloat("EMBEDDING_RPS", 5),
			Burst:      getEnvAsInt("EMBEDDING_BURST", 5),
			Timeout:    getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvAsInt("EMBEDDING_MAX_RETRIES", 3),
			RetryDelay: getEnvAsDuration("EMBEDDING_RETRY_DELAY", 500*time.Millisecond),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", "openai"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o"),
			JudgeModel:  getEnv("JUDGE_MODEL", "o3-mini"),
			Temperature: getEnvAsFloat("LLM_TEMPERATURE", 0),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 0),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			MaxRetries:  getEnvAsInt("LLM_MAX_RETRIES", 2),
			RetryDelay:  getEnvAsDuration("LLM_RETRY_DELAY", time.Second),
			RPS:         getEnvAsFloat("LLM_RPS", 0),
			Burst:       getEnvAsInt("LLM_BURST", 1),
		},
		Retrieval: RetrievalConfig{
			TopK:     getEnvAsInt("RETRIEVAL_TOP_K", 3),
			MinScore: getEnvAsFloat("RETRIEVAL_MIN_SCORE", -1),
		},
		Evaluation: EvaluationConfig{
			Enabled:  getEnvAsBool("EVAL_ENABLED", true),
			ScaleMin: getEnvAsFloat("EVAL_SCALE_MIN", 0),
			ScaleMax: getEnvAsFloat("EVAL_SCALE_MAX", 10),
			Weights: map[string]float64{
				"semantic_similarity": getEnvAsFloat("EVAL_WEIGHT_SEMANTIC_SIMILARITY", 1),
				"factual_accuracy":    getEnvAsFloat("EVAL_WEIGHT_FACTUAL_ACCURACY", 1),
				"relevance":           getEnvAsFloat("EVAL_WEIGHT_RELEVANCE", 1),
				"completeness":        getEnvAsFloat("EVAL_WEIGHT_COMPLETENESS", 1),
				"context_usage":       getEnvAsFloat("EVAL_WEIGHT_CONTEXT_USAGE", 1),
			},
			AcceptThreshold: getEnvAsFloat("EVAL_ACCEPT_THRESHOLD", 7),
		},
		Ingestion: IngestionConfig{
			Workers:   getEnvAsInt("INGEST_WORKERS", 4),
			QueueSize: getEnvAsInt("INGEST_QUEUE_SIZE", 16),
		},
		Pipeline: PipelineConfig{
			RetrievalTimeout:  getEnvAsDuration("RETRIEVAL_TIMEOUT", 15*time.Second),
			GenerationTimeout: getEnvAsDuration("GENERATION_TIMEOUT", 90*time.Second),
			EvaluationTimeout: getEnvAsDuration("EVALUATION_TIMEOUT", 90*time.Second),
		},
		Events: EventsConfig{
			KafkaBrokers: getEnvAsList("KAFKA_BROKERS", nil),
			Topic:        getEnv("KAFKA_ANSWER_TOPIC", "faq.answers"),
			AuditBuffer:  getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			AuditWorkers: getEnvAsInt("AUDIT_WORKERS", 2),
			RedactPII:    getEnvAsBool("AUDIT_REDACT_PII", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
			Issuer:    getEnv("ADMIN_JWT_ISSUER", "faq-rag"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Validate checks the configuration. Every failure is a configuration error.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendPostgres:
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return services.NewConfigurationError("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return services.NewConfigurationError("database user is required")
			}
			if c.Database.Database == "" {
				return services.NewConfigurationError("database name is required")
			}
		}
	case StoreBackendSQLite:
		if c.Store.SQLitePath == "" {
			return services.NewConfigurationError("SQLITE_PATH is required for the sqlite store")
		}
	case StoreBackendMemory:
	default:
		return services.NewConfigurationError(fmt.Sprintf("unknown STORE_BACKEND %q", c.Store.Backend))
	}

	switch c.Embedding.Backend {
	case EmbeddingBackendOpenAI:
		if c.IsProduction() && c.Embedding.OpenAI.APIKey == "" {
			return services.NewConfigurationError("OPENAI_API_KEY is required for the openai embedding backend")
		}
	case EmbeddingBackendHuggingFace:
		if c.IsProduction() && c.Embedding.HF.APIKey == "" {
			return services.NewConfigurationError("HUGGING_FACE_API is required for the huggingface embedding backend")
		}
	default:
		return services.NewConfigurationError(fmt.Sprintf("unknown EMBEDDING_BACKEND %q", c.Embedding.Backend))
	}
	if c.Embedding.BatchSize <= 0 {
		return services.NewConfigurationError("EMBEDDING_BATCH_SIZE must be positive")
	}
	if c.Embedding.MaxRetries < 0 || c.LLM.MaxRetries < 0 {
		return services.NewConfigurationError("retry counts cannot be negative")
	}

	if c.IsProduction() && c.LLM.APIKey == "" {
		return services.NewConfigurationError("OPENAI_API_KEY is required in production")
	}
	if c.LLM.Model == "" {
		return services.NewConfigurationError("OPENAI_MODEL is required")
	}

	if c.Retrieval.TopK <= 0 {
		return services.NewConfigurationError("RETRIEVAL_TOP_K must be positive")
	}

	if c.Evaluation.ScaleMax <= c.Evaluation.ScaleMin {
		return services.NewConfigurationError("EVAL_SCALE_MAX must be greater than EVAL_SCALE_MIN")
	}
	var weightSum float64
	for name, w := range c.Evaluation.Weights {
		if w < 0 {
			return services.NewConfigurationError(fmt.Sprintf("weight for %s cannot be negative", name))
		}
		weightSum += w
	}
	if weightSum <= 0 {
		return services.NewConfigurationError("at least one evaluation weight must be positive")
	}
	if c.Evaluation.AcceptThreshold < c.Evaluation.ScaleMin || c.Evaluation.AcceptThreshold > c.Evaluation.ScaleMax {
		return services.NewConfigurationError("EVAL_ACCEPT_THRESHOLD must lie inside the scoring scale")
	}

	if c.Ingestion.Workers <= 0 {
		return services.NewConfigurationError("INGEST_WORKERS must be positive")
	}

	if c.Observability.LogLevel == "" {
		return services.NewConfigurationError("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "faqrag"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "faqrag"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
