package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for plume-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// CORSOriginsStr is a comma-separated list of browser origins allowed to
	// call the API. "*" allows any origin (credentials are then disabled).
	CORSOriginsStr string `yaml:"cors_origins" env:"CORS_ORIGINS" env-default:"http://localhost:3000"`

	// CORSOrigins is the parsed list from CORSOriginsStr (not from config file).
	CORSOrigins []string `yaml:"-"`

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional, result cache backing)
	Redis RedisConfig `yaml:"redis"`

	// Model provider configuration
	Models ModelsConfig `yaml:"models"`

	// LanguageTool grammar backend
	LanguageTool LanguageToolConfig `yaml:"languagetool"`

	// Result cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Document ingestion configuration
	Ingest IngestConfig `yaml:"ingest"`

	// Retrieval index configuration
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Per-request limits
	Limits LimitsConfig `yaml:"limits"`

	// Background task queue configuration
	Tasks TasksConfig `yaml:"tasks"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// SecretKey signs locally issued HS256 access tokens.
	// Server refuses to start without it outside local env.
	SecretKey string `yaml:"-" env:"SECRET_KEY"`

	// TokenTTLMinutes is the lifetime of issued access tokens.
	TokenTTLMinutes int `yaml:"token_ttl_minutes" env:"AUTH_TOKEN_TTL_MINUTES" env-default:"1440"`

	// EnableVerification controls whether tokens are validated.
	// Set to false for local development only.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs for
	// accepting tokens minted by an external identity provider alongside local ones.
	// Format: "issuer1=url1,issuer2=url2". Empty disables external issuers.
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	// CookieDomain is the domain for browser session cookies (optional).
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN" env-default:""`

	// OAuth client credentials are accepted for parity with existing
	// deployment environments. No login flow consumes them yet.
	OAuthClientID     string `yaml:"-" env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string `yaml:"-" env:"OAUTH_CLIENT_SECRET"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"plume"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"plume_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis configuration. An empty host disables Redis and the
// result cache falls back to its in-process store.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// ModelsConfig holds model provider endpoints. The chat provider speaks the
// OpenAI chat-completions API unless Provider selects anthropic.
type ModelsConfig struct {
	// Provider picks the chat/generation backend: "openai" or "anthropic".
	Provider string `yaml:"provider" env:"MODELS_PROVIDER" env-default:"openai"`

	// OpenAI-compatible endpoint (also serves self-hosted gateways).
	OpenAIBaseURL string `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:""`
	OpenAIKey     string `yaml:"-" env:"OPENAI_API_KEY"`
	ChatModel     string `yaml:"chat_model" env:"MODELS_CHAT_MODEL" env-default:"gpt-4o-mini"`

	// Anthropic endpoint (alternate chat provider).
	AnthropicKey   string `yaml:"-" env:"ANTHROPIC_API_KEY"`
	AnthropicModel string `yaml:"anthropic_model" env:"MODELS_ANTHROPIC_MODEL" env-default:"claude-3-5-haiku-latest"`

	// Embeddings: "openai" or "gemini".
	EmbeddingProvider string `yaml:"embedding_provider" env:"MODELS_EMBEDDING_PROVIDER" env-default:"openai"`
	EmbeddingModel    string `yaml:"embedding_model" env:"MODELS_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	EmbeddingDim      int    `yaml:"embedding_dim" env:"MODELS_EMBEDDING_DIM" env-default:"384"`
	GeminiKey         string `yaml:"-" env:"GEMINI_API_KEY"`

	// Extractive QA span model endpoint (HF-style inference). Empty disables
	// the span stage; QA then runs on the heuristic fallback alone.
	SpanModelURL string `yaml:"span_model_url" env:"MODELS_SPAN_MODEL_URL" env-default:""`
	SpanModelKey string `yaml:"-" env:"MODELS_SPAN_MODEL_KEY"`

	// Decoding defaults applied before per-user adaptation.
	Temperature float32 `yaml:"temperature" env:"MODELS_TEMPERATURE" env-default:"0.7"`
	MaxLength   int     `yaml:"max_length" env:"MODELS_MAX_LENGTH" env-default:"256"`
	TopP        float32 `yaml:"top_p" env:"MODELS_TOP_P" env-default:"0.9"`
}

// LanguageToolConfig holds the grammar backend endpoint.
type LanguageToolConfig struct {
	BaseURL        string `yaml:"base_url" env:"LANGUAGETOOL_BASE_URL" env-default:"http://localhost:8010"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"LANGUAGETOOL_TIMEOUT_SECONDS" env-default:"10"`
}

// CacheConfig holds result cache settings. TTLs are per operation, in seconds.
type CacheConfig struct {
	MaxEntries           int `yaml:"max_entries" env:"CACHE_MAX_ENTRIES" env-default:"10000"`
	GrammarTTLSeconds    int `yaml:"grammar_ttl_seconds" env:"CACHE_GRAMMAR_TTL_SECONDS" env-default:"86400"`
	QATTLSeconds         int `yaml:"qa_ttl_seconds" env:"CACHE_QA_TTL_SECONDS" env-default:"3600"`
	ReformulationTTLS    int `yaml:"reformulation_ttl_seconds" env:"CACHE_REFORMULATION_TTL_SECONDS" env-default:"43200"`
	SuggestionTTLSeconds int `yaml:"suggestion_ttl_seconds" env:"CACHE_SUGGESTION_TTL_SECONDS" env-default:"300"`
}

// IngestConfig holds document ingestion settings.
type IngestConfig struct {
	// UploadDir is where uploaded files are stored as {user_id}_{filename}.
	UploadDir      string `yaml:"upload_dir" env:"INGEST_UPLOAD_DIR" env-default:"uploads"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"INGEST_MAX_UPLOAD_BYTES" env-default:"10485760"`
	ChunkWords     int    `yaml:"chunk_words" env:"INGEST_CHUNK_WORDS" env-default:"20"`
	OverlapWords   int    `yaml:"overlap_words" env:"INGEST_OVERLAP_WORDS" env-default:"5"`
	// GrammarPass runs the grammar engine over extracted text before
	// chunking, so indexed chunks carry corrected spelling.
	GrammarPass bool `yaml:"grammar_pass" env:"INGEST_GRAMMAR_PASS" env-default:"false"`
}

// RetrievalConfig holds vector index settings.
type RetrievalConfig struct {
	// DataDir is where per-namespace indexes are persisted as JSON.
	DataDir string `yaml:"data_dir" env:"RETRIEVAL_DATA_DIR" env-default:"data/index"`
	// KBDir holds curated knowledge base seed files (YAML).
	KBDir string `yaml:"kb_dir" env:"RETRIEVAL_KB_DIR" env-default:"kb"`
	// MinScore filters candidates below this cosine similarity.
	MinScore float64 `yaml:"min_score" env:"RETRIEVAL_MIN_SCORE" env-default:"0.3"`
	// LexicalWeight blends BM25 into the ranking; semantic gets the rest.
	LexicalWeight float64 `yaml:"lexical_weight" env:"RETRIEVAL_LEXICAL_WEIGHT" env-default:"0.3"`
	// ContextBudget caps assembled QA context, in characters.
	ContextBudget int `yaml:"context_budget" env:"RETRIEVAL_CONTEXT_BUDGET" env-default:"2000"`
	// MaxChunks caps how many chunks are assembled into a QA context.
	MaxChunks int `yaml:"max_chunks" env:"RETRIEVAL_MAX_CHUNKS" env-default:"3"`
}

// LimitsConfig caps request sizes and rates.
type LimitsConfig struct {
	MaxGrammarChars       int     `yaml:"max_grammar_chars" env:"LIMITS_MAX_GRAMMAR_CHARS" env-default:"10000"`
	MaxQuestionChars      int     `yaml:"max_question_chars" env:"LIMITS_MAX_QUESTION_CHARS" env-default:"1000"`
	MaxContextChars       int     `yaml:"max_context_chars" env:"LIMITS_MAX_CONTEXT_CHARS" env-default:"50000"`
	MaxReformulationChars int     `yaml:"max_reformulation_chars" env:"LIMITS_MAX_REFORMULATION_CHARS" env-default:"10000"`
	MaxMessageChars       int     `yaml:"max_message_chars" env:"LIMITS_MAX_MESSAGE_CHARS" env-default:"8000"`
	RequestsPerSecond     float64 `yaml:"requests_per_second" env:"LIMITS_REQUESTS_PER_SECOND" env-default:"10"`
	Burst                 int     `yaml:"burst" env:"LIMITS_BURST" env-default:"20"`
	// Interactive request deadlines, in seconds. Soft is advisory for engines,
	// hard cancels the request context.
	SoftTimeoutSeconds int `yaml:"soft_timeout_seconds" env:"LIMITS_SOFT_TIMEOUT_SECONDS" env-default:"25"`
	HardTimeoutSeconds int `yaml:"hard_timeout_seconds" env:"LIMITS_HARD_TIMEOUT_SECONDS" env-default:"30"`
}

// TasksConfig holds background queue settings.
type TasksConfig struct {
	QueueSize      int `yaml:"queue_size" env:"TASKS_QUEUE_SIZE" env-default:"64"`
	Workers        int `yaml:"workers" env:"TASKS_WORKERS" env-default:"2"`
	TimeoutMinutes int `yaml:"timeout_minutes" env:"TASKS_TIMEOUT_MINUTES" env-default:"30"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Environment variables override YAML values. Secrets (PGPASSWORD, SECRET_KEY,
// provider keys) must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// Load config from YAML file with environment variable overrides
	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	// Parse complex fields
	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)
	cfg.CORSOrigins = splitTrimmed(cfg.CORSOriginsStr)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// validate rejects configurations that cannot serve requests safely.
func (c *Config) validate() error {
	if c.Auth.EnableVerification && c.Auth.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY must be set when auth verification is enabled")
	}
	if c.Retrieval.LexicalWeight < 0 || c.Retrieval.LexicalWeight > 1 {
		return fmt.Errorf("retrieval lexical_weight must be within [0, 1], got %v", c.Retrieval.LexicalWeight)
	}
	if c.Limits.SoftTimeoutSeconds > c.Limits.HardTimeoutSeconds {
		return fmt.Errorf("soft timeout (%ds) must not exceed hard timeout (%ds)",
			c.Limits.SoftTimeoutSeconds, c.Limits.HardTimeoutSeconds)
	}
	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, "=")
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// splitTrimmed splits a comma-separated value into trimmed non-empty entries.
func splitTrimmed(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
