// Package config provides configuration management for the gap analysis service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/gap-analysis-service/internal/concurrency"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Supported LLM providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all configuration for the gap analysis service.
type Config struct {
	// Server contains the health and metrics HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains AI provider settings for gap generation, validation and expansion.
	LLM LLMConfig `mapstructure:"llm"`
	// Kafka contains request consumer and response publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Grobid contains full text extraction service settings.
	Grobid GrobidConfig `mapstructure:"grobid"`
	// Search contains literature search provider settings.
	Search SearchConfig `mapstructure:"search"`
	// Analysis contains pipeline fan-out and validation settings.
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the health/metrics HTTP server port (default: 8003).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (loaded from GAPANALYSIS_DATABASE_PASSWORD).
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 30).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics exposure on the HTTP server.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// LLMConfig holds AI provider configuration.
type LLMConfig struct {
	// Provider is the LLM provider (gemini, openai, anthropic).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for a single LLM API call.
	Timeout time.Duration `mapstructure:"timeout"`
	// Temperature is the LLM temperature setting.
	Temperature float64 `mapstructure:"temperature"`
	// MaxOutputTokens caps the length of a completion.
	MaxOutputTokens int `mapstructure:"max_output_tokens"`
	// RateLimit is the rolling-window admission limit shared by all AI calls.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// Retry controls retries of failed AI calls.
	Retry RetryConfig `mapstructure:"retry"`
	// Gemini contains Google Gemini settings.
	Gemini ProviderConfig `mapstructure:"gemini"`
	// OpenAI contains OpenAI settings.
	OpenAI ProviderConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic settings.
	Anthropic ProviderConfig `mapstructure:"anthropic"`
}

// ProviderConfig holds settings for one LLM provider.
type ProviderConfig struct {
	// APIKey is loaded exclusively from the environment (see loadSecrets).
	APIKey string `mapstructure:"-"`
	// Model is the model name.
	Model string `mapstructure:"model"`
	// BaseURL is the API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// RateLimitConfig bounds how many calls are admitted within a rolling window.
type RateLimitConfig struct {
	// MaxCalls is the maximum number of calls admitted per window (default: 15).
	MaxCalls int `mapstructure:"max_calls"`
	// Window is the rolling window length (default: 60s).
	Window time.Duration `mapstructure:"window"`
}

// RetryConfig holds a bounded retry policy.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `mapstructure:"max_attempts"`
	// Delay is the fixed wait between attempts.
	Delay time.Duration `mapstructure:"delay"`
}

// KafkaConfig holds the queue transport settings.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// RequestTopic is the topic analysis requests are consumed from.
	RequestTopic string `mapstructure:"request_topic"`
	// ResponseTopic is the topic analysis responses are published to.
	ResponseTopic string `mapstructure:"response_topic"`
	// ResponseKey is the fixed routing key attached to every response.
	ResponseKey string `mapstructure:"response_key"`
	// GroupID is the consumer group ID.
	GroupID string `mapstructure:"group_id"`
	// MaxWait is the longest the consumer waits for new data on a fetch.
	MaxWait time.Duration `mapstructure:"max_wait"`
	// WriteTimeout bounds a single response publish.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GrobidConfig holds GROBID extraction service settings.
type GrobidConfig struct {
	// URL is the GROBID service base URL.
	URL string `mapstructure:"url"`
	// Timeout is the timeout for a single GROBID call (default: 60s).
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxPDFSize is the largest PDF that will be downloaded, in bytes.
	MaxPDFSize int64 `mapstructure:"max_pdf_size"`
	// Retry controls retries of download and extraction.
	Retry RetryConfig `mapstructure:"retry"`
}

// SearchConfig holds settings for the literature search providers.
type SearchConfig struct {
	// Timeout is the timeout for a single search call (default: 30s).
	Timeout time.Duration `mapstructure:"timeout"`
	// Retry controls retries of failed provider calls.
	Retry RetryConfig `mapstructure:"retry"`
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar SearchSourceConfig `mapstructure:"semantic_scholar"`
	// CrossRef contains CrossRef API settings.
	CrossRef SearchSourceConfig `mapstructure:"crossref"`
	// ArXiv contains arXiv API settings.
	ArXiv SearchSourceConfig `mapstructure:"arxiv"`
}

// SearchSourceConfig holds configuration for a single search provider.
type SearchSourceConfig struct {
	// APIKey is loaded exclusively from the environment (see loadSecrets).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// Mailto identifies the caller to APIs with a polite pool (CrossRef).
	Mailto string `mapstructure:"mailto"`
}

// AnalysisConfig holds pipeline settings.
type AnalysisConfig struct {
	// MaxConcurrent bounds how many gap pipelines run at once (default: 2).
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// BatchSize groups gap pipeline submission (default: 5).
	BatchSize int `mapstructure:"batch_size"`
	// ValidationPapers caps the related papers analysed per gap (default: 10).
	ValidationPapers int `mapstructure:"validation_papers"`
}

// Policy converts the configuration into a retry policy.
func (r RetryConfig) Policy() concurrency.RetryPolicy {
	return concurrency.RetryPolicy{MaxAttempts: r.MaxAttempts, Delay: r.Delay}
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("GAPANALYSIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/gap-analysis-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Database.Password = os.Getenv("GAPANALYSIS_DATABASE_PASSWORD")

	cfg.LLM.Gemini.APIKey = firstNonEmpty(os.Getenv("GAPANALYSIS_LLM_GEMINI_API_KEY"), os.Getenv("GEMINI_API_KEY"))
	cfg.LLM.OpenAI.APIKey = firstNonEmpty(os.Getenv("GAPANALYSIS_LLM_OPENAI_API_KEY"), os.Getenv("OPENAI_API_KEY"))
	cfg.LLM.Anthropic.APIKey = firstNonEmpty(os.Getenv("GAPANALYSIS_LLM_ANTHROPIC_API_KEY"), os.Getenv("ANTHROPIC_API_KEY"))

	cfg.Search.SemanticScholar.APIKey = firstNonEmpty(os.Getenv("GAPANALYSIS_SEARCH_SEMANTIC_SCHOLAR_API_KEY"), os.Getenv("SEMANTIC_SCHOLAR_API_KEY"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8003)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gapanalysis")
	v.SetDefault("database.name", "gap_analysis")
	// Use GAPANALYSIS_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 30)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "30s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// LLM defaults
	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.max_output_tokens", 8192)
	v.SetDefault("llm.rate_limit.max_calls", 15)
	v.SetDefault("llm.rate_limit.window", "60s")
	v.SetDefault("llm.retry.max_attempts", 3)
	v.SetDefault("llm.retry.delay", "2s")
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.gemini.model", "gemini-2.0-flash")
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.request_topic", "gap_analysis_requests")
	v.SetDefault("kafka.response_topic", "gap_analysis_responses")
	v.SetDefault("kafka.response_key", "gap.analysis.response")
	v.SetDefault("kafka.group_id", "gap-analysis-service")
	v.SetDefault("kafka.max_wait", "3s")
	v.SetDefault("kafka.write_timeout", "10s")

	// GROBID defaults
	v.SetDefault("grobid.url", "http://localhost:8070")
	v.SetDefault("grobid.timeout", "60s")
	v.SetDefault("grobid.max_pdf_size", 50*1024*1024)
	v.SetDefault("grobid.retry.max_attempts", 3)
	v.SetDefault("grobid.retry.delay", "2s")

	// Search defaults
	v.SetDefault("search.timeout", "30s")
	v.SetDefault("search.retry.max_attempts", 3)
	v.SetDefault("search.retry.delay", "1s")
	v.SetDefault("search.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("search.semantic_scholar.rate_limit", 1.0)
	v.SetDefault("search.crossref.base_url", "https://api.crossref.org")
	v.SetDefault("search.crossref.rate_limit", 5.0)
	v.SetDefault("search.crossref.mailto", "")
	v.SetDefault("search.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("search.arxiv.rate_limit", 3.0) // arXiv recommends max 3 req/sec

	// Analysis defaults
	v.SetDefault("analysis.max_concurrent", 2)
	v.SetDefault("analysis.batch_size", 5)
	v.SetDefault("analysis.validation_papers", 10)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required")
	}
	if c.Kafka.RequestTopic == "" || c.Kafka.ResponseTopic == "" {
		return fmt.Errorf("kafka request and response topics are required")
	}

	if c.Grobid.URL == "" {
		return fmt.Errorf("grobid url is required")
	}

	// Validate pipeline settings
	if c.Analysis.MaxConcurrent <= 0 {
		return fmt.Errorf("analysis max_concurrent must be positive")
	}
	if c.Analysis.BatchSize <= 0 {
		return fmt.Errorf("analysis batch_size must be positive")
	}
	if c.Analysis.ValidationPapers <= 0 {
		return fmt.Errorf("analysis validation_papers must be positive")
	}
	if c.LLM.RateLimit.MaxCalls <= 0 || c.LLM.RateLimit.Window <= 0 {
		return fmt.Errorf("llm rate_limit max_calls and window must be positive")
	}
	for name, r := range map[string]RetryConfig{"llm": c.LLM.Retry, "search": c.Search.Retry, "grobid": c.Grobid.Retry} {
		if r.MaxAttempts <= 0 {
			return fmt.Errorf("%s retry max_attempts must be positive", name)
		}
		if r.Delay < 0 {
			return fmt.Errorf("%s retry delay must not be negative", name)
		}
	}

	// Validate that the configured LLM provider has its required API key set.
	switch strings.ToLower(c.LLM.Provider) {
	case ProviderGemini:
		if c.LLM.Gemini.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires GEMINI_API_KEY to be set", c.LLM.Provider)
		}
	case ProviderOpenAI:
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires OPENAI_API_KEY to be set", c.LLM.Provider)
		}
	case ProviderAnthropic:
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires ANTHROPIC_API_KEY to be set", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}

	return nil
}
